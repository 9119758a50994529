package notifications

import (
	"context"

	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
)

// Multi fans a notification out to every non-nil sink in order.
type Multi []cart.Notifier

func (m Multi) Notify(ctx context.Context, n cart.Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, n)
		}
	}
}
