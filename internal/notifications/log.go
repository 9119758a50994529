package notifications

import (
	"context"

	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
)

// LogNotifier writes every notification as a warn-level log line.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogNotifier{logg: logg}
}

func (l *LogNotifier) Notify(ctx context.Context, n cart.Notification) {
	ctx = l.logg.WithFields(ctx, map[string]any{
		"session_id":   n.SessionID,
		"operation":    n.Operation,
		"product_id":   n.ProductID,
		"code":         n.Code,
		"user_message": n.Message,
	})
	l.logg.Warn(ctx, "cart notification")
}
