package cart

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound is returned by a SnapshotStore when no snapshot exists for a key.
var ErrSnapshotNotFound = errors.New("cart snapshot not found")

// Inventory is the remote source of stock levels and product display data.
type Inventory interface {
	GetStock(ctx context.Context, productID int) (Stock, error)
	GetProduct(ctx context.Context, productID int) (Product, error)
}

// SnapshotStore persists serialized carts. Save overwrites the whole value.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}

// Notifier receives user-visible failure reports. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}
