package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/angelmondragon/rocketshoes-cart/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/angelmondragon/rocketshoes-cart/internal/cart"

	hydrateTimeout = 5 * time.Second
)

// ManagerParams wires a Manager. Inventory, Store and Notifier are required.
type ManagerParams struct {
	SessionID      string
	Inventory      Inventory
	Store          SnapshotStore
	Notifier       Notifier
	Logger         *logger.Logger
	Metrics        *metrics.CartMetrics
	TracerProvider trace.TracerProvider
}

// Manager owns one session's cart. Mutations are serialized; reads see the
// last committed state and never wait on an in-flight mutation.
type Manager struct {
	sessionID string
	key       string
	inventory Inventory
	store     SnapshotStore
	notifier  Notifier
	logg      *logger.Logger
	metrics   *metrics.CartMetrics
	tracer    trace.Tracer

	opMu sync.Mutex

	stateMu sync.RWMutex
	items   []LineItem
}

// NewManager builds a Manager and hydrates it from the store. A missing or
// malformed snapshot yields an empty cart; a store failure is returned so the
// caller never works from a cart that hides the persisted one.
func NewManager(ctx context.Context, p ManagerParams) (*Manager, error) {
	if p.Inventory == nil {
		return nil, fmt.Errorf("inventory required")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if p.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	tp := p.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	m := &Manager{
		sessionID: p.SessionID,
		key:       SnapshotKey(p.SessionID),
		inventory: p.Inventory,
		store:     p.Store,
		notifier:  p.Notifier,
		logg:      logg,
		metrics:   p.Metrics,
		tracer:    tp.Tracer(tracerName),
	}
	items, err := m.hydrate(ctx)
	if err != nil {
		return nil, err
	}
	m.items = items
	return m, nil
}

// hydrate is detached from the caller's cancellation so an abandoned request
// cannot turn into a spurious load failure.
func (m *Manager) hydrate(ctx context.Context) ([]LineItem, error) {
	ctx = m.logg.WithFields(ctx, map[string]any{"session_id": m.sessionID, "snapshot_key": m.key})
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
	defer cancel()

	payload, err := m.store.Load(loadCtx, m.key)
	if errors.Is(err, ErrSnapshotNotFound) {
		return []LineItem{}, nil
	}
	if err != nil {
		m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "cart snapshot unavailable")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart snapshot")
	}

	items, err := decodeSnapshot(payload)
	if err != nil {
		m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "discarding malformed cart snapshot")
		return []LineItem{}, nil
	}
	m.logg.Debug(m.logg.WithField(ctx, "items", len(items)), "cart hydrated")
	return items, nil
}

// SessionID returns the session this cart belongs to.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// Items returns a copy of the committed cart in insertion order.
func (m *Manager) Items() []LineItem {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return cloneItems(m.items)
}

// AddProduct increments the product's amount by one, appending a new line
// with the inventory's display data when the product is not yet in the cart.
func (m *Manager) AddProduct(ctx context.Context, productID int) error {
	return m.run(ctx, OperationAddProduct, productID, func(ctx context.Context) error {
		items := m.Items()
		idx := indexOf(items, productID)
		desired := 1
		if idx >= 0 {
			desired = items[idx].Amount + 1
		}

		stock, err := m.inventory.GetStock(ctx, productID)
		if err != nil {
			return inventoryFailure(err, "add product")
		}
		if desired > stock.Amount {
			return outOfStock(productID, desired, stock.Amount)
		}

		if idx >= 0 {
			items[idx].Amount = desired
			return m.commit(ctx, items)
		}

		product, err := m.inventory.GetProduct(ctx, productID)
		if err != nil {
			return inventoryFailure(err, "add product")
		}
		product.ID = productID
		return m.commit(ctx, append(items, LineItem{Product: product, Amount: desired}))
	})
}

// RemoveProduct drops the product's line entirely.
func (m *Manager) RemoveProduct(ctx context.Context, productID int) error {
	return m.run(ctx, OperationRemoveProduct, productID, func(ctx context.Context) error {
		items := m.Items()
		idx := indexOf(items, productID)
		if idx < 0 {
			return productNotInCart(productID)
		}
		return m.commit(ctx, append(items[:idx], items[idx+1:]...))
	})
}

// UpdateProductAmount sets an existing line's amount. Amounts <= 0 are ignored;
// use RemoveProduct to drop a line.
func (m *Manager) UpdateProductAmount(ctx context.Context, productID, amount int) error {
	return m.run(ctx, OperationUpdateProductAmount, productID, func(ctx context.Context) error {
		if amount <= 0 {
			return errNoop
		}
		items := m.Items()
		idx := indexOf(items, productID)
		if idx < 0 {
			return productNotInCart(productID)
		}

		stock, err := m.inventory.GetStock(ctx, productID)
		if err != nil {
			return inventoryFailure(err, "update product amount")
		}
		if amount > stock.Amount {
			return outOfStock(productID, amount, stock.Amount)
		}

		items[idx].Amount = amount
		return m.commit(ctx, items)
	})
}

// commit persists next and only then swaps it in, so memory and store never diverge.
func (m *Manager) commit(ctx context.Context, next []LineItem) error {
	payload, err := encodeSnapshot(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "encode cart snapshot")
	}
	if err := m.store.Save(ctx, m.key, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart snapshot")
	}

	m.stateMu.Lock()
	m.items = next
	m.stateMu.Unlock()
	return nil
}

func (m *Manager) run(ctx context.Context, operation string, productID int, fn func(context.Context) error) error {
	ctx, span := m.tracer.Start(ctx, spanName(operation), trace.WithAttributes(
		attribute.Int("product.id", productID),
		attribute.String("cart.operation", operation),
	))
	defer span.End()

	ctx = m.logg.WithFields(ctx, map[string]any{
		"session_id": m.sessionID,
		"operation":  operation,
		"product_id": productID,
	})

	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if errors.Is(err, errNoop) {
		m.metrics.Observe(operation, metrics.OutcomeNoop, elapsed)
		m.logg.Debug(ctx, "cart operation skipped")
		return nil
	}
	if err == nil {
		m.metrics.Observe(operation, metrics.OutcomeSuccess, elapsed)
		m.logg.Debug(m.logg.WithField(ctx, "items", m.itemCount()), "cart operation committed")
		return nil
	}

	m.metrics.Observe(operation, outcomeOf(err), elapsed)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(pkgerrors.As(err).Code()))
	m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "cart operation failed")
	m.notifier.Notify(ctx, Notification{
		SessionID:  m.sessionID,
		Operation:  operation,
		ProductID:  productID,
		Code:       string(pkgerrors.As(err).Code()),
		Message:    userMessage(operation, err),
		OccurredAt: time.Now().UTC(),
	})
	return err
}

func (m *Manager) itemCount() int {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return len(m.items)
}

func outcomeOf(err error) string {
	switch {
	case IsOutOfStock(err):
		return metrics.OutcomeOutOfStock
	case IsProductNotInCart(err):
		return metrics.OutcomeNotInCart
	default:
		return metrics.OutcomeError
	}
}

func spanName(operation string) string {
	switch operation {
	case OperationAddProduct:
		return "cart.AddProduct"
	case OperationRemoveProduct:
		return "cart.RemoveProduct"
	default:
		return "cart.UpdateProductAmount"
	}
}
