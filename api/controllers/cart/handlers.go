package cart

import (
	"context"
	"net/http"

	cartdto "github.com/angelmondragon/rocketshoes-cart/api/controllers/cart/dto"
	"github.com/angelmondragon/rocketshoes-cart/api/middleware"
	"github.com/angelmondragon/rocketshoes-cart/api/responses"
	"github.com/angelmondragon/rocketshoes-cart/api/validators"
	cartsvc "github.com/angelmondragon/rocketshoes-cart/internal/cart"
	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
)

// Carts resolves the Manager for a session.
type Carts interface {
	Get(ctx context.Context, sessionID string) (*cartsvc.Manager, error)
}

// Feed hands out a session's pending notifications.
type Feed interface {
	Drain(sessionID string) []cartsvc.Notification
}

const productIDParam = "productId"

// CartFetch returns the session's committed cart.
func CartFetch(carts Carts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manager, ok := managerFor(w, r, carts, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, newCart(manager.SessionID(), manager.Items()))
	}
}

// CartAddItem adds one unit of a product.
func CartAddItem(carts Carts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		manager, ok := managerFor(w, r, carts, logg)
		if !ok {
			return
		}
		if err := manager.AddProduct(r.Context(), payload.ProductID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(manager.SessionID(), manager.Items()))
	}
}

// CartRemoveItem drops a product's line.
func CartRemoveItem(carts Carts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, productIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		manager, ok := managerFor(w, r, carts, logg)
		if !ok {
			return
		}
		if err := manager.RemoveProduct(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(manager.SessionID(), manager.Items()))
	}
}

// CartUpdateItem sets a line's amount; non-positive amounts are a no-op.
func CartUpdateItem(carts Carts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseIDParam(r, productIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		manager, ok := managerFor(w, r, carts, logg)
		if !ok {
			return
		}
		if err := manager.UpdateProductAmount(r.Context(), productID, *payload.Amount); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCart(manager.SessionID(), manager.Items()))
	}
}

// CartNotifications drains the session's pending notifications.
func CartNotifications(feed Feed, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if feed == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification feed unavailable"))
			return
		}
		sessionID := middleware.SessionIDFromContext(r.Context())
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id required"))
			return
		}
		responses.WriteSuccess(w, newNotifications(feed.Drain(sessionID)))
	}
}

func managerFor(w http.ResponseWriter, r *http.Request, carts Carts, logg *logger.Logger) (*cartsvc.Manager, bool) {
	if carts == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart registry unavailable"))
		return nil, false
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id required"))
		return nil, false
	}
	manager, err := carts.Get(r.Context(), sessionID)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return manager, true
}
