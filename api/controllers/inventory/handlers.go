// Package inventory serves the seed catalog in the bare JSON shape the cart's
// inventory client expects (/products, /products/{id}, /stock, /stock/{id}).
package inventory

import (
	"context"
	"net/http"

	"github.com/angelmondragon/rocketshoes-cart/api/responses"
	"github.com/angelmondragon/rocketshoes-cart/api/validators"
	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
)

// Catalog is the read/write surface of inventory.Catalog used here.
type Catalog interface {
	GetStock(ctx context.Context, productID int) (cart.Stock, error)
	GetProduct(ctx context.Context, productID int) (cart.Product, error)
	Products() []cart.Product
	StockLevels() []cart.Stock
	SetStock(productID, amount int) error
}

type setStockRequest struct {
	Amount *int `json:"amount" validate:"required,min=0"`
}

const idParam = "id"

func ListProducts(c Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteJSON(w, http.StatusOK, c.Products())
	}
}

func GetProduct(c Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, idParam)
		if err != nil {
			writeBare(r.Context(), logg, w, err)
			return
		}
		product, err := c.GetProduct(r.Context(), id)
		if err != nil {
			writeBare(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, product)
	}
}

func ListStock(c Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteJSON(w, http.StatusOK, c.StockLevels())
	}
}

func GetStock(c Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, idParam)
		if err != nil {
			writeBare(r.Context(), logg, w, err)
			return
		}
		stock, err := c.GetStock(r.Context(), id)
		if err != nil {
			writeBare(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, stock)
	}
}

// SetStock lets demos and tests change a product's available amount.
func SetStock(c Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseIDParam(r, idParam)
		if err != nil {
			writeBare(r.Context(), logg, w, err)
			return
		}
		var payload setStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			writeBare(r.Context(), logg, w, err)
			return
		}
		if err := c.SetStock(id, *payload.Amount); err != nil {
			writeBare(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, cart.Stock{ID: id, Amount: *payload.Amount})
	}
}

// writeBare mirrors json-server: an empty object with the mapped status.
func writeBare(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inventory error")
	}
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "inventory.request_failed")
	}
	responses.WriteJSON(w, pkgerrors.MetadataFor(typed.Code()).HTTPStatus, struct{}{})
}
