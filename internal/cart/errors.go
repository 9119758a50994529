package cart

import (
	stdErrors "errors"

	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
)

// Operation names used in notifications, logs and metrics.
const (
	OperationAddProduct          = "add_product"
	OperationRemoveProduct       = "remove_product"
	OperationUpdateProductAmount = "update_product_amount"
)

const (
	MessageOutOfStock   = "Requested amount is out of stock"
	MessageAddFailed    = "Could not add the product"
	MessageRemoveFailed = "Could not remove the product"
	MessageUpdateFailed = "Could not change the product amount"
)

// errNoop marks an operation that intentionally changed nothing.
var errNoop = stdErrors.New("cart: no-op")

// StockDetails is attached to OUT_OF_STOCK errors.
type StockDetails struct {
	ProductID int `json:"product_id"`
	Requested int `json:"requested"`
	Available int `json:"available"`
}

func outOfStock(productID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "requested amount is out of stock").
		WithDetails(StockDetails{ProductID: productID, Requested: requested, Available: available})
}

func productNotInCart(productID int) error {
	return pkgerrors.New(pkgerrors.CodeProductNotInCart, "product is not in the cart").
		WithDetails(map[string]int{"product_id": productID})
}

// inventoryFailure keeps NOT_FOUND from the inventory visible and treats everything else as a dependency failure.
func inventoryFailure(err error, message string) error {
	if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

// IsOutOfStock reports whether err is a stock ceiling rejection.
func IsOutOfStock(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock)
}

// IsProductNotInCart reports whether err was caused by a missing cart line.
func IsProductNotInCart(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeProductNotInCart)
}

func userMessage(operation string, err error) string {
	if IsOutOfStock(err) {
		return MessageOutOfStock
	}
	switch operation {
	case OperationAddProduct:
		return MessageAddFailed
	case OperationRemoveProduct:
		return MessageRemoveFailed
	default:
		return MessageUpdateFailed
	}
}
