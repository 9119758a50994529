package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddItemRequest is the body of POST /api/v1/cart/items.
type AddItemRequest struct {
	ProductID int `json:"product_id" validate:"required,min=1"`
}

// UpdateItemRequest is the body of PATCH /api/v1/cart/items/{productId}.
// Amounts <= 0 are accepted and leave the cart unchanged.
type UpdateItemRequest struct {
	Amount *int `json:"amount" validate:"required"`
}

type CartItem struct {
	ID     int             `json:"id"`
	Title  string          `json:"title"`
	Price  decimal.Decimal `json:"price"`
	Image  string          `json:"image"`
	Amount int             `json:"amount"`
}

type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	Size      int        `json:"size"`
}

type Notification struct {
	Operation  string    `json:"operation"`
	ProductID  int       `json:"product_id"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
