package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product holds the display fields the inventory service returns for a product.
type Product struct {
	ID    int             `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// LineItem is one distinct product in the cart together with the requested quantity.
type LineItem struct {
	Product
	Amount int `json:"amount"`
}

// Stock is the inventory's available quantity for a product at query time.
type Stock struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}

// Notification is the user-facing report of a failed cart operation.
type Notification struct {
	SessionID  string    `json:"session_id,omitempty"`
	Operation  string    `json:"operation"`
	ProductID  int       `json:"product_id"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

const snapshotKeyBase = "cart"

// SnapshotKey returns the store key holding the cart of the given session.
func SnapshotKey(sessionID string) string {
	if sessionID == "" {
		return snapshotKeyBase
	}
	return snapshotKeyBase + ":" + sessionID
}

func indexOf(items []LineItem, productID int) int {
	for i := range items {
		if items[i].ID == productID {
			return i
		}
	}
	return -1
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
