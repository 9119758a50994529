package cart

import (
	cartdto "github.com/angelmondragon/rocketshoes-cart/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/rocketshoes-cart/internal/cart"
)

func newCart(sessionID string, items []cartsvc.LineItem) cartdto.Cart {
	out := make([]cartdto.CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, cartdto.CartItem{
			ID:     item.ID,
			Title:  item.Title,
			Price:  item.Price,
			Image:  item.Image,
			Amount: item.Amount,
		})
	}
	return cartdto.Cart{
		SessionID: sessionID,
		Items:     out,
		Size:      len(out),
	}
}

func newNotifications(in []cartsvc.Notification) []cartdto.Notification {
	out := make([]cartdto.Notification, 0, len(in))
	for _, n := range in {
		out = append(out, cartdto.Notification{
			Operation:  n.Operation,
			ProductID:  n.ProductID,
			Code:       n.Code,
			Message:    n.Message,
			OccurredAt: n.OccurredAt,
		})
	}
	return out
}
