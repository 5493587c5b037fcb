package cart

import (
	"encoding/json"

	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
)

func newCartView(sessionID string, store *cartsvc.Store) cartdto.Cart {
	lines := store.Lines()
	out := cartdto.Cart{
		Session: sessionID,
		Lines:   make([]cartdto.CartLine, 0, len(lines)),
		Total:   store.Total().StringFixed(2),
	}
	for _, l := range lines {
		out.Lines = append(out.Lines, cartdto.CartLine{
			ID:        l.ProductID,
			Name:      l.Name,
			Price:     json.Number(l.UnitPrice.String()),
			Thumbnail: l.Thumbnail,
			Size:      l.Variant,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal().StringFixed(2),
		})
		out.Count += l.Quantity
	}
	return out
}
