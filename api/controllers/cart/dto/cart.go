package cartdto

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AddLineRequest is one product added from the product page.
type AddLineRequest struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail"`
	Size      *string         `json:"size"`
	Quantity  int             `json:"quantity" validate:"gte=0,lte=9999"`
}

// CartLine mirrors the persisted line shape: price is a bare JSON number.
type CartLine struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Thumbnail string      `json:"thumbnail"`
	Size      *string     `json:"size"`
	Quantity  int         `json:"quantity"`
	Subtotal  string      `json:"subtotal"`
}

// Cart is the cart view returned by every cart endpoint.
type Cart struct {
	Session string     `json:"session"`
	Lines   []CartLine `json:"lines"`
	Total   string     `json:"total"`
	Count   int        `json:"count"`
}
