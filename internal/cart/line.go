package cart

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantity caps a single line so quantity sums never overflow.
const MaxQuantity = 9999

// Line is one (product, variant) entry in a cart. A nil Variant means the
// product has no size axis.
type Line struct {
	ProductID string
	Variant   *string
	Name      string
	UnitPrice decimal.Decimal
	Thumbnail string
	Quantity  int
}

// Key identifies a line inside a cart.
type Key struct {
	ProductID  string
	Variant    string
	HasVariant bool
}

// KeyOf builds the merge key for a product and optional variant.
func KeyOf(productID string, variant *string) Key {
	if variant == nil {
		return Key{ProductID: productID}
	}
	return Key{ProductID: productID, Variant: *variant, HasVariant: true}
}

func (l Line) Key() Key {
	return KeyOf(l.ProductID, l.Variant)
}

// Subtotal is unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) clone() Line {
	if l.Variant != nil {
		v := *l.Variant
		l.Variant = &v
	}
	return l
}

func normalize(l Line) Line {
	l.ProductID = strings.TrimSpace(l.ProductID)
	if l.Variant != nil {
		v := strings.TrimSpace(*l.Variant)
		if v == "" {
			l.Variant = nil
		} else {
			l.Variant = &v
		}
	}
	l.Quantity = clampQuantity(l.Quantity)
	return l
}

func clampQuantity(q int) int {
	switch {
	case q <= 0:
		return 1
	case q > MaxQuantity:
		return MaxQuantity
	}
	return q
}

// record is the persisted shape: {"id","name","price","thumbnail","size","quantity"}
// with price as a bare JSON number.
type record struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     json.RawMessage `json:"price"`
	Thumbnail string          `json:"thumbnail"`
	Size      *string         `json:"size"`
	Quantity  int             `json:"quantity"`
}

func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		ID:        l.ProductID,
		Name:      l.Name,
		Price:     json.RawMessage(l.UnitPrice.String()),
		Thumbnail: l.Thumbnail,
		Size:      l.Variant,
		Quantity:  l.Quantity,
	})
}

func (l *Line) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	price := decimal.Zero
	if len(rec.Price) > 0 && string(rec.Price) != "null" {
		if err := price.UnmarshalJSON(rec.Price); err != nil {
			return err
		}
	}
	*l = Line{
		ProductID: rec.ID,
		Variant:   rec.Size,
		Name:      rec.Name,
		UnitPrice: price,
		Thumbnail: rec.Thumbnail,
		Quantity:  rec.Quantity,
	}
	return nil
}
