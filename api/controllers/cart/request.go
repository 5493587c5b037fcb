package cart

import (
	"strings"

	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	maxNameLen      = 200
	maxThumbnailLen = 2048
)

func toLine(payload cartdto.AddLineRequest) (cartsvc.Line, error) {
	// a missing price decodes as zero and is rejected here too
	if !payload.Price.IsPositive() {
		return cartsvc.Line{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"price": "must be greater than 0"})
	}
	return cartsvc.Line{
		ProductID: strings.TrimSpace(payload.ID),
		Variant:   payload.Size,
		Name:      validators.SanitizeString(payload.Name, maxNameLen),
		UnitPrice: payload.Price,
		Thumbnail: validators.SanitizeString(payload.Thumbnail, maxThumbnailLen),
		Quantity:  payload.Quantity,
	}, nil
}

// variantParam reads ?size= so that an absent parameter means "no variant".
func variantParam(query map[string][]string) *string {
	values, ok := query["size"]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
