package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ItemDTO is the storefront representation of a catalog item.
type ItemDTO struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Price        *float64   `json:"price"`
	Description  *string    `json:"description"`
	Sizes        []string   `json:"sizes"`
	Images       []string   `json:"images"`
	CollectionID *uuid.UUID `json:"collection_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CollectionDTO is a collection plus, on detail reads, its items.
type CollectionDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Images      []string  `json:"images"`
	Items       []ItemDTO `json:"items,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ItemList is one page of items.
type ItemList struct {
	Items      []ItemDTO `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// CreateItemInput is the payload accepted by item creation.
type CreateItemInput struct {
	Name         string
	Price        *decimal.Decimal
	Description  *string
	Sizes        []string
	Images       []string
	CollectionID *uuid.UUID
}

// UpdateItemInput carries optional changes; Nullable fields may be cleared with null.
type UpdateItemInput struct {
	Name         *string
	Price        types.Nullable[decimal.Decimal]
	Description  types.Nullable[string]
	Sizes        types.Nullable[[]string]
	Images       *[]string
	CollectionID types.Nullable[uuid.UUID]
}

type ListItemsInput struct {
	CollectionID *uuid.UUID
	Limit        int
	Cursor       string
}

type CreateCollectionInput struct {
	Name        string
	Description *string
	Images      []string
}

type UpdateCollectionInput struct {
	Name        *string
	Description types.Nullable[string]
	Images      *[]string
}

// NewItemDTO maps a model into its response form.
func NewItemDTO(m models.Item) ItemDTO {
	dto := ItemDTO{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Images:       nonNilStrings(m.Images),
		CollectionID: m.CollectionID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Price != nil {
		v := m.Price.InexactFloat64()
		dto.Price = &v
	}
	if m.Sizes != nil {
		dto.Sizes = []string(m.Sizes)
	}
	return dto
}

func NewCollectionDTO(m models.Collection) CollectionDTO {
	return CollectionDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Images:      nonNilStrings(m.Images),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return []string(in)
}
