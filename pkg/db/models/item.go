package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Item is a purchasable catalog entry. Sizes is NULL when the item has no size axis.
type Item struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string           `gorm:"column:name;not null"`
	Price        *decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	Description  *string          `gorm:"column:description"`
	Sizes        pq.StringArray   `gorm:"column:sizes;type:text[]"`
	Images       pq.StringArray   `gorm:"column:images;type:text[];not null"`
	CollectionID *uuid.UUID       `gorm:"column:collection_id;type:uuid"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }
