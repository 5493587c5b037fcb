package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Collection groups items for the storefront landing pages.
type Collection struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string         `gorm:"column:name;not null"`
	Description *string        `gorm:"column:description"`
	Images      pq.StringArray `gorm:"column:images;type:text[];not null;default:'{}'"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Collection) TableName() string { return "collections" }
