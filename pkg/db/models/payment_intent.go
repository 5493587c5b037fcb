package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// PaymentIntent mirrors a Stripe payment intent created by the storefront.
type PaymentIntent struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StripeIntentID string              `gorm:"column:stripe_intent_id;not null;uniqueIndex"`
	AmountCents    int64               `gorm:"column:amount_cents;not null"`
	Currency       string              `gorm:"column:currency;not null;default:'usd'"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	CartSession    *string             `gorm:"column:cart_session"`
	FailureReason  *string             `gorm:"column:failure_reason"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }
