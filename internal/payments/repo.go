package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists the storefront's record of each Stripe payment intent.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return nil, err
	}
	return intent, nil
}

func (r *Repository) FindByStripeID(ctx context.Context, stripeIntentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).First(&intent, "stripe_intent_id = ?", stripeIntentID).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// StatusUpdate describes a webhook-driven change to a payment intent row.
type StatusUpdate struct {
	Status        enums.PaymentStatus
	FailureReason *string
	PaidAt        *time.Time
}

// UpdateStatus applies update unless the row already reached a terminal status.
// It reports whether a row changed.
func (r *Repository) UpdateStatus(ctx context.Context, stripeIntentID string, update StatusUpdate) (bool, error) {
	values := map[string]any{
		"status":         update.Status,
		"failure_reason": update.FailureReason,
	}
	if update.PaidAt != nil {
		values["paid_at"] = *update.PaidAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("stripe_intent_id = ? AND status NOT IN ?", stripeIntentID, enums.TerminalPaymentStatuses()).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
