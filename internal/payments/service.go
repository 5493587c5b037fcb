package payments

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	defaultCurrency      = "usd"
	metadataCartSession  = "cart_session"
	msgAmountRequired    = "Amount is required"
	msgIntentUnavailable = "unable to create payment intent"
)

type intentRepository interface {
	Create(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error)
	UpdateStatus(ctx context.Context, stripeIntentID string, update StatusUpdate) (bool, error)
}

// CreateIntentInput is the amount to charge in minor units plus optional bookkeeping.
type CreateIntentInput struct {
	AmountCents int64
	CartSession string
}

// Intent is the client-facing half of a created payment intent.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Service creates payment intents and tracks their outcome from webhooks.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error)
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type ServiceParams struct {
	Repo     intentRepository
	Stripe   pkgstripe.PaymentIntentClient
	Currency string
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     intentRepository
	stripe   pkgstripe.PaymentIntentClient
	currency string
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment intent repository required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		stripe:   params.Stripe,
		currency: currency,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*Intent, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgAmountRequired)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.AmountCents),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	session := strings.TrimSpace(input.CartSession)
	if session != "" {
		params.AddMetadata(metadataCartSession, session)
	}

	pi, err := s.stripe.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, pkgstripe.ErrorMessage(err))
	}
	if pi == nil || strings.TrimSpace(pi.ClientSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msgIntentUnavailable)
	}

	row := &models.PaymentIntent{
		StripeIntentID: pi.ID,
		AmountCents:    input.AmountCents,
		Currency:       s.currency,
		Status:         enums.PaymentStatusPending,
	}
	if session != "" {
		row.CartSession = &session
	}
	if _, err := s.repo.Create(ctx, row); err != nil && s.logg != nil {
		// the intent exists at Stripe; the webhook cannot update a missing row
		s.logg.Error(s.logg.WithField(ctx, "stripe_intent_id", pi.ID), "persist payment intent", err)
	}

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  input.AmountCents,
		Currency:     s.currency,
	}, nil
}

func (s *service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event payload missing")
	}

	var update StatusUpdate
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		paidAt := s.now().UTC()
		update = StatusUpdate{Status: enums.PaymentStatusPaid, PaidAt: &paidAt}
	case stripe.EventTypePaymentIntentPaymentFailed:
		update = StatusUpdate{Status: enums.PaymentStatusFailed}
	case stripe.EventTypePaymentIntentCanceled:
		update = StatusUpdate{Status: enums.PaymentStatusCanceled}
	default:
		return nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment intent payload")
	}
	if pi.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	if update.Status == enums.PaymentStatusFailed && pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		reason := pi.LastPaymentError.Msg
		update.FailureReason = &reason
	}

	changed, err := s.repo.UpdateStatus(ctx, pi.ID, update)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment intent status")
	}
	if s.logg != nil {
		fields := map[string]any{"stripe_intent_id": pi.ID, "status": update.Status, "changed": changed}
		s.logg.Info(s.logg.WithFields(ctx, fields), "payment intent event applied")
	}
	return nil
}
