package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgstripe "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type intentCreator interface {
	CreateIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.Intent, error)
}

// StripeGateway creates intents through the payments service and confirms
// them server-side with the buyer's billing details attached as shipping.
type StripeGateway struct {
	intents     intentCreator
	stripe      pkgstripe.PaymentIntentClient
	cartSession string
	returnURL   string
}

func NewStripeGateway(intents intentCreator, client pkgstripe.PaymentIntentClient, cartSession, returnURL string) (*StripeGateway, error) {
	if intents == nil {
		return nil, errors.New("payments service is required")
	}
	if client == nil {
		return nil, errors.New("stripe payment intent client is required")
	}
	return &StripeGateway{
		intents:     intents,
		stripe:      client,
		cartSession: cartSession,
		returnURL:   strings.TrimSpace(returnURL),
	}, nil
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64) (PaymentIntentHandle, error) {
	intent, err := g.intents.CreateIntent(ctx, payments.CreateIntentInput{
		AmountCents: amountMinor,
		CartSession: g.cartSession,
	})
	if err != nil {
		return PaymentIntentHandle{}, err
	}
	return PaymentIntentHandle{
		ClientSecret: intent.ClientSecret,
		IntentID:     intent.ID,
		AmountMinor:  intent.AmountCents,
	}, nil
}

// Confirm maps Stripe outcomes onto ConfirmResult. Card errors and intents
// that still need buyer action are declines; anything else is a transport error.
func (g *StripeGateway) Confirm(ctx context.Context, handle PaymentIntentHandle, billing BillingDetails) (ConfirmResult, error) {
	if handle.IntentID == "" {
		return ConfirmResult{}, errors.New("payment intent id is required")
	}
	params := &stripe.PaymentIntentConfirmParams{
		Shipping: &stripe.ShippingDetailsParams{
			Name: stripe.String(billing.Name),
			Address: &stripe.AddressParams{
				Line1: stripe.String(billing.AddressLine),
			},
		},
	}
	if pm := strings.TrimSpace(billing.PaymentMethod); pm != "" {
		params.PaymentMethod = stripe.String(pm)
	}
	if g.returnURL != "" {
		params.ReturnURL = stripe.String(g.returnURL)
	}

	pi, err := g.stripe.Confirm(ctx, handle.IntentID, params)
	if err != nil {
		if pkgstripe.IsCardError(err) {
			return ConfirmResult{Status: ConfirmDeclined, Message: pkgstripe.ErrorMessage(err)}, nil
		}
		return ConfirmResult{}, err
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return ConfirmResult{Status: ConfirmSucceeded}, nil
	case stripe.PaymentIntentStatusRequiresAction:
		return ConfirmResult{Status: ConfirmDeclined, Message: "additional authentication is required"}, nil
	default:
		msg := ""
		if pi.LastPaymentError != nil {
			msg = pi.LastPaymentError.Msg
		}
		return ConfirmResult{Status: ConfirmDeclined, Message: msg}, nil
	}
}
