package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Stripe caps event payloads well below this
const maxWebhookBodyBytes = 1 << 20

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type stripeWebhook struct {
	svc   StripeWebhookService
	guard stripeWebhookGuard
	logg  *logger.Logger
	// secret is read per request so a missing configuration answers 500
	// rather than failing route registration.
	client stripeClient
}

// StripeWebhook verifies and applies payment intent events. Each event id is
// applied once; when applying fails the mark is released so Stripe's retry
// gets another chance.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	h := &stripeWebhook{svc: svc, guard: guard, logg: logg, client: client}
	return h.serve
}

func (h *stripeWebhook) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	secret := h.signingSecret()
	if h.svc == nil || h.guard == nil || secret == "" {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhooks are not configured"))
		return
	}

	event, err := h.verify(w, r, secret)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	ctx = h.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	seen, err := h.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if seen {
		h.logg.Info(ctx, "stripe event already applied")
		responses.WriteSuccess(w, map[string]bool{"duplicate": true})
		return
	}

	if err := h.svc.HandleEvent(ctx, &event); err != nil {
		if releaseErr := h.guard.Delete(context.WithoutCancel(ctx), event.ID); releaseErr != nil {
			h.logg.Error(ctx, "failed to release stripe event mark", releaseErr)
		}
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	h.logg.Info(ctx, "stripe event applied")
	responses.WriteSuccess(w, map[string]bool{"received": true})
}

func (h *stripeWebhook) signingSecret() string {
	if h.client == nil {
		return ""
	}
	return strings.TrimSpace(h.client.SigningSecret())
}

// verify reads the body and checks Stripe-Signature. Events sent with a
// different API version are accepted; only intent fields are read from them.
func (h *stripeWebhook) verify(w http.ResponseWriter, r *http.Request, secret string) (stripe.Event, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return event, nil
}
