package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type cartRegistry interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

type checkoutSessions interface {
	Get(sessionID string, cart checkoutsvc.CartSource) (*checkoutsvc.Orchestrator, error)
}

type checkoutConfirmRequest struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	PaymentMethod string `json:"payment_method"`
}

// CheckoutHandlers serves the server-side checkout flow for a cart session.
type CheckoutHandlers struct {
	carts    cartRegistry
	sessions checkoutSessions
	logg     *logger.Logger
}

func NewCheckoutHandlers(carts cartRegistry, sessions checkoutSessions, logg *logger.Logger) *CheckoutHandlers {
	return &CheckoutHandlers{carts: carts, sessions: sessions, logg: logg}
}

// Snapshot returns the current checkout draft without contacting the gateway.
func (h *CheckoutHandlers) Snapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orch, ok := h.orchestrator(w, r)
		if !ok {
			return
		}
		responses.WriteSuccess(w, orch.Snapshot())
	}
}

// Intent reconciles the payment intent with the cart total.
func (h *CheckoutHandlers) Intent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orch, ok := h.orchestrator(w, r)
		if !ok {
			return
		}
		draft, err := orch.Evaluate(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), h.logg, w, err)
			return
		}
		responses.WriteSuccess(w, draft)
	}
}

// Confirm submits the billing details against the current intent.
func (h *CheckoutHandlers) Confirm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body checkoutConfirmRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), h.logg, w, err)
			return
		}

		orch, ok := h.orchestrator(w, r)
		if !ok {
			return
		}

		result, err := orch.Submit(r.Context(), checkoutsvc.BillingDetails{
			Name:          body.Name,
			AddressLine:   body.Address,
			PaymentMethod: body.PaymentMethod,
		})
		if err != nil {
			responses.WriteError(r.Context(), h.logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func (h *CheckoutHandlers) orchestrator(w http.ResponseWriter, r *http.Request) (*checkoutsvc.Orchestrator, bool) {
	ctx := r.Context()
	if h == nil || h.carts == nil || h.sessions == nil {
		responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
		return nil, false
	}
	sessionID := middleware.CartSessionFromContext(ctx)
	if sessionID == "" {
		responses.WriteError(ctx, h.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart session missing"))
		return nil, false
	}
	store, err := h.carts.Get(ctx, sessionID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart"))
		return nil, false
	}
	orch, err := h.sessions.Get(sessionID, store)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open checkout"))
		return nil, false
	}
	return orch, true
}
