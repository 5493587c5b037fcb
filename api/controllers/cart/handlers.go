package cart

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Registry resolves the cart store of a session.
type Registry interface {
	Get(ctx context.Context, sessionID string) (*cartsvc.Store, error)
}

// CheckoutPeeker exposes a session's orchestrator if the shopper already
// opened checkout on this cart store, so cart edits can re-derive the payment intent.
type CheckoutPeeker interface {
	Peek(sessionID string, cart checkout.CartSource) (*checkout.Orchestrator, bool)
}

// Handlers groups the cart endpoints.
type Handlers struct {
	carts    Registry
	checkout CheckoutPeeker
	logg     *logger.Logger
}

func NewHandlers(carts Registry, peeker CheckoutPeeker, logg *logger.Logger) *Handlers {
	return &Handlers{carts: carts, checkout: peeker, logg: logg}
}

// Fetch returns the session's cart.
func (h *Handlers) Fetch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, store, ok := h.open(w, r)
		if !ok {
			return
		}
		responses.WriteSuccess(w, newCartView(sessionID, store))
	}
}

// AddLine merges a product into the cart.
func (h *Handlers) AddLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cartdto.AddLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), h.logg, w, err)
			return
		}
		line, err := toLine(payload)
		if err != nil {
			responses.WriteError(r.Context(), h.logg, w, err)
			return
		}

		sessionID, store, ok := h.open(w, r)
		if !ok {
			return
		}
		// a failed save is logged by the store; the in-memory cart still changed
		_ = store.Add(r.Context(), line)
		h.refreshCheckout(r.Context(), sessionID, store)

		responses.WriteSuccess(w, newCartView(sessionID, store))
	}
}

// RemoveLine drops the (id, ?size=) line; unknown lines are ignored.
func (h *Handlers) RemoveLine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, store, ok := h.open(w, r)
		if !ok {
			return
		}
		_ = store.Remove(r.Context(), chi.URLParam(r, "productId"), variantParam(r.URL.Query()))
		h.refreshCheckout(r.Context(), sessionID, store)

		responses.WriteSuccess(w, newCartView(sessionID, store))
	}
}

// Clear empties the cart.
func (h *Handlers) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, store, ok := h.open(w, r)
		if !ok {
			return
		}
		_ = store.Clear(r.Context())
		h.refreshCheckout(r.Context(), sessionID, store)

		responses.WriteSuccess(w, newCartView(sessionID, store))
	}
}

func (h *Handlers) open(w http.ResponseWriter, r *http.Request) (string, *cartsvc.Store, bool) {
	if h == nil || h.carts == nil {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return "", nil, false
	}
	sessionID := middleware.CartSessionFromContext(r.Context())
	if sessionID == "" {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart session missing"))
		return "", nil, false
	}
	store, err := h.carts.Get(r.Context(), sessionID)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart"))
		return "", nil, false
	}
	return sessionID, store, true
}

func (h *Handlers) refreshCheckout(ctx context.Context, sessionID string, store *cartsvc.Store) {
	if h.checkout == nil {
		return
	}
	orch, ok := h.checkout.Peek(sessionID, store)
	if !ok {
		return
	}
	if _, err := orch.Evaluate(ctx); err != nil && h.logg != nil {
		h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "checkout refresh after cart change failed")
	}
}
