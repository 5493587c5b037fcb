package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const msgAmountRequired = "Amount is required"

type createIntentRequest struct {
	Amount *int64 `json:"amount"`
}

// CreatePaymentIntentResponse is the intent-creation success body.
type CreatePaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreatePaymentIntent serves the raw intent-creation call used by browser
// checkouts: {amount} in minor units in, {clientSecret} out. Every failure is
// reported as {error}; provider problems surface as 500.
func CreatePaymentIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteFlatError(ctx, logg, w, http.StatusInternalServerError, pkgerrors.New(pkgerrors.CodeInternal, "Stripe is not configured"))
			return
		}

		var body createIntentRequest
		if err := validators.DecodeLooseJSONBody(r, &body); err != nil || body.Amount == nil || *body.Amount <= 0 {
			responses.WriteFlatError(ctx, logg, w, http.StatusBadRequest, pkgerrors.New(pkgerrors.CodeValidation, msgAmountRequired))
			return
		}

		intent, err := svc.CreateIntent(ctx, payments.CreateIntentInput{
			AmountCents: *body.Amount,
			CartSession: r.Header.Get(middleware.CartSessionHeader),
		})
		if err != nil {
			status := http.StatusInternalServerError
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
				status = http.StatusBadRequest
			}
			responses.WriteFlatError(ctx, logg, w, status, err)
			return
		}

		responses.WriteRaw(w, http.StatusOK, CreatePaymentIntentResponse{ClientSecret: intent.ClientSecret})
	}
}
