package checkout

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// State is a step of the two-phase payment handshake.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingIntent State = "awaiting_intent"
	StateIntentFailed   State = "intent_failed"
	StateReadyToPay     State = "ready_to_pay"
	StateConfirming     State = "confirming"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
)

func (s State) String() string { return string(s) }

// Terminal reports whether the checkout is finished.
func (s State) Terminal() bool { return s == StateSucceeded }

// PaymentIntentHandle binds a confirmation attempt to the amount it was created for.
type PaymentIntentHandle struct {
	ClientSecret string
	IntentID     string
	AmountMinor  int64
}

// BillingDetails are the buyer fields collected by the checkout form.
type BillingDetails struct {
	Name          string
	AddressLine   string
	PaymentMethod string
}

// Validate rejects the form before any gateway call is made.
func (b BillingDetails) Validate() error {
	missing := map[string]string{}
	if strings.TrimSpace(b.Name) == "" {
		missing["name"] = "required"
	}
	if strings.TrimSpace(b.AddressLine) == "" {
		missing["address"] = "required"
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "billing details are incomplete").WithDetails(missing)
	}
	return nil
}

type ConfirmStatus string

const (
	ConfirmSucceeded ConfirmStatus = "succeeded"
	ConfirmDeclined  ConfirmStatus = "declined"
)

// ConfirmResult is the gateway verdict. Transport failures are returned as errors instead.
type ConfirmResult struct {
	Status  ConfirmStatus
	Message string
}

// Gateway is the payment provider seen by the orchestrator.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64) (PaymentIntentHandle, error)
	Confirm(ctx context.Context, handle PaymentIntentHandle, billing BillingDetails) (ConfirmResult, error)
}

// CartSource is the slice of the cart store the orchestrator reads and clears.
type CartSource interface {
	Total() decimal.Decimal
	Version() uint64
	Lines() []cart.Line
	Clear(ctx context.Context) error
}

// Draft is the checkout form view: buyer fields, cart snapshot and current handle.
type Draft struct {
	State        State       `json:"state"`
	ClientSecret string      `json:"client_secret,omitempty"`
	IntentID     string      `json:"intent_id,omitempty"`
	AmountMinor  int64       `json:"amount"`
	Total        string      `json:"total"`
	Name         string      `json:"name,omitempty"`
	AddressLine  string      `json:"address,omitempty"`
	Lines        []cart.Line `json:"lines"`
	Error        string      `json:"error,omitempty"`
}

// SubmitResult is returned when a confirmation succeeds.
type SubmitResult struct {
	State    State  `json:"state"`
	Redirect string `json:"redirect"`
	IntentID string `json:"intent_id"`
}
