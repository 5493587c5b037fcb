package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

const (
	msgPaymentUnavailable = "payment unavailable, retry"
	msgPaymentDeclined    = "payment was declined"
	msgConfirmFailed      = "payment confirmation failed, please try again"
	defaultSuccessURL     = "/success"
)

var (
	errMissingClientSecret = errors.New("gateway response has no client secret")
	errStaleHandle         = errors.New("payment intent no longer matches the cart")
)

// Options tunes an Orchestrator.
type Options struct {
	SuccessURL string
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
}

// Orchestrator drives intent creation and confirmation for one cart.
//
// Evaluate requests a fresh intent whenever the cart amount or cart version
// differs from the ones the current handle was issued for, except while a
// confirmation is in flight. Calls that arrive
// while an intent request is outstanding wait for it and trigger exactly one
// follow-up evaluation instead of issuing overlapping requests.
type Orchestrator struct {
	cart    CartSource
	gateway Gateway
	opts    Options

	mu       sync.Mutex
	state    State
	handle   *PaymentIntentHandle
	issuedAt uint64 // cart version the handle was requested for
	billing  BillingDetails
	lastErr  string
	inflight bool
	pending  bool
	done     chan struct{}
}

// New returns an orchestrator in the idle state.
func New(cart CartSource, gateway Gateway, opts Options) (*Orchestrator, error) {
	if cart == nil {
		return nil, errors.New("cart source is required")
	}
	if gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	if strings.TrimSpace(opts.SuccessURL) == "" {
		opts.SuccessURL = defaultSuccessURL
	}
	return &Orchestrator{cart: cart, gateway: gateway, opts: opts, state: StateIdle}, nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Handle returns the current payment intent handle, if any.
func (o *Orchestrator) Handle() (PaymentIntentHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle == nil {
		return PaymentIntentHandle{}, false
	}
	return *o.handle, true
}

// LastError is the buyer-facing message of the most recent failure.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Snapshot returns the draft the checkout form renders.
func (o *Orchestrator) Snapshot() Draft {
	o.mu.Lock()
	defer o.mu.Unlock()
	d := Draft{
		State:       o.state,
		Total:       o.cart.Total().StringFixed(2),
		Lines:       o.cart.Lines(),
		Name:        o.billing.Name,
		AddressLine: o.billing.AddressLine,
		Error:       o.lastErr,
	}
	if o.handle != nil {
		d.ClientSecret = o.handle.ClientSecret
		d.IntentID = o.handle.IntentID
		d.AmountMinor = o.handle.AmountMinor
	}
	return d
}

// Evaluate reconciles the payment intent with the current cart total.
// A non-positive total returns the orchestrator to idle without contacting the
// gateway. Intent failures leave it in intent_failed and return a dependency error.
func (o *Orchestrator) Evaluate(ctx context.Context) (Draft, error) {
	o.mu.Lock()
	if o.inflight {
		o.pending = true
		done := o.done
		o.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		}
		return o.Snapshot(), o.intentError()
	}
	o.inflight = true
	o.done = make(chan struct{})
	o.mu.Unlock()

	var err error
	for {
		err = o.deriveIntent(ctx)
		o.mu.Lock()
		if !o.pending {
			o.inflight = false
			close(o.done)
			o.mu.Unlock()
			break
		}
		o.mu.Unlock()
	}

	return o.Snapshot(), err
}

func (o *Orchestrator) deriveIntent(ctx context.Context) error {
	// gateway calls are not cancellable once issued
	callCtx := context.WithoutCancel(ctx)
	var result error
	for {
		// version first: an edit landing in between leaves it behind and forces another pass
		version := o.cart.Version()
		amount := money.ToMinorUnits(o.cart.Total())

		o.mu.Lock()
		o.pending = false
		if !o.needsIntent(ctx, amount, version) {
			o.mu.Unlock()
			return result
		}
		o.handle = nil
		o.transition(ctx, StateAwaitingIntent)
		o.mu.Unlock()

		started := time.Now()
		handle, err := o.gateway.CreateIntent(callCtx, amount)
		if err == nil && strings.TrimSpace(handle.ClientSecret) == "" {
			err = errMissingClientSecret
		}
		o.opts.Metrics.ObserveIntent(time.Since(started), err)

		o.mu.Lock()
		if err != nil {
			o.lastErr = msgPaymentUnavailable
			o.transition(ctx, StateIntentFailed)
			result = pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgPaymentUnavailable)
			if o.opts.Logger != nil {
				o.opts.Logger.Warn(o.opts.Logger.WithFields(ctx, map[string]any{"amount": amount, "error": err.Error()}), "payment intent request failed")
			}
		} else {
			handle.AmountMinor = amount
			o.handle = &handle
			o.issuedAt = version
			o.lastErr = ""
			o.transition(ctx, StateReadyToPay)
			result = nil
		}
		again := o.pending || (err == nil && o.cart.Version() != version)
		o.mu.Unlock()

		if !again {
			return result
		}
	}
}

// needsIntent decides whether a gateway call is required; caller holds o.mu.
func (o *Orchestrator) needsIntent(ctx context.Context, amount int64, version uint64) bool {
	switch o.state {
	case StateConfirming, StateSucceeded:
		return false
	}
	if amount <= 0 {
		o.handle = nil
		o.lastErr = ""
		o.transition(ctx, StateIdle)
		return false
	}
	return o.handle == nil || o.handle.AmountMinor != amount || o.issuedAt != version
}

func (o *Orchestrator) intentError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateIntentFailed {
		return pkgerrors.New(pkgerrors.CodeDependency, msgPaymentUnavailable)
	}
	return nil
}

// Submit confirms the payment with the buyer's billing details. Validation
// failures return before any state change. On success the cart is cleared and
// the redirect destination is returned; a decline leaves the cart untouched
// and the orchestrator in failed so the buyer can resubmit.
func (o *Orchestrator) Submit(ctx context.Context, billing BillingDetails) (SubmitResult, error) {
	if err := billing.Validate(); err != nil {
		return SubmitResult{}, err
	}
	billing.Name = strings.TrimSpace(billing.Name)
	billing.AddressLine = strings.TrimSpace(billing.AddressLine)

	handle, err := o.beginConfirm(ctx, billing)
	if errors.Is(err, errStaleHandle) {
		if _, err := o.Evaluate(ctx); err != nil {
			return SubmitResult{}, err
		}
		handle, err = o.beginConfirm(ctx, billing)
		if errors.Is(err, errStaleHandle) {
			return SubmitResult{}, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "cart changed during checkout, retry")
		}
	}
	if err != nil {
		return SubmitResult{}, err
	}

	result, err := o.gateway.Confirm(context.WithoutCancel(ctx), handle, billing)
	return o.finishConfirm(ctx, handle, result, err)
}

func (o *Orchestrator) beginConfirm(ctx context.Context, billing BillingDetails) (PaymentIntentHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.billing = billing
	switch o.state {
	case StateReadyToPay, StateFailed:
	case StateConfirming:
		return PaymentIntentHandle{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment confirmation already in progress")
	case StateSucceeded:
		return PaymentIntentHandle{}, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout already completed")
	default:
		return PaymentIntentHandle{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not ready").
			WithDetails(map[string]any{"state": o.state})
	}

	version := o.cart.Version()
	amount := money.ToMinorUnits(o.cart.Total())
	if amount <= 0 {
		o.handle = nil
		o.transition(ctx, StateIdle)
		return PaymentIntentHandle{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if o.handle == nil || o.handle.AmountMinor != amount || o.issuedAt != version {
		return PaymentIntentHandle{}, errStaleHandle
	}

	o.lastErr = ""
	o.transition(ctx, StateConfirming)
	return *o.handle, nil
}

func (o *Orchestrator) finishConfirm(ctx context.Context, handle PaymentIntentHandle, result ConfirmResult, err error) (SubmitResult, error) {
	if err != nil || result.Status != ConfirmSucceeded {
		var out error
		msg := msgConfirmFailed
		if err != nil {
			out = pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
		} else {
			if strings.TrimSpace(result.Message) != "" {
				msg = result.Message
			} else {
				msg = msgPaymentDeclined
			}
			out = pkgerrors.New(pkgerrors.CodePaymentDeclined, msg)
		}
		o.mu.Lock()
		o.lastErr = msg
		o.transition(ctx, StateFailed)
		o.mu.Unlock()
		return SubmitResult{}, out
	}

	if clearErr := o.cart.Clear(ctx); clearErr != nil && o.opts.Logger != nil {
		o.opts.Logger.Warn(o.opts.Logger.WithField(ctx, "error", clearErr.Error()), "cart clear after payment did not persist")
	}

	o.mu.Lock()
	o.lastErr = ""
	o.transition(ctx, StateSucceeded)
	o.mu.Unlock()

	return SubmitResult{State: StateSucceeded, Redirect: o.opts.SuccessURL, IntentID: handle.IntentID}, nil
}

// transition moves to the next state; caller holds o.mu.
func (o *Orchestrator) transition(ctx context.Context, to State) {
	from := o.state
	if from == to {
		return
	}
	o.state = to
	o.opts.Metrics.Transition(from.String(), to.String())
	if o.opts.Logger != nil {
		o.opts.Logger.Debug(o.opts.Logger.WithFields(ctx, map[string]any{"from": from, "to": to}), "checkout transition")
	}
}
