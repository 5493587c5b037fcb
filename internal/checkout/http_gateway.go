package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	maxIntentResponseBytes = 1 << 20
	secretSeparator        = "_secret_"
)

// Confirmer settles a payment intent; HTTPGateway delegates confirmation to it.
type Confirmer interface {
	Confirm(ctx context.Context, handle PaymentIntentHandle, billing BillingDetails) (ConfirmResult, error)
}

// HTTPGateway requests intents from a create-payment-intent endpoint.
type HTTPGateway struct {
	endpoint  string
	client    *http.Client
	confirmer Confirmer
}

func NewHTTPGateway(endpoint string, client *http.Client, confirmer Confirmer) (*HTTPGateway, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("intent endpoint is required")
	}
	if confirmer == nil {
		return nil, errors.New("confirmer is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPGateway{endpoint: endpoint, client: client, confirmer: confirmer}, nil
}

type intentRequest struct {
	Amount int64 `json:"amount"`
}

type intentResponse struct {
	ClientSecret string `json:"clientSecret"`
	Error        string `json:"error"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, amountMinor int64) (PaymentIntentHandle, error) {
	body, err := json.Marshal(intentRequest{Amount: amountMinor})
	if err != nil {
		return PaymentIntentHandle{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return PaymentIntentHandle{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return PaymentIntentHandle{}, fmt.Errorf("request payment intent: %w", err)
	}
	defer resp.Body.Close()

	var decoded intentResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxIntentResponseBytes))
	if err != nil {
		return PaymentIntentHandle{}, fmt.Errorf("read payment intent response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil && resp.StatusCode < 300 {
			return PaymentIntentHandle{}, fmt.Errorf("decode payment intent response: %w", err)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decoded.Error != "" {
			return PaymentIntentHandle{}, fmt.Errorf("payment intent endpoint returned %d: %s", resp.StatusCode, decoded.Error)
		}
		return PaymentIntentHandle{}, fmt.Errorf("payment intent endpoint returned %d", resp.StatusCode)
	}
	if strings.TrimSpace(decoded.ClientSecret) == "" {
		return PaymentIntentHandle{}, errMissingClientSecret
	}
	return PaymentIntentHandle{
		ClientSecret: decoded.ClientSecret,
		IntentID:     intentIDFromSecret(decoded.ClientSecret),
		AmountMinor:  amountMinor,
	}, nil
}

func (g *HTTPGateway) Confirm(ctx context.Context, handle PaymentIntentHandle, billing BillingDetails) (ConfirmResult, error) {
	return g.confirmer.Confirm(ctx, handle, billing)
}

// intentIDFromSecret returns the "pi_..." prefix of a Stripe client secret.
func intentIDFromSecret(secret string) string {
	if idx := strings.Index(secret, secretSeparator); idx > 0 {
		return secret[:idx]
	}
	return ""
}
