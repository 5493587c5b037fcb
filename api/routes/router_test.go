package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubCatalog struct {
	catalog.Service
	created []catalog.CreateItemInput
}

func (s *stubCatalog) CreateItem(ctx context.Context, input catalog.CreateItemInput) (*catalog.ItemDTO, error) {
	if strings.TrimSpace(input.Name) == "" || len(input.Images) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Name and at least one image are required")
	}
	s.created = append(s.created, input)
	return &catalog.ItemDTO{ID: uuid.New(), Name: input.Name, Images: input.Images}, nil
}

func (s *stubCatalog) ListCollections(ctx context.Context) ([]catalog.CollectionDTO, error) {
	return []catalog.CollectionDTO{{ID: uuid.New(), Name: "Summer", Images: []string{}}}, nil
}

type stubPayments struct {
	amounts []int64
}

func (s *stubPayments) CreateIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.Intent, error) {
	s.amounts = append(s.amounts, input.AmountCents)
	return &payments.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_abc", AmountCents: input.AmountCents}, nil
}

func (s *stubPayments) HandleEvent(ctx context.Context, event *stripe.Event) error { return nil }

type stubAuth struct{}

func (stubAuth) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

type fakeGateway struct {
	mu       sync.Mutex
	intents  []int64
	confirms int
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amountMinor int64) (checkout.PaymentIntentHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents = append(g.intents, amountMinor)
	return checkout.PaymentIntentHandle{ClientSecret: "pi_2_secret_xyz", IntentID: "pi_2"}, nil
}

func (g *fakeGateway) Confirm(ctx context.Context, handle checkout.PaymentIntentHandle, billing checkout.BillingDetails) (checkout.ConfirmResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirms++
	return checkout.ConfirmResult{Status: checkout.ConfirmSucceeded}, nil
}

type harness struct {
	handler  http.Handler
	cfg      *config.Config
	catalog  *stubCatalog
	payments *stubPayments
	gateway  *fakeGateway
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		App:   config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT:   config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 10},
		Media: config.MediaConfig{MaxUploadMB: 1},
	}

	registry, err := cart.NewRegistry(cart.NewMemoryPersistence(), logger.Nop())
	require.NoError(t, err)

	gw := &fakeGateway{}
	sessions, err := checkout.NewSessions(func(string) checkout.Gateway { return gw }, checkout.Options{SuccessURL: "/success"})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	h := &harness{cfg: cfg, catalog: &stubCatalog{}, payments: &stubPayments{}, gateway: gw}
	h.handler = NewRouter(Dependencies{
		Config:   cfg,
		Logger:   logger.Nop(),
		Gatherer: reg,
		HTTP:     metrics.NewHTTPMetrics(reg),
		Pingers:  map[string]controllers.Pinger{"db": stubPinger{}},
		Carts:    registry,
		Checkout: sessions,
		Catalog:  h.catalog,
		Payments: h.payments,
		Auth:     stubAuth{},
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) adminHeader(t *testing.T) map[string]string {
	t.Helper()
	token, _, err := pkgAuth.MintAdminToken(h.cfg.JWT, time.Now(), pkgAuth.AdminTokenPayload{Email: "admin@example.com"})
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/ready", "", nil).Code)
}

func TestMethodNotAllowedUsesFlatBody(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/api/create-payment-intent", "/api/create-item"} {
		rec := h.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePaymentIntent(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/create-payment-intent", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Amount is required"}`, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/create-payment-intent", `{"amount":2400}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clientSecret":"pi_1_secret_abc"}`, rec.Body.String())
	assert.Equal(t, []int64{2400}, h.payments.amounts)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/admin/items", `{"name":"x","images":["a"]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/create-item", `{"name":"x","images":["a"]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLegacyCreateItem(t *testing.T) {
	h := newHarness(t)
	headers := h.adminHeader(t)

	rec := h.do(t, http.MethodPost, "/api/create-item", `{"name":"","images":[]}`, headers)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Name and at least one image are required"}`, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/create-item", `{"name":"Tee","price":25,"description":null,"sizes":null,"images":["https://img/1.png"]}`, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Success bool `json:"success"`
		Item    struct {
			Name string `json:"name"`
		} `json:"item"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Tee", body.Item.Name)
	require.Len(t, h.catalog.created, 1)
	assert.Equal(t, "25", h.catalog.created[0].Price.String())
}

func TestPublicCatalog(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/collections", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Summer")
}

func TestLoginIsWired(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartAndCheckoutFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/cart", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	session := rec.Header().Get(middleware.CartSessionHeader)
	require.NotEmpty(t, session)
	headers := map[string]string{middleware.CartSessionHeader: session}

	rec = h.do(t, http.MethodPost, "/api/cart/items", `{"id":"p1","name":"Tee","price":10,"thumbnail":"t.png","size":"M","quantity":2}`, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.do(t, http.MethodPost, "/api/cart/items", `{"id":"p2","name":"Cap","price":4,"thumbnail":"c.png","quantity":1}`, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var cartView struct {
		Data struct {
			Lines []struct {
				ID    string  `json:"id"`
				Price float64 `json:"price"`
			} `json:"lines"`
			Total string `json:"total"`
			Count int    `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cartView))
	assert.Equal(t, "24.00", cartView.Data.Total)
	assert.Equal(t, 3, cartView.Data.Count)
	assert.Equal(t, 10.0, cartView.Data.Lines[0].Price)

	rec = h.do(t, http.MethodPost, "/api/checkout/confirm", `{"name":"Ada","address":"1 Main St"}`, headers)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/checkout/intent", "", headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var draft struct {
		Data struct {
			State        string `json:"state"`
			ClientSecret string `json:"client_secret"`
			Amount       int64  `json:"amount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	assert.Equal(t, "ready_to_pay", draft.Data.State)
	assert.Equal(t, "pi_2_secret_xyz", draft.Data.ClientSecret)
	assert.Equal(t, int64(2400), draft.Data.Amount)

	// editing the cart with checkout open re-derives the intent
	rec = h.do(t, http.MethodDelete, "/api/cart/items/p2", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{2400, 2000}, h.gateway.intents)

	rec = h.do(t, http.MethodPost, "/api/checkout/confirm", `{"name":""}`, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/checkout/confirm", `{"name":"Ada","address":"1 Main St"}`, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"redirect":"/success"`)
	assert.Equal(t, 1, h.gateway.confirms)

	rec = h.do(t, http.MethodGet, "/api/cart", "", headers)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cartView))
	assert.Equal(t, "0.00", cartView.Data.Total)
	assert.Empty(t, cartView.Data.Lines)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodGet, "/health/live", "", nil)

	rec := h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
