package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/media"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type paymentsStub struct {
	input payments.CreateIntentInput
	err   error
}

func (p *paymentsStub) CreateIntent(ctx context.Context, input payments.CreateIntentInput) (*payments.Intent, error) {
	p.input = input
	if p.err != nil {
		return nil, p.err
	}
	return &payments.Intent{ID: "pi_9", ClientSecret: "pi_9_secret", AmountCents: input.AmountCents}, nil
}

func (p *paymentsStub) HandleEvent(context.Context, *stripe.Event) error { return nil }

func TestCreatePaymentIntent(t *testing.T) {
	cases := []struct {
		name   string
		svc    payments.Service
		body   string
		status int
		want   string
	}{
		{name: "not configured", svc: nil, body: `{"amount":100}`, status: http.StatusInternalServerError, want: `{"error":"Stripe is not configured"}`},
		{name: "missing amount", svc: &paymentsStub{}, body: `{}`, status: http.StatusBadRequest, want: `{"error":"Amount is required"}`},
		{name: "zero amount", svc: &paymentsStub{}, body: `{"amount":0}`, status: http.StatusBadRequest, want: `{"error":"Amount is required"}`},
		{name: "malformed", svc: &paymentsStub{}, body: `{"amount":`, status: http.StatusBadRequest, want: `{"error":"Amount is required"}`},
		{name: "provider failure", svc: &paymentsStub{err: pkgerrors.New(pkgerrors.CodeDependency, "unable to create payment intent")}, body: `{"amount":100}`, status: http.StatusInternalServerError, want: `{"error":"unable to create payment intent"}`},
		{name: "created", svc: &paymentsStub{}, body: `{"amount":2400}`, status: http.StatusOK, want: `{"clientSecret":"pi_9_secret"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			CreatePaymentIntent(tc.svc, logger.Nop())(rec, jsonRequest(http.MethodPost, "/api/create-payment-intent", tc.body))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.want, rec.Body.String())
		})
	}
}

func TestCreatePaymentIntentForwardsCartSession(t *testing.T) {
	svc := &paymentsStub{}
	req := jsonRequest(http.MethodPost, "/api/create-payment-intent", `{"amount":500}`)
	req.Header.Set(middleware.CartSessionHeader, "sess-1")

	rec := httptest.NewRecorder()
	CreatePaymentIntent(svc, nil)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(500), svc.input.AmountCents)
	assert.Equal(t, "sess-1", svc.input.CartSession)
}

type catalogStub struct {
	catalog.Service
	createErr error
	item      *catalog.ItemDTO
	getErr    error
	deleted   []uuid.UUID
}

func (c *catalogStub) CreateItem(ctx context.Context, input catalog.CreateItemInput) (*catalog.ItemDTO, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	return &catalog.ItemDTO{ID: uuid.New(), Name: input.Name, Images: input.Images, Sizes: input.Sizes}, nil
}

func (c *catalogStub) GetItem(ctx context.Context, id uuid.UUID) (*catalog.ItemDTO, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.item, nil
}

func (c *catalogStub) DeleteItem(ctx context.Context, id uuid.UUID) error {
	c.deleted = append(c.deleted, id)
	return nil
}

func TestLegacyCreateItem(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		LegacyCreateItem(&catalogStub{}, nil)(rec, jsonRequest(http.MethodPost, "/api/create-item", `{"name":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error"`)
	})

	t.Run("validation", func(t *testing.T) {
		svc := &catalogStub{createErr: pkgerrors.New(pkgerrors.CodeValidation, "Name and at least one image are required")}
		rec := httptest.NewRecorder()
		LegacyCreateItem(svc, nil)(rec, jsonRequest(http.MethodPost, "/api/create-item", `{"name":""}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Name and at least one image are required"}`, rec.Body.String())
	})

	t.Run("storage failure", func(t *testing.T) {
		svc := &catalogStub{createErr: errors.New("connection reset")}
		rec := httptest.NewRecorder()
		LegacyCreateItem(svc, nil)(rec, jsonRequest(http.MethodPost, "/api/create-item", `{"name":"Tee","images":["a"]}`))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error"`)
	})

	t.Run("created with unknown fields", func(t *testing.T) {
		rec := httptest.NewRecorder()
		LegacyCreateItem(&catalogStub{}, nil)(rec, jsonRequest(http.MethodPost, "/api/create-item", `{"name":"Tee","images":["a"],"sizes":["S"],"extra":true}`))
		require.Equal(t, http.StatusOK, rec.Code)

		var body CreateItemResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "Tee", body.Item.Name)
		assert.Equal(t, []string{"S"}, body.Item.Sizes)
	})
}

func TestGetItem(t *testing.T) {
	id := uuid.New()

	rec := httptest.NewRecorder()
	GetItem(&catalogStub{item: &catalog.ItemDTO{ID: id, Name: "Tee"}}, nil)(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemId", id.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id.String())

	rec = httptest.NewRecorder()
	GetItem(&catalogStub{}, nil)(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemId", "not-a-uuid"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	GetItem(&catalogStub{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "item not found")}, nil)(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemId", id.String()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDeleteItem(t *testing.T) {
	svc := &catalogStub{}
	id := uuid.New()

	rec := httptest.NewRecorder()
	AdminDeleteItem(svc, nil)(rec, withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "itemId", id.String()))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, svc.deleted)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthLive(cfg)(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Storefront-Env"))

	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("refused") })

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": nil})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": down})(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis unavailable")
}

type authStub struct {
	req auth.LoginRequest
}

func (a *authStub) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	a.req = req
	if req.Password != "hunter2" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return &auth.LoginResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour), Email: req.Email}, nil
}

func TestAdminLogin(t *testing.T) {
	svc := &authStub{}

	rec := httptest.NewRecorder()
	AdminLogin(svc, nil)(rec, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"hunter2"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `"access_token":"tok"`)

	rec = httptest.NewRecorder()
	AdminLogin(svc, nil)(rec, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"nope"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	AdminLogin(svc, nil)(rec, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"not-an-email","password":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type mediaStub struct {
	input media.UploadInput
	body  []byte
}

func (m *mediaStub) Upload(ctx context.Context, input media.UploadInput) (*media.UploadOutput, error) {
	m.input = input
	m.body, _ = io.ReadAll(input.Body)
	return &media.UploadOutput{URL: "https://cdn/x.png", Object: "items/x.png", ContentType: "image/png", SizeBytes: int64(len(m.body))}, nil
}

func multipartRequest(t *testing.T, kind string, payload []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if kind != "" {
		require.NoError(t, mw.WriteField("kind", kind))
	}
	if payload != nil {
		fw, err := mw.CreateFormFile("file", "tee.png")
		require.NoError(t, err)
		_, err = fw.Write(payload)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAdminUploadMedia(t *testing.T) {
	svc := &mediaStub{}

	rec := httptest.NewRecorder()
	AdminUploadMedia(svc, 1<<20, nil)(rec, multipartRequest(t, "collection", []byte("png-bytes")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, enums.MediaKindCollection, svc.input.Kind)
	assert.Equal(t, "tee.png", svc.input.FileName)
	assert.Equal(t, []byte("png-bytes"), svc.body)

	rec = httptest.NewRecorder()
	AdminUploadMedia(svc, 1<<20, nil)(rec, multipartRequest(t, "pdf", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	AdminUploadMedia(svc, 1<<20, nil)(rec, multipartRequest(t, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	AdminUploadMedia(svc, 16, nil)(rec, multipartRequest(t, "item", bytes.Repeat([]byte("a"), 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

type gatewayStub struct {
	createErr error
	decline   bool
}

func (g *gatewayStub) CreateIntent(ctx context.Context, amountMinor int64) (checkout.PaymentIntentHandle, error) {
	if g.createErr != nil {
		return checkout.PaymentIntentHandle{}, g.createErr
	}
	return checkout.PaymentIntentHandle{ClientSecret: "pi_7_secret_q", IntentID: "pi_7"}, nil
}

func (g *gatewayStub) Confirm(ctx context.Context, handle checkout.PaymentIntentHandle, billing checkout.BillingDetails) (checkout.ConfirmResult, error) {
	if g.decline {
		return checkout.ConfirmResult{Status: checkout.ConfirmDeclined, Message: "card declined"}, nil
	}
	return checkout.ConfirmResult{Status: checkout.ConfirmSucceeded}, nil
}

func newCheckoutFixture(t *testing.T, gw *gatewayStub) (*CheckoutHandlers, *cart.Registry) {
	t.Helper()
	registry, err := cart.NewRegistry(cart.NewMemoryPersistence(), nil)
	require.NoError(t, err)
	sessions, err := checkout.NewSessions(func(string) checkout.Gateway { return gw }, checkout.Options{})
	require.NoError(t, err)
	return NewCheckoutHandlers(registry, sessions, nil), registry
}

func sessionRequest(method, body, session string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/checkout", nil)
	} else {
		req = jsonRequest(method, "/api/checkout", body)
	}
	if session == "" {
		return req
	}
	return req.WithContext(middleware.WithCartSession(req.Context(), session))
}

func seedCart(t *testing.T, registry *cart.Registry, session string) {
	t.Helper()
	store, err := registry.Get(context.Background(), session)
	require.NoError(t, err)
	require.NoError(t, store.Add(context.Background(), cart.Line{ProductID: "p1", Name: "Tee", UnitPrice: mustDecimal(t, "12.50"), Quantity: 2}))
}

func TestCheckoutHandlers(t *testing.T) {
	t.Run("session required", func(t *testing.T) {
		h, _ := newCheckoutFixture(t, &gatewayStub{})
		rec := httptest.NewRecorder()
		h.Snapshot()(rec, sessionRequest(http.MethodGet, "", ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty cart stays idle", func(t *testing.T) {
		h, _ := newCheckoutFixture(t, &gatewayStub{})
		rec := httptest.NewRecorder()
		h.Intent()(rec, sessionRequest(http.MethodPost, "", "s1"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"state":"idle"`)
	})

	t.Run("intent then confirm", func(t *testing.T) {
		h, registry := newCheckoutFixture(t, &gatewayStub{})
		seedCart(t, registry, "s2")

		rec := httptest.NewRecorder()
		h.Intent()(rec, sessionRequest(http.MethodPost, "", "s2"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"client_secret":"pi_7_secret_q"`)
		assert.Contains(t, rec.Body.String(), `"amount":2500`)

		rec = httptest.NewRecorder()
		h.Confirm()(rec, sessionRequest(http.MethodPost, `{"name":"Ada","address":"1 Main St"}`, "s2"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"state":"succeeded"`)

		store, err := registry.Get(context.Background(), "s2")
		require.NoError(t, err)
		assert.Zero(t, store.Len())
	})

	t.Run("gateway outage", func(t *testing.T) {
		h, registry := newCheckoutFixture(t, &gatewayStub{createErr: errors.New("timeout")})
		seedCart(t, registry, "s3")

		rec := httptest.NewRecorder()
		h.Intent()(rec, sessionRequest(http.MethodPost, "", "s3"))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("declined", func(t *testing.T) {
		h, registry := newCheckoutFixture(t, &gatewayStub{decline: true})
		seedCart(t, registry, "s4")

		rec := httptest.NewRecorder()
		h.Intent()(rec, sessionRequest(http.MethodPost, "", "s4"))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.Confirm()(rec, sessionRequest(http.MethodPost, `{"name":"Ada","address":"1 Main St"}`, "s4"))
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)

		store, err := registry.Get(context.Background(), "s4")
		require.NoError(t, err)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		h, _ := newCheckoutFixture(t, &gatewayStub{})
		rec := httptest.NewRecorder()
		h.Confirm()(rec, sessionRequest(http.MethodPost, `{"name":"Ada","card":"4242"}`, "s5"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func mustDecimal(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}
