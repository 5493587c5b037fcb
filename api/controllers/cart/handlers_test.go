package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
)

type envelope struct {
	Data cartdto.Cart `json:"data"`
}

type recordingGateway struct {
	amounts []int64
}

func (g *recordingGateway) CreateIntent(ctx context.Context, amountMinor int64) (checkout.PaymentIntentHandle, error) {
	g.amounts = append(g.amounts, amountMinor)
	return checkout.PaymentIntentHandle{ClientSecret: "pi_secret", IntentID: "pi"}, nil
}

func (g *recordingGateway) Confirm(ctx context.Context, handle checkout.PaymentIntentHandle, billing checkout.BillingDetails) (checkout.ConfirmResult, error) {
	return checkout.ConfirmResult{Status: checkout.ConfirmSucceeded}, nil
}

type fixture struct {
	handlers *Handlers
	registry *cartsvc.Registry
	sessions *checkout.Sessions
	gateway  *recordingGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry, err := cartsvc.NewRegistry(cartsvc.NewMemoryPersistence(), nil)
	require.NoError(t, err)
	gw := &recordingGateway{}
	sessions, err := checkout.NewSessions(func(string) checkout.Gateway { return gw }, checkout.Options{})
	require.NoError(t, err)
	return &fixture{
		handlers: NewHandlers(registry, sessions, nil),
		registry: registry,
		sessions: sessions,
		gateway:  gw,
	}
}

func request(method, target, body, session string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req = req.WithContext(middleware.WithCartSession(req.Context(), session))
	}
	return req
}

func withProduct(req *http.Request, productID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("productId", productID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) cartdto.Cart {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func (f *fixture) add(t *testing.T, session, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handlers.AddLine()(rec, request(http.MethodPost, "/api/cart/items", body, session))
	return rec
}

func TestAddLineMergesSameVariant(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"thumbnail":"a.png","size":"M","quantity":1}`).Code)
	rec := f.add(t, "s1", `{"id":"p1","name":"Tee v2","price":12,"thumbnail":"b.png","size":"M","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode(t, rec)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)
	assert.Equal(t, "Tee v2", view.Lines[0].Name)
	assert.Equal(t, json.Number("12"), view.Lines[0].Price)
	assert.Equal(t, "36.00", view.Total)
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, "s1", view.Session)
}

func TestAddLineKeepsVariantsApart(t *testing.T) {
	f := newFixture(t)

	f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"size":"M","quantity":1}`)
	f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"size":"L","quantity":1}`)
	rec := f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"quantity":1}`)

	view := decode(t, rec)
	assert.Len(t, view.Lines, 3)
	assert.Equal(t, "30.00", view.Total)
}

func TestAddLineValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]string{
		"missing id":     `{"name":"Tee","price":1,"quantity":1}`,
		"negative qty":   `{"id":"p1","name":"Tee","price":1,"quantity":-1}`,
		"negative price": `{"id":"p1","name":"Tee","price":-1,"quantity":1}`,
		"zero price":     `{"id":"p1","name":"Tee","price":0,"quantity":1}`,
		"missing price":  `{"id":"p1","name":"Tee","quantity":1}`,
		"qty over cap":   `{"id":"p1","name":"Tee","price":1,"quantity":10000}`,
		"unknown field":  `{"id":"p1","name":"Tee","price":1,"quantity":1,"color":"red"}`,
		"empty body":     ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(body))
			req = req.WithContext(middleware.WithCartSession(req.Context(), "s1"))
			f.handlers.AddLine()(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	store, err := f.registry.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestRemoveLineMatchesVariantQuery(t *testing.T) {
	f := newFixture(t)
	f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"size":"M","quantity":1}`)
	f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"quantity":1}`)

	rec := httptest.NewRecorder()
	f.handlers.RemoveLine()(rec, withProduct(request(http.MethodDelete, "/api/cart/items/p1?size=M", "", "s1"), "p1"))
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode(t, rec)
	require.Len(t, view.Lines, 1)
	assert.Nil(t, view.Lines[0].Size)

	rec = httptest.NewRecorder()
	f.handlers.RemoveLine()(rec, withProduct(request(http.MethodDelete, "/api/cart/items/unknown", "", "s1"), "unknown"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec).Lines, 1)
}

func TestClearAndFetch(t *testing.T) {
	f := newFixture(t)
	f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"quantity":2}`)

	rec := httptest.NewRecorder()
	f.handlers.Clear()(rec, request(http.MethodDelete, "/api/cart", "", "s1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec).Lines)

	rec = httptest.NewRecorder()
	f.handlers.Fetch()(rec, request(http.MethodGet, "/api/cart", "", "s1"))
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode(t, rec)
	assert.Equal(t, "0.00", view.Total)
	assert.NotNil(t, view.Lines)
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a", `{"id":"p1","name":"Tee","price":10,"quantity":1}`)

	rec := httptest.NewRecorder()
	f.handlers.Fetch()(rec, request(http.MethodGet, "/api/cart", "", "b"))
	assert.Empty(t, decode(t, rec).Lines)
}

func TestMissingSession(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handlers.Fetch()(rec, request(http.MethodGet, "/api/cart", "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartChangeRefreshesOpenCheckout(t *testing.T) {
	f := newFixture(t)
	f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"quantity":1}`)

	// no checkout opened yet
	assert.Empty(t, f.gateway.amounts)

	store, err := f.registry.Get(context.Background(), "s1")
	require.NoError(t, err)
	orch, err := f.sessions.Get("s1", store)
	require.NoError(t, err)
	_, err = orch.Evaluate(context.Background())
	require.NoError(t, err)

	f.add(t, "s1", `{"id":"p2","name":"Cap","price":5,"quantity":1}`)

	assert.Equal(t, []int64{1000, 1500}, f.gateway.amounts)
	handle, ok := orch.Handle()
	require.True(t, ok)
	assert.Equal(t, int64(1500), handle.AmountMinor)
}

func TestCartChangeSkipsCheckoutOfEvictedStore(t *testing.T) {
	f := newFixture(t)
	f.add(t, "s1", `{"id":"p1","name":"Tee","price":10,"quantity":1}`)

	evicted, err := f.registry.Get(context.Background(), "s1")
	require.NoError(t, err)
	orch, err := f.sessions.Get("s1", evicted)
	require.NoError(t, err)
	_, err = orch.Evaluate(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, f.registry.Sweep(-time.Second))
	rec := f.add(t, "s1", `{"id":"p2","name":"Cap","price":5,"quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "15.00", decode(t, rec).Total)

	// the orchestrator bound to the evicted store is neither evaluated nor kept
	assert.Equal(t, []int64{1000}, f.gateway.amounts)
	_, ok := f.sessions.Peek("s1", evicted)
	assert.False(t, ok)

	current, err := f.registry.Get(context.Background(), "s1")
	require.NoError(t, err)
	fresh, err := f.sessions.Get("s1", current)
	require.NoError(t, err)
	assert.NotSame(t, orch, fresh)
	_, err = fresh.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1000, 1500}, f.gateway.amounts)
}
