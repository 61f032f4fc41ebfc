package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/keebsteals/internal/deals"
	pkgerrors "sjsage522/keebsteals/pkg/errors"
	"sjsage522/keebsteals/services/cache"
	"sjsage522/keebsteals/services/worker"
)

// MockStore serves fixed products
type MockStore struct {
	mu        sync.Mutex
	products  []deals.Product
	listCalls int
	err       error
	pingErr   error
	onList    func()
}

func (m *MockStore) ListActive(ctx context.Context) ([]deals.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.onList != nil {
		m.onList()
	}
	return m.products, m.err
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*deals.Product, error) {
	for _, p := range m.products {
		if p.ProductID == id {
			return &p, nil
		}
	}
	return nil, pkgerrors.NewNotFound("store", "product "+id+" not found")
}

func (m *MockStore) UniqueBrands(ctx context.Context) ([]string, error) {
	return []string{"Ajazz", "Keychron"}, m.err
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

// MockSyncer records sync invocations
type MockSyncer struct {
	calls int
	err   error
}

func (m *MockSyncer) RunOnce(ctx context.Context) (worker.Summary, error) {
	m.calls++
	return worker.Summary{Links: 2, Synced: 2}, m.err
}

func testProducts() []deals.Product {
	added := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []deals.Product{
		{
			ID:            1,
			ProductID:     "100",
			Title:         "AK820 Pro",
			Brand:         "Ajazz",
			ProductLink:   "https://epomaker.com/products/ak820-pro",
			Tags:          []string{"75%", "bluetooth"},
			CurrentPrice:  decimal.RequireFromString("40"),
			OriginalPrice: decimal.NewNullDecimal(decimal.RequireFromString("80")),
			DateAdded:     added,
			IsActive:      true,
		},
		{
			ID:           2,
			ProductID:    "200",
			Title:        "Q3 Max",
			Brand:        "Keychron",
			ProductLink:  "https://epomaker.com/products/q3-max",
			Tags:         []string{"TKL"},
			CurrentPrice: decimal.RequireFromString("90"),
			DateAdded:    added.Add(time.Hour),
			IsActive:     true,
		},
	}
}

func newTestServer(store *MockStore, syncer *MockSyncer, cacheSvc cache.CacheService, dev bool) *Server {
	return New(Options{
		SiteURL:       "https://keebsteals.vercel.app/",
		AffiliateRef:  "ref123",
		CronUserAgent: "vercel-cron/1.0",
		Development:   dev,
		DealsCacheTTL: time.Minute,
	}, store, cacheSvc, syncer, prometheus.NewRegistry())
}

type dealsResponse struct {
	Data []deals.Deal `json:"data"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func doRequest(s http.Handler, method, target, userAgent string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestListDeals(t *testing.T) {
	s := newTestServer(&MockStore{products: testProducts()}, &MockSyncer{}, nil, false)

	rec := doRequest(s, http.MethodGet, "/api/deals?maxPrice=50", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body dealsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Ajazz", body.Data[0].Brand)
	assert.Equal(t, 50, body.Data[0].Discount)
	assert.Equal(t, "https://epomaker.com/products/ak820-pro?sca_ref=ref123", body.Data[0].AffiliateLink)
}

func TestListDealsQueryParams(t *testing.T) {
	s := newTestServer(&MockStore{products: testProducts()}, &MockSyncer{}, nil, false)

	testCases := []struct {
		query    string
		expected []string
	}{
		{"", []string{"100", "200"}},
		{"?sort=price_desc", []string{"200", "100"}},
		{"?sort=newest", []string{"200", "100"}},
		{"?tags=Wireless", []string{"100"}},
		{"?tags=TKL&tags=60%25", []string{"200"}},
		{"?brand=Keychron", []string{"200"}},
		{"?search=ak820", []string{"100"}},
		{"?minPrice=abc", []string{"100", "200"}},
		{"?brand=Nobody", []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, "/api/deals"+tc.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var body dealsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			got := []string{}
			for _, d := range body.Data {
				got = append(got, d.ProductID)
			}
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestListDealsUsesCache(t *testing.T) {
	store := &MockStore{products: testProducts()}
	memCache := cache.NewMemoryCacheService(time.Minute)
	s := newTestServer(store, &MockSyncer{}, memCache, false)

	for i := 0; i < 3; i++ {
		rec := doRequest(s, http.MethodGet, "/api/deals", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, store.listCalls)

	_, err := cache.BumpActiveDeals(memCache)
	require.NoError(t, err)
	doRequest(s, http.MethodGet, "/api/deals", "")
	assert.Equal(t, 2, store.listCalls)
}

func TestListDealsSyncDuringLoadIsNotCachedAsCurrent(t *testing.T) {
	store := &MockStore{products: testProducts()}
	memCache := cache.NewMemoryCacheService(time.Minute)
	s := newTestServer(store, &MockSyncer{}, memCache, false)

	// A sync completes while the first request is reading the store
	store.onList = func() {
		_, err := cache.BumpActiveDeals(memCache)
		require.NoError(t, err)
	}
	rec := doRequest(s, http.MethodGet, "/api/deals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	store.onList = nil

	doRequest(s, http.MethodGet, "/api/deals", "")
	assert.Equal(t, 2, store.listCalls)

	doRequest(s, http.MethodGet, "/api/deals", "")
	assert.Equal(t, 2, store.listCalls)
}

func TestListDealsStoreFailure(t *testing.T) {
	s := newTestServer(&MockStore{err: pkgerrors.NewStore("store", "query failed", errors.New("boom"))}, &MockSyncer{}, nil, false)

	rec := doRequest(s, http.MethodGet, "/api/deals", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Error.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestGetDeal(t *testing.T) {
	s := newTestServer(&MockStore{products: testProducts()}, &MockSyncer{}, nil, false)

	rec := doRequest(s, http.MethodGet, "/api/deals/200", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data deals.Deal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Q3 Max", body.Data.Title)
	assert.Equal(t, deals.PlaceholderImage, body.Data.Image)

	rec = doRequest(s, http.MethodGet, "/api/deals/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errBody errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "not_found", errBody.Error.Code)
}

func TestBrandsAndTags(t *testing.T) {
	s := newTestServer(&MockStore{}, &MockSyncer{}, nil, false)

	rec := doRequest(s, http.MethodGet, "/api/brands", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["Ajazz","Keychron"]}`, rec.Body.String())

	rec = doRequest(s, http.MethodGet, "/api/tags", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["75%","65%","60%","40%","TKL","100%","Tenkeyless","Wireless"]}`, rec.Body.String())
}

func TestDailySync(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		userAgent  string
		dev        bool
		syncErr    error
		wantStatus int
		wantCalls  int
	}{
		{"cron caller", http.MethodGet, "vercel-cron/1.0", false, nil, http.StatusOK, 1},
		{"development", http.MethodGet, "curl/8.0", true, nil, http.StatusOK, 1},
		{"other caller", http.MethodGet, "curl/8.0", false, nil, http.StatusMethodNotAllowed, 0},
		{"post from cron", http.MethodPost, "vercel-cron/1.0", false, nil, http.StatusMethodNotAllowed, 0},
		{"post in development", http.MethodPost, "curl/8.0", true, nil, http.StatusMethodNotAllowed, 0},
		{"sync failure", http.MethodGet, "vercel-cron/1.0", false, errors.New("db down"), http.StatusInternalServerError, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			syncer := &MockSyncer{err: tc.syncErr}
			s := newTestServer(&MockStore{}, syncer, nil, tc.dev)

			rec := doRequest(s, tc.method, "/api/cron/daily-sync", tc.userAgent)
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCalls, syncer.calls)

			switch tc.wantStatus {
			case http.StatusOK:
				assert.Contains(t, rec.Body.String(), `"success":true`)
			case http.StatusMethodNotAllowed:
				assert.Contains(t, rec.Body.String(), "Method not allowed")
			case http.StatusInternalServerError:
				assert.Contains(t, rec.Body.String(), "Failed to run sync job")
			}
		})
	}
}

func TestRobots(t *testing.T) {
	s := newTestServer(&MockStore{}, &MockSyncer{}, nil, false)

	rec := doRequest(s, http.MethodGet, "/robots.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Allow: /\n")
	assert.Contains(t, body, "Disallow: /api/\n")
	assert.Contains(t, body, "Disallow: /database\n")
	assert.Contains(t, body, "Sitemap: https://keebsteals.vercel.app/sitemap.xml")
}

func TestHealthz(t *testing.T) {
	store := &MockStore{}
	s := newTestServer(store, &MockSyncer{}, nil, false)

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	store.pingErr = errors.New("no connection")
	rec = doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(&MockStore{products: testProducts()}, &MockSyncer{}, nil, false)

	doRequest(s, http.MethodGet, "/api/deals", "")
	rec := doRequest(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `keebsteals_http_requests_total{method="GET",route="/api/deals",status="200"} 1`))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(&MockStore{}, &MockSyncer{}, nil, false)

	rec := doRequest(s, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
