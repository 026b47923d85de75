package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/ValuationAPI/internal/metrics"
	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/service"
)

type harness struct {
	server     *Server
	db         *fakePinger
	users      *fakeUsers
	ledger     *fakeLedger
	valuations *fakeValuations
	reports    *fakeReports
	packages   *fakePackages
	promos     *fakePromos
	payments   *fakePayments
	stats      *fakeStats
	limiter    *fakeLimiter
	metrics    *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ledger := newFakeLedger(map[string]int{"alice": 5, "bob": 0})
	h := &harness{
		db:         &fakePinger{},
		users:      &fakeUsers{},
		ledger:     ledger,
		valuations: &fakeValuations{cost: 5},
		reports: newFakeReports(
			&models.Report{ID: "r-1", UserID: "alice", Valuation: models.Valuation{PropertyType: "Condo", Currency: "USD"}, ShareToken: ""},
			&models.Report{ID: "r-2", UserID: "bob", Valuation: models.Valuation{PropertyType: "Townhouse"}},
		),
		packages: &fakePackages{packages: []models.CreditPackage{
			{ID: 1, Name: "Basic Pack", Credits: 10, PriceCents: 1000, Active: true},
			{ID: 2, Name: "Starter Pack", Credits: 35, PriceCents: 2900, Active: true, Popular: true},
			{ID: 3, Name: "Legacy Pack", Credits: 5, PriceCents: 700, Active: false},
		}},
		promos:   &fakePromos{bonus: 10, ledger: ledger},
		payments: &fakePayments{checkout: &service.CheckoutResult{SessionID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}},
		stats:    &fakeStats{counts: map[string]int{"success": 4, "cached": 1, "insufficient_credits": 2}},
		limiter:  &fakeLimiter{allowed: true},
		metrics:  metrics.New(),
	}
	h.server = NewServer(Options{
		Addr:          ":0",
		AdminUsername: "admin",
		AdminPassword: "s3cret",
	}, discardLogger(), Deps{
		DB:         h.db,
		Verifier:   fakeVerifier{},
		Users:      h.users,
		Ledger:     h.ledger,
		Valuations: h.valuations,
		Reports:    h.reports,
		Packages:   h.packages,
		Promos:     h.promos,
		Payments:   h.payments,
		Stats:      h.stats,
		Limiter:    h.limiter,
		Metrics:    h.metrics,
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) admin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	h.db.err = errors.New("connection refused")
	rec = h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	h := newHarness(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/valuations"},
		{http.MethodGet, "/credits"},
		{http.MethodGet, "/reports"},
		{http.MethodGet, "/me"},
	} {
		rec := h.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, "unauthenticated", decodeBody(t, rec)["code"], tc.path)
	}

	rec := h.do(t, http.MethodPost, "/valuations", "garbage", `{"images":[]}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, h.valuations.calls)
}

func TestCreateValuationSuccess(t *testing.T) {
	h := newHarness(t)
	h.valuations.result = &service.SubmitResult{Report: &models.Report{
		ID:        "rep-9",
		UserID:    "alice",
		InputHash: "abc",
		Valuation: models.Valuation{
			EstimatedValueRange: &models.ValueRange{Min: 400000, Max: 450000},
			ConfidenceScore:     80,
			Currency:            "USD",
		},
	}}

	size := 1800.0
	rec := h.do(t, http.MethodPost, "/valuations", "user:alice", map[string]any{
		"images":          []string{"aaa", "bbb", "ccc"},
		"propertyDetails": map[string]any{"address": "1 Main St", "propertySize": size},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	report := body["report"].(map[string]any)
	assert.Equal(t, "rep-9", report["id"])
	assert.Equal(t, "USD", report["currency"])
	assert.NotContains(t, body, "cached")
	assert.Equal(t, []string{"aaa", "bbb", "ccc"}, h.valuations.last.Images)
	assert.Equal(t, "1 Main St", h.valuations.last.PropertyDetails.Address)
	require.NotNil(t, h.valuations.last.PropertyDetails.PropertySize)
	assert.Equal(t, size, *h.valuations.last.PropertyDetails.PropertySize)
}

func TestCreateValuationCached(t *testing.T) {
	h := newHarness(t)
	h.valuations.result = &service.SubmitResult{Report: &models.Report{ID: "rep-1"}, Cached: true}

	rec := h.do(t, http.MethodPost, "/valuations", "user:alice", map[string]any{"images": []string{"a", "b", "c"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["cached"])
}

func TestCreateValuationErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "validation",
			err:    &service.Error{Kind: service.KindValidation, Message: "Please upload at least 3 images", Hint: "Add more photos"},
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "Please upload at least 3 images", body["error"])
				assert.Equal(t, "Add more photos", body["hint"])
				assert.NotContains(t, body, "creditsNeeded")
			},
		},
		{
			name:   "insufficient credits",
			err:    &service.Error{Kind: service.KindInsufficientCredits, Message: "Insufficient credits.", CreditsNeeded: 2, CurrentCredits: 3},
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, float64(2), body["creditsNeeded"])
				assert.Equal(t, float64(3), body["currentCredits"])
			},
		},
		{
			name:   "user not found",
			err:    &service.Error{Kind: service.KindUserNotFound, Message: "User not found"},
			status: http.StatusNotFound,
		},
		{
			name: "provider validation",
			err: &service.Error{
				Kind:        service.KindProviderValidation,
				Subkind:     service.FailureTooWide,
				Message:     "Unable to provide a reliable valuation",
				Details:     "The estimated range is too wide",
				Suggestions: []string{"Add the property address"},
			},
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "provider_validation:too_wide", body["code"])
				assert.Equal(t, "The estimated range is too wide", body["details"])
				assert.Equal(t, []any{"Add the property address"}, body["suggestions"])
			},
		},
		{
			name:   "in progress",
			err:    &service.Error{Kind: service.KindInProgress, Message: "An identical valuation is already in progress."},
			status: http.StatusConflict,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, true, body["retryable"])
			},
		},
		{
			name:   "storage failure hides cause",
			err:    &service.Error{Kind: service.KindStorage, Message: "Failed to get property valuation", Cause: errors.New("dial tcp 10.0.0.5:3306: connection refused")},
			status: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "Failed to get property valuation", body["error"])
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.valuations.err = tc.err

			rec := h.do(t, http.MethodPost, "/valuations", "user:alice", map[string]any{"images": []string{"a"}})
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")
			if tc.check != nil {
				tc.check(t, decodeBody(t, rec))
			}
		})
	}
}

func TestCreateValuationRejectsBadJSON(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/valuations", "user:alice", `{"images": "nope"`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["code"])
	assert.Zero(t, h.valuations.calls)
}

func TestCreateValuationRateLimited(t *testing.T) {
	h := newHarness(t)
	h.limiter.allowed = false
	h.limiter.retryAfter = 1500 * time.Millisecond

	rec := h.do(t, http.MethodPost, "/valuations", "user:alice", map[string]any{"images": []string{"a", "b", "c"}})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, float64(2), decodeBody(t, rec)["retryAfter"])
	assert.Zero(t, h.valuations.calls)
}

func TestCreateValuationLimiterFailureFailsOpen(t *testing.T) {
	h := newHarness(t)
	h.limiter.allowed = false
	h.limiter.err = errors.New("redis down")
	h.valuations.result = &service.SubmitResult{Report: &models.Report{ID: "rep-1"}}

	rec := h.do(t, http.MethodPost, "/valuations", "user:alice", map[string]any{"images": []string{"a", "b", "c"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.valuations.calls)
}

func TestGetCredits(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/credits", "user:alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["credits"])
	assert.Equal(t, true, body["hasEnoughCredits"])
	assert.Equal(t, float64(5), body["creditsNeeded"])

	rec = h.do(t, http.MethodGet, "/credits", "user:bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["hasEnoughCredits"])
	assert.Contains(t, h.users.users, "bob")
}

func TestListActivePackages(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/credits/packages", "user:alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Packages []models.CreditPackage `json:"packages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Packages, 2)
	assert.Equal(t, "Starter Pack", body.Packages[1].Name)
}

func TestPurchase(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/credits/purchase", "user:alice", map[string]any{"packageId": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "cs_test_1", body["sessionId"])
	assert.Equal(t, []string{"alice"}, h.payments.buyers)

	rec = h.do(t, http.MethodPost, "/credits/purchase", "user:alice", map[string]any{"packageId": 99})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/credits/purchase", "user:alice", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyPromo(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/credits/promo", "user:alice", map[string]any{"code": "welcome"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(10), body["creditsAdded"])
	assert.Equal(t, float64(15), body["credits"])

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrPromoInvalid, http.StatusBadRequest, "promo_invalid"},
		{service.ErrPromoExhausted, http.StatusBadRequest, "promo_exhausted"},
		{service.ErrPromoAlreadyRedeemed, http.StatusConflict, "promo_already_redeemed"},
	}
	for _, tc := range tests {
		h.promos.applyErr = tc.err
		rec := h.do(t, http.MethodPost, "/credits/promo", "user:alice", map[string]any{"code": "welcome"})
		assert.Equal(t, tc.status, rec.Code, tc.code)
		assert.Equal(t, tc.code, decodeBody(t, rec)["code"])
	}
}

func TestListTransactions(t *testing.T) {
	h := newHarness(t)
	_, err := h.ledger.Credit(t.Context(), "alice", 35, models.TransactionPurchased, "Purchased 35 credits", "pi_1", nil)
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/credits/transactions?limit=10", "user:alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Transactions []models.CreditTransaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Transactions, 1)
	assert.Equal(t, 35, body.Transactions[0].Amount)

	rec = h.do(t, http.MethodGet, "/credits/transactions", "user:bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transactions":[]}`, rec.Body.String())
}

func TestReportsAreOwnerScoped(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/reports/r-1", "user:alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Condo", decodeBody(t, rec)["report"].(map[string]any)["propertyType"])

	rec = h.do(t, http.MethodGet, "/reports/r-2", "user:alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodDelete, "/reports/r-2", "user:alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/reports", "user:alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["reports"], 1)

	rec = h.do(t, http.MethodDelete, "/reports/r-1", "user:alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/reports/r-1", "user:alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShareAndReadShared(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/reports/r-1/share", "user:alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	token := body["shareToken"].(string)
	assert.Len(t, token, 64)
	assert.Equal(t, "https://app.test/shared/"+token, body["shareUrl"])

	rec = h.do(t, http.MethodGet, "/share/"+token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody(t, rec)["report"].(map[string]any)
	assert.Equal(t, "r-1", report["id"])
	assert.NotContains(t, report, "shareToken")

	rec = h.do(t, http.MethodGet, "/share/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetailedReport(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/reports/r-1/detailed", "user:alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Report for Condo", decodeBody(t, rec)["detailedReport"])
}

func TestStripeWebhook(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"accepted", nil, http.StatusOK},
		{"bad signature", service.ErrInvalidSignature, http.StatusBadRequest},
		{"bad purchase", service.ErrInvalidPurchase, http.StatusBadRequest},
		{"ledger failure", errors.New("credit ledger: deadlock"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.payments.webhookErr = tc.err

			req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rec := httptest.NewRecorder()
			h.server.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			require.Len(t, h.payments.signatures, 1)
			assert.Equal(t, "t=1,v1=abc", h.payments.signatures[0])
			assert.Equal(t, `{"id":"evt_1"}`, string(h.payments.payloads[0]))
			assert.NotContains(t, rec.Body.String(), "deadlock")
		})
	}
}

func TestStripeWebhookCountsAcceptedDeliveries(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/stripe/webhook", "", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "credits_purchase_webhooks_total 1")
}

func TestStripeWebhookRejectsOversizedBody(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/stripe/webhook", "", strings.Repeat("x", maxWebhookBody+1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.payments.payloads)
}

func TestAdminRequiresBasicAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/admin/packages", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/admin/packages", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.admin(t, http.MethodGet, "/admin/packages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pkgs []models.CreditPackage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pkgs))
	assert.Len(t, pkgs, 3)
}

func TestAdminPackageCRUD(t *testing.T) {
	h := newHarness(t)

	rec := h.admin(t, http.MethodPost, "/admin/packages", map[string]any{"name": "Mega", "credits": 500, "priceCents": 39900})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Mega", decodeBody(t, rec)["name"])

	rec = h.admin(t, http.MethodPost, "/admin/packages", map[string]any{"credits": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", decodeBody(t, rec)["error"])

	rec = h.admin(t, http.MethodPut, "/admin/packages/1", map[string]any{"active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["active"])

	rec = h.admin(t, http.MethodPut, "/admin/packages/42", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.admin(t, http.MethodPut, "/admin/packages/abc", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.admin(t, http.MethodDelete, "/admin/packages/3", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminPromoCRUD(t *testing.T) {
	h := newHarness(t)

	rec := h.admin(t, http.MethodPost, "/admin/promo-codes", map[string]any{"code": "launch", "bonusCredits": 20, "maxUses": 100})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "LAUNCH", decodeBody(t, rec)["code"])

	rec = h.admin(t, http.MethodPost, "/admin/promo-codes", map[string]any{"code": "zero"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.admin(t, http.MethodPut, "/admin/promo-codes/1", map[string]any{"maxUses": 200})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(200), decodeBody(t, rec)["maxUses"])

	rec = h.admin(t, http.MethodGet, "/admin/promo-codes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LAUNCH")
}

func TestAdminGrantCredits(t *testing.T) {
	h := newHarness(t)

	rec := h.admin(t, http.MethodPost, "/admin/users/bob/credits", map[string]any{"amount": 5, "type": "refund", "externalRef": "ticket-77"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["applied"])
	assert.Equal(t, float64(5), body["credits"])

	rec = h.admin(t, http.MethodPost, "/admin/users/bob/credits", map[string]any{"amount": 5, "type": "refund", "externalRef": "ticket-77"})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["applied"])
	assert.Equal(t, float64(5), body["credits"])

	txs := h.ledger.txs["bob"]
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionRefund, txs[0].Type)
	assert.Equal(t, "Refund", txs[0].Description)

	for _, tc := range []struct {
		body   map[string]any
		status int
	}{
		{map[string]any{"amount": 0}, http.StatusBadRequest},
		{map[string]any{"amount": 5, "type": "purchased"}, http.StatusBadRequest},
	} {
		rec := h.admin(t, http.MethodPost, "/admin/users/bob/credits", tc.body)
		assert.Equal(t, tc.status, rec.Code)
	}

	rec = h.admin(t, http.MethodPost, "/admin/users/ghost/credits", map[string]any{"amount": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminStats(t *testing.T) {
	h := newHarness(t)

	rec := h.admin(t, http.MethodGet, "/admin/stats?day=2026-03-14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "2026-03-14", body["day"])
	assert.Equal(t, float64(7), body["total"])
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), h.stats.day)

	rec = h.admin(t, http.MethodGet, "/admin/stats?day=14-03-2026", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
