package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/digkill/ValuationAPI/internal/auth"
	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/repository"
	"github.com/digkill/ValuationAPI/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVerifier accepts "user:<id>" bearer tokens.
type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (*auth.Claims, error) {
	id, ok := strings.CutPrefix(token, "user:")
	if !ok || id == "" {
		return nil, errors.New("token rejected")
	}
	return &auth.Claims{Subject: id, Email: id + "@example.com"}, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
	err   error
}

func (f *fakeUsers) Ensure(_ context.Context, id, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.users == nil {
		f.users = map[string]*models.User{}
	}
	u, ok := f.users[id]
	if !ok {
		u = &models.User{ID: id, Email: email}
		f.users[id] = u
	}
	cp := *u
	return &cp, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]int
	refs     map[string]bool
	txs      map[string][]models.CreditTransaction
}

func newFakeLedger(balances map[string]int) *fakeLedger {
	return &fakeLedger{balances: balances, refs: map[string]bool{}, txs: map[string][]models.CreditTransaction{}}
}

func (f *fakeLedger) Balance(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	return b, nil
}

func (f *fakeLedger) Transactions(_ context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txs := f.txs[userID]
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (f *fakeLedger) Credit(_ context.Context, userID string, amount int, typ models.TransactionType, description, externalRef string, _ *int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balances[userID]; !ok {
		return false, fmt.Errorf("credit: %w", repository.ErrUserNotFound)
	}
	if externalRef != "" && f.refs[externalRef] {
		return false, nil
	}
	if externalRef != "" {
		f.refs[externalRef] = true
	}
	f.balances[userID] += amount
	f.txs[userID] = append([]models.CreditTransaction{{UserID: userID, Amount: amount, Type: typ, Description: description, ExternalRef: externalRef}}, f.txs[userID]...)
	return true, nil
}

type fakeValuations struct {
	mu     sync.Mutex
	result *service.SubmitResult
	err    error
	calls  int
	last   valuationRequest
	cost   int
}

func (f *fakeValuations) Submit(_ context.Context, _ string, images []string, details models.PropertyDetails) (*service.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = valuationRequest{Images: images, PropertyDetails: details}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeValuations) Cost() int {
	return f.cost
}

type fakeReports struct {
	mu      sync.Mutex
	reports map[string]*models.Report
	tokens  map[string]string
}

func newFakeReports(reports ...*models.Report) *fakeReports {
	f := &fakeReports{reports: map[string]*models.Report{}, tokens: map[string]string{}}
	for _, r := range reports {
		f.reports[r.ID] = r
	}
	return f
}

func (f *fakeReports) owned(userID, id string) (*models.Report, error) {
	r, ok := f.reports[id]
	if !ok || r.UserID != userID {
		return nil, service.ErrReportNotFound
	}
	return r, nil
}

func (f *fakeReports) List(_ context.Context, userID string, limit, offset int) ([]models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Report
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReports) Get(_ context.Context, userID, id string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owned(userID, id)
}

func (f *fakeReports) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.owned(userID, id); err != nil {
		return err
	}
	delete(f.reports, id)
	return nil
}

func (f *fakeReports) Share(_ context.Context, userID, id string) (*service.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.owned(userID, id)
	if err != nil {
		return nil, err
	}
	if r.ShareToken == "" {
		r.ShareToken = strings.Repeat("ab", 32)
		f.tokens[r.ShareToken] = id
	}
	return &service.ShareLink{ShareToken: r.ShareToken, ShareURL: "https://app.test/shared/" + r.ShareToken}, nil
}

func (f *fakeReports) GetShared(_ context.Context, token string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return nil, service.ErrReportNotFound
	}
	return f.reports[id], nil
}

func (f *fakeReports) GenerateDetailed(_ context.Context, userID, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.owned(userID, id)
	if err != nil {
		return "", err
	}
	r.DetailedReport = "# Report for " + r.PropertyType
	return r.DetailedReport, nil
}

type fakePackages struct {
	mu       sync.Mutex
	packages []models.CreditPackage
}

func (f *fakePackages) List(context.Context) ([]models.CreditPackage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CreditPackage(nil), f.packages...), nil
}

func (f *fakePackages) ListActive(context.Context) ([]models.CreditPackage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CreditPackage
	for _, p := range f.packages {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePackages) Create(_ context.Context, input service.CreatePackageInput) (*models.CreditPackage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if input.Name == "" {
		return nil, errors.New("name is required")
	}
	pkg := models.CreditPackage{ID: int64(len(f.packages) + 1), Name: input.Name, Credits: input.Credits, PriceCents: input.PriceCents, Active: true}
	f.packages = append(f.packages, pkg)
	return &pkg, nil
}

func (f *fakePackages) Update(_ context.Context, id int64, input service.UpdatePackageInput) (*models.CreditPackage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.packages {
		if f.packages[i].ID == id {
			if input.Name != nil {
				f.packages[i].Name = *input.Name
			}
			if input.Active != nil {
				f.packages[i].Active = *input.Active
			}
			pkg := f.packages[i]
			return &pkg, nil
		}
	}
	return nil, service.ErrPackageNotFound
}

func (f *fakePackages) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.packages {
		if f.packages[i].ID == id {
			f.packages = append(f.packages[:i], f.packages[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakePromos struct {
	mu       sync.Mutex
	bonus    int
	applyErr error
	ledger   *fakeLedger
	promos   []models.PromoCode
}

func (f *fakePromos) Apply(ctx context.Context, userID, code string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return 0, f.applyErr
	}
	if _, err := f.ledger.Credit(ctx, userID, f.bonus, models.TransactionBonus, "Promo code "+code, "promo:1:"+userID, nil); err != nil {
		return 0, err
	}
	return f.bonus, nil
}

func (f *fakePromos) List(context.Context) ([]models.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PromoCode(nil), f.promos...), nil
}

func (f *fakePromos) Create(_ context.Context, input service.PromoInput) (*models.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if input.MaxUses <= 0 {
		return nil, errors.New("maxUses must be positive")
	}
	promo := models.PromoCode{ID: int64(len(f.promos) + 1), Code: strings.ToUpper(input.Code), BonusCredits: input.BonusCredits, MaxUses: input.MaxUses}
	f.promos = append(f.promos, promo)
	return &promo, nil
}

func (f *fakePromos) Update(_ context.Context, id int64, input service.PromoInput) (*models.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.promos {
		if f.promos[i].ID == id {
			if input.MaxUses > 0 {
				f.promos[i].MaxUses = input.MaxUses
			}
			promo := f.promos[i]
			return &promo, nil
		}
	}
	return nil, service.ErrPromoInvalid
}

func (f *fakePromos) Delete(context.Context, int64) error {
	return nil
}

type fakePayments struct {
	mu         sync.Mutex
	checkout   *service.CheckoutResult
	webhookErr error
	payloads   [][]byte
	signatures []string
	buyers     []string
}

func (f *fakePayments) CreateCheckout(_ context.Context, user *models.User, packageID int64) (*service.CheckoutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if packageID != 2 {
		return nil, service.ErrPackageNotFound
	}
	f.buyers = append(f.buyers, user.ID)
	return f.checkout, nil
}

func (f *fakePayments) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	f.signatures = append(f.signatures, signature)
	return f.webhookErr
}

type fakeStats struct {
	counts map[string]int
	day    time.Time
}

func (f *fakeStats) CountByOutcomeForDay(_ context.Context, day time.Time) (map[string]int, error) {
	f.day = day
	return f.counts, nil
}

type fakeLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
}

func (f *fakeLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return f.allowed, f.retryAfter, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(context.Context) error {
	return f.err
}
