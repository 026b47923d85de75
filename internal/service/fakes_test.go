package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedgerStore mirrors the conditional-update semantics of the MySQL ledger.
type fakeLedgerStore struct {
	mu       sync.Mutex
	balances map[string]int
	totals   map[string]int
	refs     map[string]bool
	txs      []models.CreditTransaction

	balanceErr error
	debitErr   error
	creditErr  error
	// spendBeforeDebit simulates a concurrent request draining credits right before Debit runs.
	spendBeforeDebit int
}

func newFakeLedgerStore(balances map[string]int) *fakeLedgerStore {
	if balances == nil {
		balances = map[string]int{}
	}
	return &fakeLedgerStore{balances: balances, totals: map[string]int{}, refs: map[string]bool{}}
}

func (f *fakeLedgerStore) Balance(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	b, ok := f.balances[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	return b, nil
}

func (f *fakeLedgerStore) Debit(_ context.Context, userID string, amount int, description string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return false, f.debitErr
	}
	if f.spendBeforeDebit > 0 {
		f.balances[userID] -= f.spendBeforeDebit
		f.txs = append(f.txs, models.CreditTransaction{UserID: userID, Amount: -f.spendBeforeDebit, Type: models.TransactionSpent, Description: "concurrent"})
		f.spendBeforeDebit = 0
	}
	b, ok := f.balances[userID]
	if !ok || b < amount {
		return false, nil
	}
	f.balances[userID] = b - amount
	f.txs = append(f.txs, models.CreditTransaction{UserID: userID, Amount: -amount, Type: models.TransactionSpent, Description: description})
	return true, nil
}

func (f *fakeLedgerStore) Credit(_ context.Context, entry repository.CreditEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditErr != nil {
		return false, f.creditErr
	}
	if entry.ExternalRef != "" && f.refs[entry.ExternalRef] {
		return false, nil
	}
	if _, ok := f.balances[entry.UserID]; !ok {
		return false, repository.ErrUserNotFound
	}
	if entry.ExternalRef != "" {
		f.refs[entry.ExternalRef] = true
	}
	f.balances[entry.UserID] += entry.Amount
	if entry.Type == models.TransactionPurchased {
		f.totals[entry.UserID] += entry.Amount
	}
	f.txs = append(f.txs, models.CreditTransaction{UserID: entry.UserID, Amount: entry.Amount, Type: entry.Type, Description: entry.Description, ExternalRef: entry.ExternalRef, PackageID: entry.PackageID})
	return true, nil
}

func (f *fakeLedgerStore) ListTransactions(_ context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CreditTransaction
	for i := len(f.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.txs[i].UserID == userID {
			out = append(out, f.txs[i])
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) balance(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeLedgerStore) transactions(userID string) []models.CreditTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CreditTransaction
	for _, t := range f.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[string]*models.Report

	findErr   error
	createErr error
	deleteErr error
	deleted   []string
	// duplicateOnCreate stores this report as if a concurrent request inserted it first.
	duplicateOnCreate *models.Report
	// afterInsert runs once the row is stored; its error is returned as the insert result.
	afterInsert func(ctx context.Context) error
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: map[string]*models.Report{}}
}

func (f *fakeReportStore) FindByInputHash(_ context.Context, userID, inputHash string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, r := range f.reports {
		if r.UserID == userID && r.InputHash == inputHash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeReportStore) Create(ctx context.Context, report *models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.duplicateOnCreate != nil {
		f.reports[f.duplicateOnCreate.ID] = f.duplicateOnCreate
		f.duplicateOnCreate = nil
	}
	for _, r := range f.reports {
		if r.UserID == report.UserID && r.InputHash == report.InputHash {
			return repository.ErrDuplicateReport
		}
	}
	cp := *report
	f.reports[report.ID] = &cp
	if f.afterInsert != nil {
		return f.afterInsert(ctx)
	}
	return nil
}

func (f *fakeReportStore) Delete(_ context.Context, userID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	r, ok := f.reports[id]
	if !ok || r.UserID != userID {
		return false, nil
	}
	delete(f.reports, id)
	f.deleted = append(f.deleted, id)
	return true, nil
}

func (f *fakeReportStore) GetByID(_ context.Context, userID, id string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok || r.UserID != userID {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReportStore) GetByShareToken(_ context.Context, token string) (*models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.ShareToken != "" && r.ShareToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeReportStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Report
	for _, r := range f.reports {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReportStore) SetShareToken(_ context.Context, userID, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reports[id]; ok && r.UserID == userID && r.ShareToken == "" {
		r.ShareToken = token
	}
	return nil
}

func (f *fakeReportStore) SetDetailedReport(_ context.Context, userID, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.reports[id]; ok && r.UserID == userID {
		r.DetailedReport = text
	}
	return nil
}

func (f *fakeReportStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

type fakeProvider struct {
	mu        sync.Mutex
	valuation *models.Valuation
	err       error
	calls     int
	narrative string
	answered  func()
}

func (f *fakeProvider) Valuate(ctx context.Context, images []models.Image, _ models.PropertyDetails) (*models.Valuation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cp := *f.valuation
	if f.answered != nil {
		f.answered()
	}
	return &cp, nil
}

func (f *fakeProvider) DetailedReport(_ context.Context, report *models.Report) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.narrative + " " + report.PropertyType, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePreviews struct {
	mu        sync.Mutex
	uploads   []string
	deleted   []string
	uploadErr error
}

func (f *fakePreviews) Upload(_ context.Context, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	u := fmt.Sprintf("https://cdn.test/previews/%d.jpg", len(f.uploads)+1)
	f.uploads = append(f.uploads, u)
	return u, nil
}

func (f *fakePreviews) Delete(_ context.Context, objectURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, objectURL)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
	err  error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	token := fmt.Sprintf("tok-%d", len(f.held)+1)
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocker) Release(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	return nil
}

type fakeAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeAlerter) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

type fakeAudit struct {
	mu       sync.Mutex
	outcomes []string
}

func (f *fakeAudit) Log(_ context.Context, _, _, outcome string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func goodValuation() *models.Valuation {
	return &models.Valuation{
		EstimatedValueRange: &models.ValueRange{Min: 400000, Max: 460000},
		ConfidenceScore:     78,
		Currency:            "USD",
		Reasoning:           "Comparable three-bedroom homes nearby sold in this range.",
		DetectedFeatures:    []string{"Hardwood flooring"},
		PropertyType:        "Single-Family Home",
		PropertyCondition:   "Good",
		SuggestedUpgrades: []models.SuggestedUpgrade{
			{Upgrade: "Repaint exterior", Reasoning: "Faded paint", EstimatedCost: "Low", ImpactOnValue: "Medium"},
		},
	}
}

func encodedImages(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("photo-bytes-%d", i+1)))
	}
	return out
}
