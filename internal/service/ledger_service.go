package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/repository"
)

// LedgerStore is the persistence behind LedgerService. Debit and Credit must each
// be atomic in the backing store.
type LedgerStore interface {
	Balance(ctx context.Context, userID string) (int, error)
	Debit(ctx context.Context, userID string, amount int, description string) (bool, error)
	Credit(ctx context.Context, entry repository.CreditEntry) (bool, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

type LedgerService struct {
	store LedgerStore
	log   *slog.Logger
}

func NewLedgerService(store LedgerStore, log *slog.Logger) *LedgerService {
	return &LedgerService{store: store, log: log}
}

// Balance returns repository.ErrUserNotFound when the user has no record.
func (s *LedgerService) Balance(ctx context.Context, userID string) (int, error) {
	return s.store.Balance(ctx, userID)
}

// ReserveCheck is advisory; Debit is what enforces the balance.
func (s *LedgerService) ReserveCheck(ctx context.Context, userID string, amount int) (bool, error) {
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Debit returns false without mutating anything when the balance does not cover amount.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int, description string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	ok, err := s.store.Debit(ctx, userID, amount, description)
	if err != nil {
		return false, fmt.Errorf("debit %d credits: %w", amount, err)
	}
	return ok, nil
}

// Credit is a no-op returning false when externalRef has already been applied.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int, typ models.TransactionType, description, externalRef string, packageID *int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	applied, err := s.store.Credit(ctx, repository.CreditEntry{
		UserID:      userID,
		Amount:      amount,
		Type:        typ,
		Description: description,
		PackageID:   packageID,
		ExternalRef: externalRef,
	})
	if err != nil {
		return false, fmt.Errorf("credit %d credits: %w", amount, err)
	}
	if !applied && s.log != nil {
		s.log.Info("duplicate credit skipped", "user_id", userID, "external_ref", externalRef)
	}
	return applied, nil
}

func (s *LedgerService) Transactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListTransactions(ctx, userID, limit)
}
