package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digkill/ValuationAPI/internal/models"
)

type UserStore interface {
	Ensure(ctx context.Context, id, email string) (*models.User, bool, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type UserService struct {
	users       UserStore
	ledger      *LedgerService
	log         *slog.Logger
	signupBonus int
}

func NewUserService(users UserStore, ledger *LedgerService, log *slog.Logger, signupBonus int) *UserService {
	return &UserService{users: users, ledger: ledger, log: log, signupBonus: signupBonus}
}

// Ensure creates the user on first authenticated request and grants the signup bonus once.
func (s *UserService) Ensure(ctx context.Context, id, email string) (*models.User, error) {
	user, created, err := s.users.Ensure(ctx, id, email)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if !created || s.signupBonus <= 0 {
		return user, nil
	}
	applied, err := s.ledger.Credit(ctx, id, s.signupBonus, models.TransactionBonus, "Welcome bonus", "signup:"+id, nil)
	if err != nil {
		// the user row exists; the bonus can be granted manually
		s.log.Error("grant signup bonus", "user_id", id, "err", err)
		return user, nil
	}
	if applied {
		user.Credits += s.signupBonus
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}
