package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/repository"
)

type PromoService struct {
	promos       *repository.PromoRepository
	users        *repository.UserRepository
	log          *slog.Logger
	defaultBonus int
}

type PromoInput struct {
	Code         string `json:"code"`
	BonusCredits int    `json:"bonusCredits"`
	MaxUses      int    `json:"maxUses"`
}

func NewPromoService(promos *repository.PromoRepository, users *repository.UserRepository, log *slog.Logger, defaultBonus int) *PromoService {
	return &PromoService{promos: promos, users: users, log: log, defaultBonus: defaultBonus}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply redeems code for userID once and returns the credits granted.
func (s *PromoService) Apply(ctx context.Context, userID, code string) (int, error) {
	code = normalizeCode(code)
	if code == "" {
		return 0, ErrPromoInvalid
	}
	promo, err := s.promos.GetByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("get promo: %w", err)
	}
	if promo == nil {
		return 0, ErrPromoInvalid
	}

	tx, err := s.promos.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	uses, maxUses, err := s.promos.LockForRedeem(ctx, tx, promo.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPromoInvalid
		}
		return 0, fmt.Errorf("lock promo: %w", err)
	}
	if uses >= maxUses {
		return 0, ErrPromoExhausted
	}

	if err := s.promos.RecordRedemption(ctx, tx, userID, promo.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyRedeemed) {
			return 0, ErrPromoAlreadyRedeemed
		}
		return 0, err
	}

	bonus := promo.BonusCredits
	if bonus <= 0 {
		bonus = s.defaultBonus
	}
	applied, err := s.users.CreditInTx(ctx, tx, repository.CreditEntry{
		UserID:      userID,
		Amount:      bonus,
		Type:        models.TransactionBonus,
		Description: fmt.Sprintf("Promo code %s", promo.Code),
		ExternalRef: fmt.Sprintf("promo:%d:%s", promo.ID, userID),
	})
	if err != nil {
		return 0, fmt.Errorf("add promo credits: %w", err)
	}
	if !applied {
		return 0, ErrPromoAlreadyRedeemed
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit promo tx: %w", err)
	}
	s.log.Info("promo redeemed", "user_id", userID, "promo_id", promo.ID, "credits", bonus)
	return bonus, nil
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	return s.promos.List(ctx)
}

func (s *PromoService) Create(ctx context.Context, input PromoInput) (*models.PromoCode, error) {
	code := normalizeCode(input.Code)
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	if input.MaxUses <= 0 {
		return nil, fmt.Errorf("maxUses must be positive")
	}
	if input.BonusCredits < 0 {
		return nil, fmt.Errorf("bonusCredits must not be negative")
	}
	return s.promos.Create(ctx, &models.PromoCode{Code: code, BonusCredits: input.BonusCredits, MaxUses: input.MaxUses})
}

func (s *PromoService) Update(ctx context.Context, id int64, input PromoInput) (*models.PromoCode, error) {
	existing, err := s.promos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrPromoInvalid
	}
	if code := normalizeCode(input.Code); code != "" {
		existing.Code = code
	}
	if input.BonusCredits > 0 {
		existing.BonusCredits = input.BonusCredits
	}
	if input.MaxUses > 0 {
		existing.MaxUses = input.MaxUses
	}
	return s.promos.Update(ctx, existing)
}

func (s *PromoService) Delete(ctx context.Context, id int64) error {
	return s.promos.Delete(ctx, id)
}
