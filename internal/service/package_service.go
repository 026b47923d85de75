package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/digkill/ValuationAPI/internal/models"
)

type PackageStore interface {
	List(ctx context.Context) ([]models.CreditPackage, error)
	ListActive(ctx context.Context) ([]models.CreditPackage, error)
	CountActive(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id int64) (*models.CreditPackage, error)
	Create(ctx context.Context, p *models.CreditPackage) (*models.CreditPackage, error)
	Update(ctx context.Context, p *models.CreditPackage) (*models.CreditPackage, error)
	Delete(ctx context.Context, id int64) error
}

type PackageService struct {
	repo     PackageStore
	currency string
}

type CreatePackageInput struct {
	Name               string `json:"name"`
	Credits            int    `json:"credits"`
	PriceCents         int    `json:"priceCents"`
	OriginalPriceCents *int   `json:"originalPriceCents"`
	Currency           string `json:"currency"`
	StripePriceID      string `json:"stripePriceId"`
	Popular            bool   `json:"popular"`
	Active             *bool  `json:"active"`
}

type UpdatePackageInput struct {
	Name               *string `json:"name"`
	Credits            *int    `json:"credits"`
	PriceCents         *int    `json:"priceCents"`
	OriginalPriceCents *int    `json:"originalPriceCents"`
	Currency           *string `json:"currency"`
	StripePriceID      *string `json:"stripePriceId"`
	Popular            *bool   `json:"popular"`
	Active             *bool   `json:"active"`
}

func NewPackageService(repo PackageStore, currency string) *PackageService {
	return &PackageService{repo: repo, currency: strings.ToLower(currency)}
}

func intPtr(v int) *int { return &v }

// EnsureDefaultPackages seeds the catalogue when no active package exists.
func (s *PackageService) EnsureDefaultPackages(ctx context.Context) error {
	n, err := s.repo.CountActive(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	defaults := []models.CreditPackage{
		{Name: "Basic Pack", Credits: 10, PriceCents: 1000},
		{Name: "Starter Pack", Credits: 35, PriceCents: 2900, OriginalPriceCents: intPtr(3500), Popular: true},
		{Name: "Professional Pack", Credits: 110, PriceCents: 9900, OriginalPriceCents: intPtr(11000)},
	}
	for i := range defaults {
		defaults[i].Currency = s.currency
		defaults[i].Active = true
		if _, err := s.repo.Create(ctx, &defaults[i]); err != nil {
			return fmt.Errorf("create default package %q: %w", defaults[i].Name, err)
		}
	}
	return nil
}

func (s *PackageService) List(ctx context.Context) ([]models.CreditPackage, error) {
	return s.repo.List(ctx)
}

func (s *PackageService) ListActive(ctx context.Context) ([]models.CreditPackage, error) {
	return s.repo.ListActive(ctx)
}

// GetActive returns ErrPackageNotFound for unknown or disabled packages.
func (s *PackageService) GetActive(ctx context.Context, id int64) (*models.CreditPackage, error) {
	pkg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get package: %w", err)
	}
	if pkg == nil || !pkg.Active {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

func (s *PackageService) GetByID(ctx context.Context, id int64) (*models.CreditPackage, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PackageService) Create(ctx context.Context, input CreatePackageInput) (*models.CreditPackage, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.PriceCents <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}
	if input.Credits <= 0 {
		return nil, fmt.Errorf("credits must be positive")
	}
	if input.Currency == "" {
		input.Currency = s.currency
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}
	pkg := models.CreditPackage{
		Name:               strings.TrimSpace(input.Name),
		Credits:            input.Credits,
		PriceCents:         input.PriceCents,
		OriginalPriceCents: input.OriginalPriceCents,
		Currency:           strings.ToLower(input.Currency),
		StripePriceID:      input.StripePriceID,
		Popular:            input.Popular,
		Active:             active,
	}
	return s.repo.Create(ctx, &pkg)
}

func (s *PackageService) Update(ctx context.Context, id int64, input UpdatePackageInput) (*models.CreditPackage, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrPackageNotFound
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		existing.Name = strings.TrimSpace(*input.Name)
	}
	if input.Credits != nil && *input.Credits > 0 {
		existing.Credits = *input.Credits
	}
	if input.PriceCents != nil && *input.PriceCents > 0 {
		existing.PriceCents = *input.PriceCents
	}
	if input.OriginalPriceCents != nil {
		existing.OriginalPriceCents = input.OriginalPriceCents
	}
	if input.Currency != nil && *input.Currency != "" {
		existing.Currency = strings.ToLower(*input.Currency)
	}
	if input.StripePriceID != nil {
		existing.StripePriceID = *input.StripePriceID
	}
	if input.Popular != nil {
		existing.Popular = *input.Popular
	}
	if input.Active != nil {
		existing.Active = *input.Active
	}
	return s.repo.Update(ctx, existing)
}

func (s *PackageService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
