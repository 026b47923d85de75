package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/ValuationAPI/internal/models"
)

type PackageRepository struct {
	db *sql.DB
}

func NewPackageRepository(db *sql.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

const packageColumns = `id, name, credits, price_cents, original_price_cents, currency, COALESCE(stripe_price_id, ''), popular, active, created_at, updated_at`

func scanPackage(row interface{ Scan(...any) error }) (*models.CreditPackage, error) {
	var p models.CreditPackage
	var original sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.Credits, &p.PriceCents, &original, &p.Currency, &p.StripePriceID, &p.Popular, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if original.Valid {
		v := int(original.Int64)
		p.OriginalPriceCents = &v
	}
	return &p, nil
}

func (r *PackageRepository) list(ctx context.Context, query string) ([]models.CreditPackage, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var packages []models.CreditPackage
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		packages = append(packages, *p)
	}
	return packages, rows.Err()
}

func (r *PackageRepository) List(ctx context.Context) ([]models.CreditPackage, error) {
	return r.list(ctx, `SELECT `+packageColumns+` FROM credit_packages ORDER BY id ASC`)
}

func (r *PackageRepository) ListActive(ctx context.Context) ([]models.CreditPackage, error) {
	return r.list(ctx, `SELECT `+packageColumns+` FROM credit_packages WHERE active = 1 ORDER BY credits ASC`)
}

func (r *PackageRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credit_packages WHERE active = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active packages: %w", err)
	}
	return count, nil
}

func (r *PackageRepository) GetByID(ctx context.Context, id int64) (*models.CreditPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM credit_packages WHERE id = ?`
	p, err := scanPackage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get package: %w", err)
	}
	return p, nil
}

func (r *PackageRepository) Create(ctx context.Context, p *models.CreditPackage) (*models.CreditPackage, error) {
	const query = `
INSERT INTO credit_packages (name, credits, price_cents, original_price_cents, currency, stripe_price_id, popular, active)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`
	res, err := r.db.ExecContext(ctx, query, p.Name, p.Credits, p.PriceCents, p.OriginalPriceCents, p.Currency, p.StripePriceID, p.Popular, p.Active)
	if err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("package last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PackageRepository) Update(ctx context.Context, p *models.CreditPackage) (*models.CreditPackage, error) {
	const query = `
UPDATE credit_packages
SET name = ?, credits = ?, price_cents = ?, original_price_cents = ?, currency = ?, stripe_price_id = NULLIF(?, ''), popular = ?, active = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, p.Name, p.Credits, p.PriceCents, p.OriginalPriceCents, p.Currency, p.StripePriceID, p.Popular, p.Active, p.ID); err != nil {
		return nil, fmt.Errorf("update package: %w", err)
	}
	return r.GetByID(ctx, p.ID)
}

func (r *PackageRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM credit_packages WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete package: %w", err)
	}
	return nil
}
