package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/ValuationAPI/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) DB() *sql.DB {
	return r.db
}

// CreditEntry describes one balance increase and its ledger row.
type CreditEntry struct {
	UserID      string
	Amount      int
	Type        models.TransactionType
	Description string
	PackageID   *int64
	ExternalRef string
}

const userColumns = `id, email, credits, total_credits_purchased, COALESCE(stripe_customer_id, ''), COALESCE(subscription_status, ''), created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Credits, &u.TotalCreditsPurchased, &u.StripeCustomerID, &u.SubscriptionStatus, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByStripeCustomer(ctx context.Context, customerID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user by customer: %w", err)
	}
	return u, nil
}

// Ensure inserts the user on first sight and keeps the email current. created is true for a new row.
func (r *UserRepository) Ensure(ctx context.Context, id, email string) (*models.User, bool, error) {
	const query = `
INSERT INTO users (id, email) VALUES (?, ?)
ON DUPLICATE KEY UPDATE email = IF(VALUES(email) <> '', VALUES(email), email)`
	res, err := r.db.ExecContext(ctx, query, id, email)
	if err != nil {
		return nil, false, fmt.Errorf("ensure user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("ensure user rows affected: %w", err)
	}
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, ErrUserNotFound
	}
	return user, affected == 1, nil
}

func (r *UserRepository) Balance(ctx context.Context, userID string) (int, error) {
	const query = `SELECT credits FROM users WHERE id = ?`
	var credits int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&credits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return credits, nil
}

// Debit decrements credits only when the balance covers amount and appends a spent row
// in the same transaction. ok is false when the balance was insufficient.
func (r *UserRepository) Debit(ctx context.Context, userID string, amount int, description string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback()

	const update = `
UPDATE users SET credits = credits - ?, updated_at = NOW()
WHERE id = ? AND credits >= ?`
	res, err := tx.ExecContext(ctx, update, amount, userID, amount)
	if err != nil {
		return false, fmt.Errorf("debit credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	const insert = `
INSERT INTO credit_transactions (user_id, amount, type, description)
VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, userID, -amount, models.TransactionSpent, description); err != nil {
		return false, fmt.Errorf("insert spent transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit debit tx: %w", err)
	}
	return true, nil
}

// Credit applies entry in its own transaction. applied is false when entry.ExternalRef was seen before.
func (r *UserRepository) Credit(ctx context.Context, entry CreditEntry) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback()

	applied, err := r.CreditInTx(ctx, tx, entry)
	if err != nil || !applied {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit credit tx: %w", err)
	}
	return true, nil
}

// CreditInTx inserts the ledger row first so a duplicate external reference is
// rejected by the unique index before the balance is touched.
func (r *UserRepository) CreditInTx(ctx context.Context, tx *sql.Tx, entry CreditEntry) (bool, error) {
	const insert = `
INSERT INTO credit_transactions (user_id, amount, type, description, package_id, external_ref)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''))`
	var packageID sql.NullInt64
	if entry.PackageID != nil {
		packageID = sql.NullInt64{Int64: *entry.PackageID, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, insert, entry.UserID, entry.Amount, entry.Type, entry.Description, packageID, entry.ExternalRef); err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert credit transaction: %w", err)
	}

	purchased := 0
	if entry.Type == models.TransactionPurchased {
		purchased = entry.Amount
	}
	const update = `
UPDATE users SET credits = credits + ?, total_credits_purchased = total_credits_purchased + ?, updated_at = NOW()
WHERE id = ?`
	res, err := tx.ExecContext(ctx, update, entry.Amount, purchased, entry.UserID)
	if err != nil {
		return false, fmt.Errorf("credit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credit rows affected: %w", err)
	}
	if affected == 0 {
		return false, ErrUserNotFound
	}
	return true, nil
}

func (r *UserRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	const query = `
SELECT id, user_id, amount, type, description, package_id, COALESCE(external_ref, ''), created_at
FROM credit_transactions
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		var packageID sql.NullInt64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &packageID, &t.ExternalRef, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if packageID.Valid {
			t.PackageID = &packageID.Int64
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *UserRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const query = `UPDATE users SET stripe_customer_id = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, customerID, userID); err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	return nil
}

func (r *UserRepository) SetSubscriptionStatus(ctx context.Context, customerID, status string) (bool, error) {
	const query = `UPDATE users SET subscription_status = ?, updated_at = NOW() WHERE stripe_customer_id = ?`
	res, err := r.db.ExecContext(ctx, query, status, customerID)
	if err != nil {
		return false, fmt.Errorf("set subscription status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("subscription rows affected: %w", err)
	}
	return affected > 0, nil
}
