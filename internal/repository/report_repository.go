package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/digkill/ValuationAPI/internal/models"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, user_id, input_hash, report_data, property_details, preview_image, COALESCE(detailed_report, ''), COALESCE(share_token, ''), created_at`

func scanReport(row interface{ Scan(...any) error }) (*models.Report, error) {
	var rep models.Report
	var data, details []byte
	if err := row.Scan(&rep.ID, &rep.UserID, &rep.InputHash, &data, &details, &rep.PreviewImage, &rep.DetailedReport, &rep.ShareToken, &rep.Timestamp); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &rep.Valuation); err != nil {
		return nil, fmt.Errorf("decode report data: %w", err)
	}
	if err := json.Unmarshal(details, &rep.PropertyDetails); err != nil {
		return nil, fmt.Errorf("decode property details: %w", err)
	}
	return &rep, nil
}

func (r *ReportRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Report, error) {
	rep, err := scanReport(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return rep, nil
}

// Create stores report. ErrDuplicateReport means the same user already has a report for its input hash.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	data, err := json.Marshal(report.Valuation)
	if err != nil {
		return fmt.Errorf("encode report data: %w", err)
	}
	details, err := json.Marshal(report.PropertyDetails)
	if err != nil {
		return fmt.Errorf("encode property details: %w", err)
	}
	const query = `
INSERT INTO reports (id, user_id, input_hash, report_data, property_details, preview_image, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, report.ID, report.UserID, report.InputHash, data, details, report.PreviewImage, report.Timestamp); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateReport
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) FindByInputHash(ctx context.Context, userID, inputHash string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE user_id = ? AND input_hash = ? ORDER BY created_at DESC LIMIT 1`
	return r.queryOne(ctx, query, userID, inputHash)
}

func (r *ReportRepository) GetByID(ctx context.Context, userID, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ? AND user_id = ?`
	return r.queryOne(ctx, query, id, userID)
}

func (r *ReportRepository) GetByShareToken(ctx context.Context, token string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE share_token = ?`
	return r.queryOne(ctx, query, token)
}

func (r *ReportRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report list: %w", err)
		}
		reports = append(reports, *rep)
	}
	return reports, rows.Err()
}

// Delete removes the report if userID owns it and reports whether a row was removed.
func (r *ReportRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	const query = `DELETE FROM reports WHERE id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete report rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetShareToken assigns token unless the report already has one.
func (r *ReportRepository) SetShareToken(ctx context.Context, userID, id, token string) error {
	const query = `UPDATE reports SET share_token = COALESCE(share_token, ?) WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, token, id, userID); err != nil {
		return fmt.Errorf("set share token: %w", err)
	}
	return nil
}

func (r *ReportRepository) SetDetailedReport(ctx context.Context, userID, id, text string) error {
	const query = `UPDATE reports SET detailed_report = ? WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, text, id, userID); err != nil {
		return fmt.Errorf("set detailed report: %w", err)
	}
	return nil
}
