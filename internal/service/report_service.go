package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/ValuationAPI/internal/models"
)

type ReportReader interface {
	GetByID(ctx context.Context, userID, id string) (*models.Report, error)
	GetByShareToken(ctx context.Context, token string) (*models.Report, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Report, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
	SetShareToken(ctx context.Context, userID, id, token string) error
	SetDetailedReport(ctx context.Context, userID, id, text string) error
}

// Narrator writes a long-form markdown report from a stored valuation.
type Narrator interface {
	DetailedReport(ctx context.Context, report *models.Report) (string, error)
}

type ReportService struct {
	reports       ReportReader
	narrator      Narrator
	previews      PreviewStorage
	log           *slog.Logger
	publicBaseURL string
}

func NewReportService(reports ReportReader, narrator Narrator, previews PreviewStorage, log *slog.Logger, publicBaseURL string) *ReportService {
	return &ReportService{
		reports:       reports,
		narrator:      narrator,
		previews:      previews,
		log:           log,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *ReportService) List(ctx context.Context, userID string, limit, offset int) ([]models.Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	reports, err := s.reports.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func (s *ReportService) Get(ctx context.Context, userID, id string) (*models.Report, error) {
	report, err := s.reports.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

func (s *ReportService) Delete(ctx context.Context, userID, id string) error {
	report, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	deleted, err := s.reports.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if !deleted {
		return ErrReportNotFound
	}
	if s.previews != nil && !strings.HasPrefix(report.PreviewImage, "data:") && report.PreviewImage != "" {
		if err := s.previews.Delete(ctx, report.PreviewImage); err != nil {
			s.log.Warn("delete preview object", "report_id", id, "err", err)
		}
	}
	return nil
}

type ShareLink struct {
	ShareToken string `json:"shareToken"`
	ShareURL   string `json:"shareUrl"`
}

// Share returns the report's public link, creating the token on first use.
func (s *ReportService) Share(ctx context.Context, userID, id string) (*ShareLink, error) {
	report, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if report.ShareToken == "" {
		token, err := newShareToken()
		if err != nil {
			return nil, err
		}
		if err := s.reports.SetShareToken(ctx, userID, id, token); err != nil {
			return nil, fmt.Errorf("share report: %w", err)
		}
		if report, err = s.Get(ctx, userID, id); err != nil {
			return nil, err
		}
	}
	return &ShareLink{
		ShareToken: report.ShareToken,
		ShareURL:   s.publicBaseURL + "/shared/" + report.ShareToken,
	}, nil
}

func (s *ReportService) GetShared(ctx context.Context, token string) (*models.Report, error) {
	if len(token) != 64 {
		return nil, ErrReportNotFound
	}
	report, err := s.reports.GetByShareToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get shared report: %w", err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// GenerateDetailed asks the narrator for a markdown report once and stores it.
func (s *ReportService) GenerateDetailed(ctx context.Context, userID, id string) (string, error) {
	report, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if report.DetailedReport != "" {
		return report.DetailedReport, nil
	}
	text, err := s.narrator.DetailedReport(ctx, report)
	if err != nil {
		return "", fmt.Errorf("generate detailed report: %w", err)
	}
	if err := s.reports.SetDetailedReport(ctx, userID, id, text); err != nil {
		return "", fmt.Errorf("store detailed report: %w", err)
	}
	return text, nil
}

func newShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
