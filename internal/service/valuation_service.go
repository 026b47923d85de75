package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/digkill/ValuationAPI/internal/config"
	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/repository"
)

const valuationDescription = "Property valuation report"

// Ledger is the part of the credit ledger the orchestrator needs.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int, error)
	Debit(ctx context.Context, userID string, amount int, description string) (bool, error)
}

// ReportStore persists valuation reports. Create returns repository.ErrDuplicateReport
// when the user already has a report for the same input hash.
type ReportStore interface {
	FindByInputHash(ctx context.Context, userID, inputHash string) (*models.Report, error)
	Create(ctx context.Context, report *models.Report) error
	Delete(ctx context.Context, userID, id string) (bool, error)
}

type ValuationProvider interface {
	Valuate(ctx context.Context, images []models.Image, details models.PropertyDetails) (*models.Valuation, error)
}

// PreviewStorage keeps the preview image outside the database.
type PreviewStorage interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectURL string) error
}

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Alerter interface {
	Notify(ctx context.Context, text string) error
}

type AuditLog interface {
	Log(ctx context.Context, userID, inputHash, outcome string) error
}

type OutcomeRecorder interface {
	ObserveValuation(outcome string, elapsed time.Duration)
	ObserveProvider(elapsed time.Duration, err error)
}

// ValuationPolicy holds the tunables of a valuation request.
type ValuationPolicy struct {
	Cost          int
	MinImages     int
	MaxImages     int
	MaxImageBytes int
	MaxRangeRatio float64
	MinConfidence float64
	LockTTL       time.Duration
}

func PolicyFromConfig(cfg config.Config) ValuationPolicy {
	return ValuationPolicy{
		Cost:          cfg.ValuationCostCredits,
		MinImages:     cfg.ValuationMinImages,
		MaxImages:     cfg.ValuationMaxImages,
		MaxImageBytes: cfg.ValuationMaxImageBytes,
		MaxRangeRatio: cfg.MaxRangeRatio,
		MinConfidence: cfg.MinConfidence,
		LockTTL:       cfg.InflightLockTTL,
	}
}

// ValuationDeps wires the orchestrator. Ledger, Reports and Provider are required;
// the rest may be nil.
type ValuationDeps struct {
	Ledger   Ledger
	Reports  ReportStore
	Provider ValuationProvider
	Previews PreviewStorage
	Locker   Locker
	Alerts   Alerter
	Audit    AuditLog
	Metrics  OutcomeRecorder
}

type ValuationService struct {
	policy     ValuationPolicy
	classifier Classifier
	log        *slog.Logger
	deps       ValuationDeps
	now        func() time.Time
	newID      func() string
}

func NewValuationService(policy ValuationPolicy, log *slog.Logger, deps ValuationDeps) *ValuationService {
	if policy.MinImages < 1 {
		policy.MinImages = 1
	}
	if policy.LockTTL <= 0 {
		policy.LockTTL = 3 * time.Minute
	}
	return &ValuationService{
		policy:     policy,
		classifier: Classifier{MaxRangeRatio: policy.MaxRangeRatio, MinConfidence: policy.MinConfidence},
		log:        log,
		deps:       deps,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

func (s *ValuationService) Cost() int {
	return s.policy.Cost
}

// SubmitResult carries the report and whether it came from an earlier identical request.
type SubmitResult struct {
	Report *models.Report
	Cached bool
}

// Submit runs one valuation request: validate, idempotency lookup, credit check,
// provider call, persist, debit. Persist and debit ignore request cancellation,
// and a failed insert or debit deletes the persisted report
// before returning. Every returned error is a *Error.
func (s *ValuationService) Submit(ctx context.Context, userID string, encodedImages []string, details models.PropertyDetails) (result *SubmitResult, err error) {
	start := time.Now()
	inputHash := ""
	defer func() {
		s.finish(ctx, userID, inputHash, result, err, time.Since(start))
	}()

	if strings.TrimSpace(userID) == "" {
		return nil, &Error{Kind: KindUnauthenticated, Message: "Unauthorized"}
	}

	images, verr := s.decodeImages(encodedImages)
	if verr != nil {
		return nil, verr
	}

	inputHash = ComputeKey(images, details)
	if cached, cerr := s.lookup(ctx, userID, inputHash); cerr != nil || cached != nil {
		return cached, cerr
	}

	if s.deps.Locker != nil {
		key := "valuation:inflight:" + userID + ":" + inputHash
		token, ok, lerr := s.deps.Locker.TryLock(ctx, key, s.policy.LockTTL)
		switch {
		case lerr != nil:
			s.log.Warn("inflight lock unavailable, continuing without it", "user_id", userID, "err", lerr)
		case !ok:
			return nil, &Error{
				Kind:    KindInProgress,
				Message: "An identical valuation is already in progress.",
				Hint:    "Wait a moment and check your reports before resubmitting.",
			}
		default:
			defer func() {
				if rerr := s.deps.Locker.Release(context.WithoutCancel(ctx), key, token); rerr != nil {
					s.log.Warn("release inflight lock", "user_id", userID, "err", rerr)
				}
			}()
			// the previous holder may have finished between lookup and lock
			if cached, cerr := s.lookup(ctx, userID, inputHash); cerr != nil || cached != nil {
				return cached, cerr
			}
		}
	}

	balance, berr := s.deps.Ledger.Balance(ctx, userID)
	if berr != nil {
		if errors.Is(berr, repository.ErrUserNotFound) {
			return nil, &Error{Kind: KindUserNotFound, Message: "User not found", Cause: berr}
		}
		return nil, storageError(fmt.Errorf("read balance: %w", berr))
	}
	if balance < s.policy.Cost {
		return nil, insufficientCredits(s.policy.Cost, balance)
	}

	valuation, perr := s.callProvider(ctx, images, details)
	if perr != nil {
		return nil, perr
	}

	report := &models.Report{
		Valuation:       *valuation,
		ID:              s.newID(),
		UserID:          userID,
		PropertyDetails: details,
		InputHash:       inputHash,
		Timestamp:       s.now(),
	}
	if err := s.attachPreview(ctx, report, images[0]); err != nil {
		return nil, storageError(fmt.Errorf("store preview: %w", err))
	}

	// Persist and debit must finish together once the provider has answered.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.deps.Reports.Create(persistCtx, report); err != nil {
		if errors.Is(err, repository.ErrDuplicateReport) {
			s.dropPreview(ctx, report)
			// a concurrent identical request won the insert
			existing, ferr := s.deps.Reports.FindByInputHash(persistCtx, userID, inputHash)
			if ferr != nil || existing == nil {
				return nil, storageError(fmt.Errorf("load concurrent report: %w", errors.Join(err, ferr)))
			}
			return &SubmitResult{Report: existing, Cached: true}, nil
		}
		// the insert may have committed before the error surfaced
		s.compensate(ctx, report, fmt.Errorf("persist report: %w", err))
		return nil, storageError(fmt.Errorf("persist report: %w", err))
	}

	ok, derr := s.deps.Ledger.Debit(persistCtx, userID, s.policy.Cost, valuationDescription)
	if derr != nil {
		s.compensate(ctx, report, fmt.Errorf("debit credits: %w", derr))
		return nil, storageError(fmt.Errorf("debit credits: %w", derr))
	}
	if !ok {
		s.compensate(ctx, report, errors.New("insufficient credits at debit"))
		current, rerr := s.deps.Ledger.Balance(context.WithoutCancel(ctx), userID)
		if rerr != nil {
			s.log.Error("refresh balance after failed debit", "user_id", userID, "err", rerr)
			current = 0
		}
		return nil, insufficientCredits(s.policy.Cost, current)
	}

	return &SubmitResult{Report: report}, nil
}

func (s *ValuationService) lookup(ctx context.Context, userID, inputHash string) (*SubmitResult, error) {
	cached, err := s.deps.Reports.FindByInputHash(ctx, userID, inputHash)
	if err != nil {
		return nil, storageError(fmt.Errorf("idempotency lookup: %w", err))
	}
	if cached == nil {
		return nil, nil
	}
	return &SubmitResult{Report: cached, Cached: true}, nil
}

func (s *ValuationService) callProvider(ctx context.Context, images []models.Image, details models.PropertyDetails) (*models.Valuation, *Error) {
	start := time.Now()
	valuation, err := s.deps.Provider.Valuate(ctx, images, details)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveProvider(time.Since(start), err)
	}
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if verr := s.classifier.Classify(valuation); verr != nil {
		return nil, verr
	}
	return valuation, nil
}

func (s *ValuationService) attachPreview(ctx context.Context, report *models.Report, first models.Image) error {
	if s.deps.Previews == nil {
		report.PreviewImage = "data:" + first.MimeType + ";base64," + base64.StdEncoding.EncodeToString(first.Data)
		return nil
	}
	objectURL, err := s.deps.Previews.Upload(ctx, first.Data, first.MimeType)
	if err != nil {
		return err
	}
	report.PreviewImage = objectURL
	return nil
}

func (s *ValuationService) dropPreview(ctx context.Context, report *models.Report) {
	if s.deps.Previews == nil || strings.HasPrefix(report.PreviewImage, "data:") {
		return
	}
	if err := s.deps.Previews.Delete(context.WithoutCancel(ctx), report.PreviewImage); err != nil {
		s.log.Warn("delete preview object", "report_id", report.ID, "err", err)
	}
}

// compensate removes a report whose debit did not happen. It runs detached from
// request cancellation so a disconnecting client cannot leave the report behind.
func (s *ValuationService) compensate(ctx context.Context, report *models.Report, cause error) {
	ctx = context.WithoutCancel(ctx)
	s.log.Warn("report not paid for, removing it", "user_id", report.UserID, "report_id", report.ID, "cause", cause)
	if _, err := s.deps.Reports.Delete(ctx, report.UserID, report.ID); err != nil {
		s.log.Error("compensating delete failed, report orphaned", "user_id", report.UserID, "report_id", report.ID, "err", err)
		if s.deps.Alerts != nil {
			text := fmt.Sprintf("Orphaned valuation report %s for user %s: %v and delete failed (%v)", report.ID, report.UserID, cause, err)
			if aerr := s.deps.Alerts.Notify(ctx, text); aerr != nil {
				s.log.Error("send orphan alert", "err", aerr)
			}
		}
		return
	}
	s.dropPreview(ctx, report)
}

func (s *ValuationService) finish(ctx context.Context, userID, inputHash string, result *SubmitResult, err error, elapsed time.Duration) {
	outcome := "success"
	var verr *Error
	switch {
	case errors.As(err, &verr):
		outcome = string(verr.Kind)
		if verr.Subkind != "" {
			outcome += ":" + string(verr.Subkind)
		}
		if verr.Cause != nil {
			s.log.Error("valuation failed", "user_id", userID, "kind", verr.Kind, "subkind", verr.Subkind, "err", verr.Cause)
		}
	case err != nil:
		outcome = "error"
	case result != nil && result.Cached:
		outcome = "cached"
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveValuation(outcome, elapsed)
	}
	if s.deps.Audit != nil && userID != "" {
		if aerr := s.deps.Audit.Log(context.WithoutCancel(ctx), userID, inputHash, outcome); aerr != nil {
			s.log.Warn("write valuation log", "err", aerr)
		}
	}
}

func (s *ValuationService) decodeImages(encoded []string) ([]models.Image, *Error) {
	if len(encoded) < s.policy.MinImages {
		return nil, validationError(
			fmt.Sprintf("At least %d images are required, got %d.", s.policy.MinImages, len(encoded)),
			fmt.Sprintf("Upload at least %d photos of the property.", s.policy.MinImages),
		)
	}
	if s.policy.MaxImages > 0 && len(encoded) > s.policy.MaxImages {
		return nil, validationError(
			fmt.Sprintf("At most %d images are allowed, got %d.", s.policy.MaxImages, len(encoded)),
			fmt.Sprintf("Remove some photos so no more than %d remain.", s.policy.MaxImages),
		)
	}

	images := make([]models.Image, 0, len(encoded))
	for i, raw := range encoded {
		img, err := decodeImage(raw)
		if err != nil {
			return nil, validationError(
				fmt.Sprintf("Image %d could not be decoded.", i+1),
				"Images must be base64 encoded, optionally as data URLs.",
			)
		}
		if len(img.Data) == 0 {
			return nil, validationError(
				fmt.Sprintf("Image %d is empty.", i+1),
				"Re-upload the photo; the file appears to be empty.",
			)
		}
		if s.policy.MaxImageBytes > 0 && len(img.Data) > s.policy.MaxImageBytes {
			return nil, validationError(
				fmt.Sprintf("Image %d exceeds the %d byte limit.", i+1, s.policy.MaxImageBytes),
				"Resize or compress large photos before uploading.",
			)
		}
		images = append(images, img)
	}
	return images, nil
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(raw string) (models.Image, error) {
	raw = strings.TrimSpace(raw)
	mime := ""
	if strings.HasPrefix(raw, "data:") {
		header, payload, found := strings.Cut(raw, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return models.Image{}, errors.New("unsupported data url")
		}
		mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		raw = payload
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(raw); err != nil {
			return models.Image{}, err
		}
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = sniffImageType(data)
	}
	return models.Image{Data: data, MimeType: mime}, nil
}

func sniffImageType(data []byte) string {
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
