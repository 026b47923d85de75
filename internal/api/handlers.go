package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/service"
)

type valuationRequest struct {
	Images          []string               `json:"images"`
	PropertyDetails models.PropertyDetails `json:"propertyDetails"`
}

type valuationResponse struct {
	Report *models.Report `json:"report"`
	Cached bool           `json:"cached,omitempty"`
}

func (s *Server) handleCreateValuation(w http.ResponseWriter, r *http.Request) {
	claims, ok := subject(r)
	if !ok {
		s.unauthenticated(w)
		return
	}
	ctx := r.Context()

	if s.deps.Limiter != nil {
		allowed, retryAfter, err := s.deps.Limiter.Allow(ctx, claims.Subject)
		if err != nil {
			s.log.Warn("rate limiter unavailable", "user_id", claims.Subject, "err", err)
		} else if !allowed {
			s.writeServiceError(w, &service.Error{
				Kind:       service.KindRateLimited,
				Message:    "Too many valuation requests. Please slow down.",
				RetryAfter: retryAfter,
			})
			return
		}
	}

	var req valuationRequest
	if err := decodeJSON(w, r, s.opts.MaxValuationBody, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: "Request body too large",
				Code:  string(service.KindValidation),
				Hint:  "Upload fewer or smaller photos.",
			})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "Invalid request body",
			Code:  string(service.KindValidation),
			Hint:  "Send JSON with an images array and optional propertyDetails.",
		})
		return
	}

	result, err := s.deps.Valuations.Submit(ctx, claims.Subject, req.Images, req.PropertyDetails)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, valuationResponse{Report: result.Report, Cached: result.Cached})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

// currentUser creates the caller's record on first use. It writes the error response itself.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	claims, ok := subject(r)
	if !ok {
		s.unauthenticated(w)
		return nil, false
	}
	user, err := s.deps.Users.Ensure(r.Context(), claims.Subject, claims.Email)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return user, true
}

type creditsResponse struct {
	Credits               int  `json:"credits"`
	TotalCreditsPurchased int  `json:"totalCreditsPurchased"`
	HasEnoughCredits      bool `json:"hasEnoughCredits"`
	CreditsNeeded         int  `json:"creditsNeeded"`
}

func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	balance, err := s.deps.Ledger.Balance(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cost := s.deps.Valuations.Cost()
	s.writeJSON(w, http.StatusOK, creditsResponse{
		Credits:               balance,
		TotalCreditsPurchased: user.TotalCreditsPurchased,
		HasEnoughCredits:      balance >= cost,
		CreditsNeeded:         cost,
	})
}

func (s *Server) handleListActivePackages(w http.ResponseWriter, r *http.Request) {
	packages, err := s.deps.Packages.ListActive(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if packages == nil {
		packages = []models.CreditPackage{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	claims, ok := subject(r)
	if !ok {
		s.unauthenticated(w)
		return
	}
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txs, err := s.deps.Ledger.Transactions(r.Context(), claims.Subject, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []models.CreditTransaction{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

type purchaseRequest struct {
	PackageID int64 `json:"packageId"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if req.PackageID <= 0 {
		s.badRequest(w, "packageId required")
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	checkout, err := s.deps.Payments.CreateCheckout(r.Context(), user, req.PackageID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, checkout)
}

type promoApplyRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req promoApplyRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		s.badRequest(w, "code required")
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	added, err := s.deps.Promos.Apply(ctx, user.ID, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.deps.Ledger.Balance(ctx, user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"creditsAdded": added, "credits": balance})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	claims, ok := subject(r)
	if !ok {
		s.unauthenticated(w)
		return
	}
	reports, err := s.deps.Reports.List(r.Context(), claims.Subject, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := subject(r)
	if !ok {
		s.unauthenticated(w)
		return
	}
	report, err := s.deps.Reports.Get(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := subject(r)
	if !ok {
		s.unauthenticated(w)
		return
	}
	if err := s.deps.Reports.Delete(r.Context(), claims.Subject, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShareReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := subject(r)
	if !ok {
		s.unauthenticated(w)
		return
	}
	link, err := s.deps.Reports.Share(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, link)
}

func (s *Server) handleDetailedReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := subject(r)
	if !ok {
		s.unauthenticated(w)
		return
	}
	text, err := s.deps.Reports.GenerateDetailed(r.Context(), claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"detailedReport": text})
}

func (s *Server) handleGetShared(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Reports.GetShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

// handleStripeWebhook answers 400 for deliveries Stripe should not retry and 500 for the rest.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	err = s.deps.Payments.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		s.log.Warn("stripe webhook rejected", "err", err)
		s.badRequest(w, "invalid signature")
		return
	case errors.Is(err, service.ErrInvalidPurchase):
		s.log.Warn("stripe webhook rejected", "err", err)
		s.badRequest(w, "invalid purchase")
		return
	case err != nil:
		s.log.Error("stripe webhook", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Webhook processing failed", Code: "internal"})
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.WebhookAccepted()
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
