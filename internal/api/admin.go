package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/service"
)

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := s.deps.Packages.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, packages)
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePackageInput
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	pkg, err := s.deps.Packages.Create(r.Context(), req)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, pkg)
}

func (s *Server) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid id")
		return
	}
	var req service.UpdatePackageInput
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	pkg, err := s.deps.Packages.Update(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) handleDeletePackage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid id")
		return
	}
	if err := s.deps.Packages.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := s.deps.Promos.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, promos)
}

func (s *Server) handleCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req service.PromoInput
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	promo, err := s.deps.Promos.Create(r.Context(), req)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, promo)
}

func (s *Server) handleUpdatePromo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid id")
		return
	}
	var req service.PromoInput
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	promo, err := s.deps.Promos.Update(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, promo)
}

func (s *Server) handleDeletePromo(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, "invalid id")
		return
	}
	if err := s.deps.Promos.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type grantCreditsRequest struct {
	Amount      int    `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
	ExternalRef string `json:"externalRef"`
}

// handleGrantCredits adds bonus or refund credits to a user. A repeated externalRef is a no-op.
func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	var req grantCreditsRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if req.Amount <= 0 {
		s.badRequest(w, "amount must be positive")
		return
	}

	typ := models.TransactionType(strings.ToLower(strings.TrimSpace(req.Type)))
	switch typ {
	case "":
		typ = models.TransactionBonus
	case models.TransactionBonus, models.TransactionRefund:
	default:
		s.badRequest(w, "type must be bonus or refund")
		return
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Admin bonus"
		if typ == models.TransactionRefund {
			description = "Refund"
		}
	}

	ctx := r.Context()
	applied, err := s.deps.Ledger.Credit(ctx, userID, req.Amount, typ, description, strings.TrimSpace(req.ExternalRef), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.deps.Ledger.Balance(ctx, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("admin credit grant", "user_id", userID, "amount", req.Amount, "type", typ, "applied", applied)
	s.writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "credits": balance})
}

type statsResponse struct {
	Day      string         `json:"day"`
	Total    int            `json:"total"`
	Outcomes map[string]int `json:"outcomes"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	day := s.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("day")); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			s.badRequest(w, "day must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	counts, err := s.deps.Stats.CountByOutcomeForDay(r.Context(), day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	s.writeJSON(w, http.StatusOK, statsResponse{Day: day.Format(time.DateOnly), Total: total, Outcomes: counts})
}
