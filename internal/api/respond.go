package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/digkill/ValuationAPI/internal/auth"
	"github.com/digkill/ValuationAPI/internal/repository"
	"github.com/digkill/ValuationAPI/internal/service"
)

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error          string   `json:"error"`
	Code           string   `json:"code,omitempty"`
	Hint           string   `json:"hint,omitempty"`
	Details        string   `json:"details,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
	CreditsNeeded  *int     `json:"creditsNeeded,omitempty"`
	CurrentCredits *int     `json:"currentCredits,omitempty"`
	RetryAfter     int      `json:"retryAfter,omitempty"`
	Retryable      bool     `json:"retryable,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.Error
	if errors.As(err, &verr) {
		s.writeServiceError(w, verr)
		return
	}

	status := http.StatusInternalServerError
	body := errorResponse{Error: "Internal server error", Code: "internal"}
	switch {
	case errors.Is(err, service.ErrReportNotFound):
		status, body = http.StatusNotFound, errorResponse{Error: "Report not found", Code: "not_found"}
	case errors.Is(err, service.ErrPackageNotFound):
		status, body = http.StatusNotFound, errorResponse{Error: "Credit package not found", Code: "not_found"}
	case errors.Is(err, repository.ErrUserNotFound):
		status, body = http.StatusNotFound, errorResponse{Error: "User not found", Code: string(service.KindUserNotFound)}
	case errors.Is(err, service.ErrPromoInvalid):
		status, body = http.StatusBadRequest, errorResponse{Error: "Invalid promo code", Code: "promo_invalid"}
	case errors.Is(err, service.ErrPromoExhausted):
		status, body = http.StatusBadRequest, errorResponse{Error: "This promo code has reached its usage limit", Code: "promo_exhausted"}
	case errors.Is(err, service.ErrPromoAlreadyRedeemed):
		status, body = http.StatusConflict, errorResponse{Error: "You have already used this promo code", Code: "promo_already_redeemed"}
	case errors.Is(err, service.ErrInvalidAmount):
		status, body = http.StatusBadRequest, errorResponse{Error: "Amount must be positive", Code: string(service.KindValidation)}
	default:
		s.log.Error("api handler error", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	s.writeJSON(w, status, body)
}

// writeServiceError renders a *service.Error. Cause is never rendered.
func (s *Server) writeServiceError(w http.ResponseWriter, e *service.Error) {
	body := errorResponse{
		Error:       e.Message,
		Code:        string(e.Kind),
		Hint:        e.Hint,
		Details:     e.Details,
		Suggestions: e.Suggestions,
		Retryable:   e.Retryable(),
	}
	if e.Subkind != "" {
		body.Code += ":" + string(e.Subkind)
	}
	if e.Kind == service.KindInsufficientCredits {
		needed, current := e.CreditsNeeded, e.CurrentCredits
		body.CreditsNeeded = &needed
		body.CurrentCredits = &current
	}
	if e.RetryAfter > 0 {
		secs := retryAfterSeconds(e.RetryAfter)
		body.RetryAfter = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	status := e.Kind.Status()
	if status >= http.StatusInternalServerError && body.Error == "" {
		body.Error = "Internal server error"
	}
	s.writeJSON(w, status, body)
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Code: string(service.KindValidation)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return json.NewDecoder(r.Body).Decode(dst)
}

// subject returns the authenticated user id; the auth middleware guarantees claims.
func subject(r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return nil, false
	}
	return claims, true
}

func (s *Server) unauthenticated(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Code: string(service.KindUnauthenticated)})
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
