package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/ValuationAPI/internal/auth"
	"github.com/digkill/ValuationAPI/internal/models"
	"github.com/digkill/ValuationAPI/internal/service"
)

type UserService interface {
	Ensure(ctx context.Context, id, email string) (*models.User, error)
}

type LedgerService interface {
	Balance(ctx context.Context, userID string) (int, error)
	Transactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
	Credit(ctx context.Context, userID string, amount int, typ models.TransactionType, description, externalRef string, packageID *int64) (bool, error)
}

type ValuationService interface {
	Submit(ctx context.Context, userID string, encodedImages []string, details models.PropertyDetails) (*service.SubmitResult, error)
	Cost() int
}

type ReportService interface {
	List(ctx context.Context, userID string, limit, offset int) ([]models.Report, error)
	Get(ctx context.Context, userID, id string) (*models.Report, error)
	Delete(ctx context.Context, userID, id string) error
	Share(ctx context.Context, userID, id string) (*service.ShareLink, error)
	GetShared(ctx context.Context, token string) (*models.Report, error)
	GenerateDetailed(ctx context.Context, userID, id string) (string, error)
}

type PackageService interface {
	List(ctx context.Context) ([]models.CreditPackage, error)
	ListActive(ctx context.Context) ([]models.CreditPackage, error)
	Create(ctx context.Context, input service.CreatePackageInput) (*models.CreditPackage, error)
	Update(ctx context.Context, id int64, input service.UpdatePackageInput) (*models.CreditPackage, error)
	Delete(ctx context.Context, id int64) error
}

type PromoService interface {
	Apply(ctx context.Context, userID, code string) (int, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	Create(ctx context.Context, input service.PromoInput) (*models.PromoCode, error)
	Update(ctx context.Context, id int64, input service.PromoInput) (*models.PromoCode, error)
	Delete(ctx context.Context, id int64) error
}

type PaymentService interface {
	CreateCheckout(ctx context.Context, user *models.User, packageID int64) (*service.CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// StatsSource reports valuation outcomes per day.
type StatsSource interface {
	CountByOutcomeForDay(ctx context.Context, day time.Time) (map[string]int, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID string) (bool, time.Duration, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type WebhookMetrics interface {
	WebhookAccepted()
	Handler() http.Handler
}

type Options struct {
	Addr           string
	RequestTimeout time.Duration
	AdminUsername  string
	AdminPassword  string
	// MaxValuationBody caps the POST /valuations body. Zero means 100 MiB.
	MaxValuationBody int64
}

// Deps are the collaborators behind the HTTP surface. Limiter and Metrics may be nil.
type Deps struct {
	DB         Pinger
	Verifier   auth.TokenVerifier
	Users      UserService
	Ledger     LedgerService
	Valuations ValuationService
	Reports    ReportService
	Packages   PackageService
	Promos     PromoService
	Payments   PaymentService
	Stats      StatsSource
	Limiter    RateLimiter
	Metrics    WebhookMetrics
}

type Server struct {
	opts   Options
	log    *slog.Logger
	deps   Deps
	router *chi.Mux
	now    func() time.Time
}

const (
	maxJSONBody    = 1 << 20
	maxWebhookBody = 64 << 10
)

func NewServer(opts Options, log *slog.Logger, deps Deps) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	if opts.MaxValuationBody <= 0 {
		opts.MaxValuationBody = 100 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	s := &Server{
		opts:   opts,
		log:    log,
		deps:   deps,
		router: r,
		now:    func() time.Time { return time.Now().UTC() },
	}

	r.Get("/health", s.handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	r.Post("/stripe/webhook", s.handleStripeWebhook)
	r.Get("/share/{token}", s.handleGetShared)

	r.Group(func(authed chi.Router) {
		authed.Use(auth.Middleware(deps.Verifier, log))
		authed.Use(middleware.Timeout(opts.RequestTimeout))
		authed.Get("/me", s.handleMe)
		authed.Route("/credits", func(r chi.Router) {
			r.Get("/", s.handleGetCredits)
			r.Get("/packages", s.handleListActivePackages)
			r.Get("/transactions", s.handleListTransactions)
			r.Post("/purchase", s.handlePurchase)
			r.Post("/promo", s.handleApplyPromo)
		})
		authed.Post("/valuations", s.handleCreateValuation)
		authed.Route("/reports", func(r chi.Router) {
			r.Get("/", s.handleListReports)
			r.Get("/{id}", s.handleGetReport)
			r.Delete("/{id}", s.handleDeleteReport)
			r.Post("/{id}/share", s.handleShareReport)
			r.Post("/{id}/detailed", s.handleDetailedReport)
		})
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(s.basicAuthMiddleware())
		admin.Route("/packages", func(r chi.Router) {
			r.Get("/", s.handleListPackages)
			r.Post("/", s.handleCreatePackage)
			r.Put("/{id}", s.handleUpdatePackage)
			r.Delete("/{id}", s.handleDeletePackage)
		})
		admin.Route("/promo-codes", func(r chi.Router) {
			r.Get("/", s.handleListPromos)
			r.Post("/", s.handleCreatePromo)
			r.Put("/{id}", s.handleUpdatePromo)
			r.Delete("/{id}", s.handleDeletePromo)
		})
		admin.Post("/users/{id}/credits", s.handleGrantCredits)
		admin.Get("/stats", s.handleStats)
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      s.opts.RequestTimeout + 15*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("api shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.opts.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.DB.PingContext(ctx); err != nil {
			s.log.Error("health check: database ping", "err", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || s.opts.AdminPassword == "" ||
				subtle.ConstantTimeCompare([]byte(user), []byte(s.opts.AdminUsername)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(s.opts.AdminPassword)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="valuation-admin"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
