package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/digkill/ValuationAPI/internal/alert"
	"github.com/digkill/ValuationAPI/internal/api"
	"github.com/digkill/ValuationAPI/internal/auth"
	"github.com/digkill/ValuationAPI/internal/config"
	"github.com/digkill/ValuationAPI/internal/database"
	"github.com/digkill/ValuationAPI/internal/gemini"
	"github.com/digkill/ValuationAPI/internal/metrics"
	"github.com/digkill/ValuationAPI/internal/ratelimit"
	"github.com/digkill/ValuationAPI/internal/repository"
	"github.com/digkill/ValuationAPI/internal/service"
	"github.com/digkill/ValuationAPI/internal/storage"
	"github.com/digkill/ValuationAPI/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	valuationLogRepo := repository.NewValuationLogRepository(db)

	redisClient, err := ratelimit.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logr.Warn("redis not configured, in-flight lock and rate limit disabled")
	}

	verifier, err := auth.NewVerifier(auth.Options{
		JWKSURL:  cfg.AuthJWKSURL,
		Secret:   cfg.AuthJWTSecret,
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
	})
	if err != nil {
		log.Fatalf("auth verifier: %v", err)
	}

	notifier, err := alert.New(cfg.AlertBotToken, cfg.AlertChatID, logr)
	if err != nil {
		log.Fatalf("alert notifier: %v", err)
	}
	stats := metrics.New()
	geminiClient := gemini.NewClient(cfg, logr)

	deps := service.ValuationDeps{
		Reports:  reportRepo,
		Provider: geminiClient,
		Alerts:   notifier,
		Audit:    valuationLogRepo,
		Metrics:  stats,
	}
	if locker := ratelimit.NewLocker(redisClient); locker != nil {
		deps.Locker = locker
	}

	var previews service.PreviewStorage
	if cfg.S3Enabled {
		store, err := storage.NewPreviews(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage previews: %v", err)
		}
		previews = store
		deps.Previews = store
	}

	ledgerService := service.NewLedgerService(userRepo, logr)
	deps.Ledger = ledgerService
	userService := service.NewUserService(userRepo, ledgerService, logr, cfg.SignupBonusCredits)
	packageService := service.NewPackageService(packageRepo, cfg.PaymentCurrency)
	promoService := service.NewPromoService(promoRepo, userRepo, logr, cfg.PromoBonusCredits)
	reportService := service.NewReportService(reportRepo, geminiClient, previews, logr, cfg.PublicBaseURL)
	valuationService := service.NewValuationService(service.PolicyFromConfig(cfg), logr, deps)
	paymentService := service.NewPaymentService(service.PaymentSettings{
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.StripeSuccessURL,
		CancelURL:     cfg.StripeCancelURL,
		Currency:      cfg.PaymentCurrency,
		CostPerReport: cfg.ValuationCostCredits,
	}, service.NewStripeGateway(cfg.StripeSecretKey), userRepo, paymentRepo, packageService, ledgerService, notifier, logr)

	if err := packageService.EnsureDefaultPackages(ctx); err != nil {
		log.Fatalf("ensure default packages: %v", err)
	}

	apiDeps := api.Deps{
		DB:         db,
		Verifier:   verifier,
		Users:      userService,
		Ledger:     ledgerService,
		Valuations: valuationService,
		Reports:    reportService,
		Packages:   packageService,
		Promos:     promoService,
		Payments:   paymentService,
		Stats:      valuationLogRepo,
		Metrics:    stats,
	}
	if limiter := ratelimit.NewValuationLimiter(redisClient, cfg.RatePerMinute, cfg.RateBurst); limiter != nil {
		apiDeps.Limiter = limiter
	}

	server := api.NewServer(api.Options{
		Addr:             cfg.ListenAddr,
		RequestTimeout:   cfg.RequestTimeout,
		AdminUsername:    cfg.AdminUsername,
		AdminPassword:    cfg.AdminPassword,
		MaxValuationBody: int64(cfg.ValuationMaxImages)*int64(cfg.ValuationMaxImageBytes)*4/3 + 1<<20,
	}, logr, apiDeps)

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("api server stopped", "err", err)
	}
}
