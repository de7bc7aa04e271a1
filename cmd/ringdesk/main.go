package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ringdesk/ringdesk/internal/ai"
	"github.com/ringdesk/ringdesk/internal/config"
	"github.com/ringdesk/ringdesk/internal/conversation"
	"github.com/ringdesk/ringdesk/internal/database"
	"github.com/ringdesk/ringdesk/internal/database/pgclaims"
	"github.com/ringdesk/ringdesk/internal/database/redisclaims"
	"github.com/ringdesk/ringdesk/internal/ivr"
	"github.com/ringdesk/ringdesk/internal/menus"
	"github.com/ringdesk/ringdesk/internal/metrics"
	"github.com/ringdesk/ringdesk/internal/notify"
	"github.com/ringdesk/ringdesk/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting ringdesk",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// Load system configuration from database.
	sysConfig, err := database.NewSystemConfigRepository(appCtx, db)
	if err != nil {
		slog.Error("failed to load system config", "error", err)
		os.Exit(1)
	}

	// Claim ledger. The embedded sqlite ledger is correct for a single
	// instance; a shared Postgres or Redis store arbitrates the claim race
	// across instances.
	claims, cleanup, err := openClaimLedger(appCtx, cfg, db, logger)
	if err != nil {
		slog.Error("failed to open claim ledger", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	m := metrics.New()
	dispatcher := notify.NewDispatcher(4, 256, logger, func() {
		m.DispatcherDropped.Inc()
	})
	defer dispatcher.Stop()

	// Repositories and domain services.
	tenants := database.NewTenantRepository(db)
	lines := database.NewPhoneLineRepository(db)
	menuRepo := database.NewMenuRepository(db)
	conversations := database.NewConversationRepository(db)
	tokens := database.NewPushTokenRepository(db)

	resolver := tenant.NewResolver(tenants, lines, cfg.DefaultTenant, logger)
	menuProvider := menus.NewProvider(menuRepo, logger)
	legacyMenus := menus.NewLegacyStrategy()
	syncer := conversation.NewSyncer(conversations, logger)

	fetcher := conversation.NewFetcher(cfg.DataDir, cfg.RecordingAuthUser, cfg.RecordingAuthPass, logger)

	smsClient := notify.NewSMSClient(cfg.SMSAPIURL, cfg.SMSAPIKey, cfg.SMSRatePerSec, logger)
	if !smsClient.Configured() {
		slog.Warn("no sms provider configured, caller notifications will fail")
	}

	var push notify.PushSender
	if cfg.FCMCredentialsFile != "" {
		fcm, err := notify.NewFCMSender(appCtx, cfg.FCMCredentialsFile)
		if err != nil {
			slog.Error("failed to initialise push sender", "error", err)
			os.Exit(1)
		}
		push = fcm
	} else {
		slog.Info("push notifications disabled, no fcm credentials configured")
	}

	var replies ai.ReplyGenerator
	if cfg.AIGatewayURL != "" {
		replies = ai.NewClient(cfg.AIGatewayURL, cfg.AIAPIKey, logger)
	} else {
		slog.Info("reply generation disabled, voicemail replies will use the fixed acknowledgement")
	}

	var links *notify.LinkSigner
	if cfg.LinkSecret != "" {
		links = notify.NewLinkSigner([]byte(cfg.LinkSecret), cfg.PublicBaseURL, 0)
	}

	engine := notify.NewEngine(
		claims,
		tokens,
		smsClient,
		push,
		replies,
		syncer,
		fetcher,
		links,
		dispatcher,
		m,
		logger,
	)

	handler := ivr.NewServer(ivr.Deps{
		Resolver:      resolver,
		Menus:         menuProvider,
		Legacy:        legacyMenus,
		Engine:        engine,
		Syncer:        syncer,
		Claims:        claims,
		Tokens:        tokens,
		Links:         links,
		BaseURL:       ivr.NewBaseURLResolver(cfg.PublicBaseURL, sysConfig),
		Metrics:       m,
		WebhookSecret: cfg.WebhookSecret,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("ringdesk stopped")
}

// openClaimLedger selects the claim ledger backend from configuration. The
// returned cleanup closes any store with its own connection.
func openClaimLedger(ctx context.Context, cfg *config.Config, db *database.DB, logger *slog.Logger) (database.ClaimLedger, func(), error) {
	switch {
	case cfg.ClaimStoreDSN != "":
		store, err := pgclaims.New(cfg.ClaimStoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case cfg.RedisAddr != "":
		store, err := redisclaims.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		return database.NewClaimLedger(db), nil, nil
	}
}
