package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lipkin10/Racha-IA-demo/internal/gateway"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/cache"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/handlers"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/ledger"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/metrics"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/providers"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/ratelimit"
	"github.com/Lipkin10/Racha-IA-demo/internal/gateway/routing"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/config"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/database"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/i18n"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/kvstore"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/logger"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/redis"
	"github.com/Lipkin10/Racha-IA-demo/internal/shared/supabase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log, err := logger.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}

	log.WithFields(logrus.Fields{
		"port":  cfg.Port,
		"env":   cfg.Env,
		"store": cfg.StoreBackend,
	}).Info("Starting Racha-IA gateway")

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Connected to PostgreSQL")

	// Initialize key-value store
	var store kvstore.Store
	switch cfg.StoreBackend {
	case "memory":
		store = kvstore.NewMemoryStore(time.Minute)
		log.Warn("Using in-process store; state is not shared between instances")
	default:
		redisClient, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		store = redisClient
		log.Info("Connected to Redis")
	}
	keys := kvstore.NewKeyspace(cfg.KeyPrefix)

	// Localization and classification
	localizer, err := i18n.NewLocalizer(cfg.Locale)
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	terms, err := config.LoadLexicon(cfg.LexiconFile)
	if err != nil {
		log.Fatalf("Failed to load lexicon: %v", err)
	}
	lexicon := routing.LexiconFor(cfg.Locale).With(terms.Greetings, terms.Analytical)

	// Initialize provider manager
	providerMgr := providers.NewManager(cfg)
	if err := providerMgr.Validate(); err != nil {
		log.Fatalf("Invalid provider configuration: %v", err)
	}
	log.Info("Initialized LLM providers")

	policy, err := ratelimit.ParseFailurePolicy(cfg.RateLimitFailurePolicy)
	if err != nil {
		log.Fatalf("Invalid rate limit policy: %v", err)
	}
	limiter, err := ratelimit.New(store, keys, policy, log)
	if err != nil {
		log.Fatalf("Failed to create rate limiter: %v", err)
	}

	costLedger, err := ledger.New(store, keys, localizer,
		ledger.WithRetention(cfg.CostRetention),
		ledger.WithLocation(cfg.Location()),
	)
	if err != nil {
		log.Fatalf("Failed to create cost ledger: %v", err)
	}

	gwCfg := gateway.Config{
		Limiter:              limiter,
		Classifier:           routing.NewClassifier(lexicon),
		Router:               routing.NewRouter(routing.NewLockedSource(time.Now().UnixNano())),
		Completer:            providerMgr,
		Ledger:               costLedger,
		Conversations:        cache.New(store, keys, cfg.ConversationTTL, cfg.PinnedMarker),
		Localizer:            localizer,
		Metrics:              metrics.New(prometheus.DefaultRegisterer),
		Logger:               log,
		SystemPrompt:         cfg.SystemPrompt,
		RateLimit:            cfg.DefaultRateLimit,
		RateWindow:           cfg.RateLimitWindow,
		CompletionTimeout:    cfg.CompletionTimeout,
		CompressThreshold:    cfg.CompressThreshold,
		CompressKeepMessages: cfg.CompressKeepMessages,
	}

	switch cfg.AuditSink {
	case "postgres":
		gwCfg.Audit = db
	case "supabase":
		sink, err := supabase.NewAuditSink(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			log.Fatalf("Failed to create Supabase audit sink: %v", err)
		}
		gwCfg.Audit = sink
	}

	gw, err := gateway.New(gwCfg)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	// Setup router
	r := handlers.Routes(
		handlers.NewMiddleware(db, log, cfg.CORSOrigins),
		handlers.NewChatHandler(gw, log),
		handlers.NewHealthHandler(store),
		map[string]http.Handler{"/metrics": promhttp.Handler()},
	)

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}

	log.Info("Server stopped")
}
