package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"supportdesk/internal/ratelimit"
	"supportdesk/internal/util"
	"supportdesk/pkg/ai"
	"supportdesk/pkg/events"
	"supportdesk/pkg/store"
	"supportdesk/services/support/internal/app"
	"supportdesk/services/support/internal/assistant"
	"supportdesk/services/support/internal/config"
	"supportdesk/services/support/internal/security"
	"supportdesk/services/support/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	durations, err := cfg.ParseDurations()
	if err != nil {
		log.Fatalf("failed to parse durations: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
	}

	var dataStore store.Store
	if cfg.DatabaseURL == config.MemoryDatabaseURL {
		logger.Warn("support.lifecycle", "event", "memory_store", "detail", "data is not persisted")
		dataStore = store.NewMemoryStore()
	} else {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		dataStore = gormStore
	}

	var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
	if redisClient != nil {
		revoker = store.NewRedisTokenRevoker(redisClient)
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, durations.SessionTTL, revoker, store.JWTOptions{
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	generator, err := ai.NewGenerator(ai.Config{
		Provider: cfg.AIProvider,
		BaseURL:  cfg.AIBaseURL,
		APIKey:   cfg.AIAPIKey,
		Model:    cfg.AIModel,
		Referer:  cfg.AIReferer,
		Title:    cfg.AITitle,
		Timeout:  durations.ChatTimeout,
	})
	if err != nil {
		log.Fatalf("failed to init ai provider: %v", err)
	}

	knowledge := assistant.NewKnowledge(dataStore, durations.FAQCacheTTL)
	var publisher events.Publisher = events.NopPublisher{}
	if redisClient != nil {
		invalidator, err := events.NewInvalidator(redisClient, events.DefaultFAQChannel)
		if err != nil {
			log.Fatalf("failed to init invalidator: %v", err)
		}
		if err := invalidator.Subscribe(ctx, knowledge.Drop); err != nil {
			log.Fatalf("failed to subscribe to faq invalidations: %v", err)
		}
		knowledge.SetBroadcaster(invalidator.Broadcast)

		hostname, _ := os.Hostname()
		stream, err := events.NewRedisStream(redisClient, events.StreamConfig{
			Stream:   cfg.EventStream,
			Consumer: hostname + "-" + util.NewID(),
		})
		if err != nil {
			log.Fatalf("failed to init event stream: %v", err)
		}
		publisher = stream
		if cfg.EventConsumer {
			stream.Start(ctx, logLifecycleEvent)
		}
	}

	appCore, err := app.New(app.Config{
		Store:               dataStore,
		Sessions:            sessions,
		Events:              publisher,
		Knowledge:           knowledge,
		LegacyStatusUpdates: cfg.LegacyStatusUpdates,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if cfg.SeedDemoData {
		if _, err := appCore.SeedDemoData(ctx); err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
	}
	if cfg.BootstrapAdminEmail != "" {
		if _, err := appCore.EnsureAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			log.Fatalf("failed to bootstrap admin: %v", err)
		}
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	srvCfg := server.Config{
		App:            appCore,
		Assistant:      assistant.NewResponder(knowledge, generator, durations.ChatTimeout),
		TrustedProxies: trusted,
		CORSOrigins:    cfg.CORSAllowedOrigins,
	}
	if redisClient != nil {
		srvCfg.Alerter = security.NewAuditAlerter(redisClient, "support:alerts")
		if srvCfg.LoginLimiter, err = newLimiter(redisClient, "login", cfg.LoginRateLimitPerMinute); err != nil {
			log.Fatalf("failed to init login limiter: %v", err)
		}
		if srvCfg.RegisterLimiter, err = newLimiter(redisClient, "register", cfg.RegisterRateLimitPerMinute); err != nil {
			log.Fatalf("failed to init register limiter: %v", err)
		}
	} else if cfg.LoginRateLimitPerMinute > 0 || cfg.RegisterRateLimitPerMinute > 0 {
		logger.Warn("support.lifecycle", "event", "rate_limit_disabled", "detail", "rate limits need redisAddr")
	}
	httpServer, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: durations.ChatTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("support.lifecycle", "event", "shutdown_failed", "err", err)
		}
	}()

	slog.Info("support server listening", "addr", addr, "ai_provider", cfg.AIProvider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func newLimiter(client *redis.Client, name string, perMinute int) (*ratelimit.FixedWindowLimiter, error) {
	if perMinute <= 0 {
		return nil, nil
	}
	return ratelimit.NewRedisFixedWindowLimiter(client, "support:ratelimit:"+name, perMinute, time.Minute)
}

func logLifecycleEvent(_ context.Context, e events.Event) error {
	slog.Info("support.lifecycle",
		"event", e.Type,
		"entity_id", e.EntityID,
		"reference", e.Reference,
		"actor_id", e.ActorID,
		"status", e.Status,
		"occurred_at", e.OccurredAt,
	)
	return nil
}
