package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicereport-platform/internal/audit"
	"voicereport-platform/internal/auth"
	"voicereport-platform/internal/callback"
	"voicereport-platform/internal/config"
	"voicereport-platform/internal/conversation"
	"voicereport-platform/internal/httpapi"
	"voicereport-platform/internal/notify"
	"voicereport-platform/internal/pipeline"
	"voicereport-platform/internal/ratelimit"
	"voicereport-platform/internal/report"
	"voicereport-platform/internal/stats"
	"voicereport-platform/internal/storage"
	"voicereport-platform/internal/summarize"
	"voicereport-platform/pkg/logger"
	"voicereport-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens, err := auth.NewManager(cfg.Webhook)
	if err != nil {
		log.Error("token manager init failed", "err", err)
		os.Exit(1)
	}

	// Persistence: Postgres when configured, in-memory otherwise. Validate()
	// already guarantees a database in production.
	var (
		repo      conversation.Repository
		statsRepo stats.Repository
		auditRepo audit.Repository
	)
	if cfg.DB.Host != "" {
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := conversation.NewPostgresRepo(db)
		repo, statsRepo = pg, pg
		auditRepo = audit.NewPostgresRepo(db)
	} else {
		log.Warn("DB_HOST not set, using in-memory repository")
		mem := conversation.NewMemoryRepo()
		repo, statsRepo = mem, mem
		auditRepo = audit.NewMemoryRepo()
	}

	// Rate limiting: shared fixed window on Redis when available, in-process
	// fallback otherwise.
	var limiter ratelimit.Limiter
	if cfg.Redis.Host != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.Webhook.RateLimitMax, cfg.Webhook.RateLimitWindow)
	} else {
		log.Warn("REDIS_HOST not set, using in-process rate limiter")
		limiter = ratelimit.NewMemoryLimiter(cfg.Webhook.RateLimitMax, cfg.Webhook.RateLimitWindow)
	}

	var storer pipeline.Storer
	store, err := storage.NewMinioStore(cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		log.Warn("STORAGE_ENDPOINT not set, artifact uploads disabled")
	case err != nil:
		log.Error("storage init failed", "err", err)
		os.Exit(1)
	default:
		storer = store
	}

	mailer, err := notify.NewMailer(cfg.SMTP)
	if err != nil {
		log.Error("mailer init failed", "err", err)
		os.Exit(1)
	}
	if !mailer.Enabled() {
		log.Warn("SMTP_HOST not set, email delivery disabled")
	}

	audits := audit.NewService(auditRepo)

	llm := summarize.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Timeout)
	proc := pipeline.NewProcessor(pipeline.Options{
		Repo:       repo,
		Summarizer: summarize.NewService(llm, cfg.LLM.Model),
		Renderer:   report.NewPDFRenderer(),
		Storer:     storer,
		Notifier:   mailer,
		Callbacks:  callback.NewClient(cfg.Callback.URL, cfg.Callback.Timeout),
		Audits:     audits,
		Log:        log,
	})

	dispatcher := pipeline.NewDispatcher(proc, cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, log)
	dispatcher.Start(rootCtx)

	h := httpapi.Handlers{
		Repo:       repo,
		Dispatcher: dispatcher,
		Tokens:     tokens,
		Audits:     audits,
		Stats:      stats.NewService(statsRepo),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, cfg.Webhook.Secret, tokens, limiter)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "workers", cfg.Pipeline.Workers)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Stop accepting new work, then drain the queue so in-flight
	// conversations reach a terminal status.
	dispatcher.Stop()
	log.Info("shutdown complete")
}
