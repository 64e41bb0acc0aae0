package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/linkmesh/internal/config"
	"github.com/kailas-cloud/linkmesh/internal/content"
	dbRedis "github.com/kailas-cloud/linkmesh/internal/db/redis"
	"github.com/kailas-cloud/linkmesh/internal/detect"
	"github.com/kailas-cloud/linkmesh/internal/domain"
	"github.com/kailas-cloud/linkmesh/internal/embed/local"
	logpkg "github.com/kailas-cloud/linkmesh/internal/logger"
	"github.com/kailas-cloud/linkmesh/internal/metrics"
	embeddingrepo "github.com/kailas-cloud/linkmesh/internal/repository/embedding"
	linkgraphrepo "github.com/kailas-cloud/linkmesh/internal/repository/linkgraph"
	queuerepo "github.com/kailas-cloud/linkmesh/internal/repository/queue"
	settingsrepo "github.com/kailas-cloud/linkmesh/internal/repository/settings"
	simcacherepo "github.com/kailas-cloud/linkmesh/internal/repository/simcache"
	"github.com/kailas-cloud/linkmesh/internal/runner"
	chiTransport "github.com/kailas-cloud/linkmesh/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/linkmesh/internal/transport/openai"
	voyageEmb "github.com/kailas-cloud/linkmesh/internal/transport/voyage"
	clusteruc "github.com/kailas-cloud/linkmesh/internal/usecase/cluster"
	embeddinguc "github.com/kailas-cloud/linkmesh/internal/usecase/embedding"
	lifecycleuc "github.com/kailas-cloud/linkmesh/internal/usecase/lifecycle"
	queueuc "github.com/kailas-cloud/linkmesh/internal/usecase/queue"
	recommenduc "github.com/kailas-cloud/linkmesh/internal/usecase/recommend"
	similarityuc "github.com/kailas-cloud/linkmesh/internal/usecase/similarity"
	"github.com/kailas-cloud/linkmesh/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting linkmesh API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("cms_base_url", cfg.CMS.BaseURL),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterPipelineMetrics()

	// Host CMS collaborators
	contents := content.NewClient(&content.Config{
		BaseURL: cfg.CMS.BaseURL,
		Token:   cfg.CMS.APIToken,
		Timeout: time.Duration(cfg.CMS.TimeoutSec) * time.Second,
	})
	detector, err := detect.New(cfg.CMS.SiteURL, contents)
	if err != nil {
		logger.Fatal("Invalid site URL", zap.Error(err))
	}

	// Embedding providers. Adding one is a single Register call.
	registry := domain.NewProviderRegistry()
	registry.Register("voyage", func(s domain.Settings) domain.Provider {
		return voyageEmb.NewEmbedder(&voyageEmb.Config{
			APIKey: s.VoyageAPIKey,
			Model:  s.VoyageModel,
			Logger: logger,
		})
	})
	registry.Register("openai", func(s domain.Settings) domain.Provider {
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     s.OpenAIAPIKey,
			Model:      s.OpenAIModel,
			Dimensions: s.OpenAIDimensions,
			Logger:     logger,
		})
	})
	registry.Register("local", func(domain.Settings) domain.Provider {
		return local.NewProvider()
	})

	// Repositories
	settingsRepo := settingsrepo.New(store)
	embRepo := embeddingrepo.New(store)
	graphRepo := linkgraphrepo.New(store)
	cacheRepo := simcacherepo.New(store)
	queueRepo := queuerepo.New(store)

	// Use case services
	embSvc := embeddinguc.New(contents, embRepo, registry, settingsRepo, logger)
	engine := similarityuc.NewEngine(embRepo, graphRepo, contents, cacheRepo, settingsRepo, logger)
	recSvc := recommenduc.New(cacheRepo, engine, contents, graphRepo, embRepo, settingsRepo, logger)
	clusterSvc := clusteruc.New(embRepo, contents, logger)
	processor := queueuc.New(
		queueRepo, embSvc, settingsRepo, logger,
		cfg.Queue.RetryCap, time.Duration(cfg.Queue.StaleClaimSec)*time.Second,
	)
	lifecycleSvc := lifecycleuc.New(
		contents, detector, graphRepo, embSvc, cacheRepo, queueRepo, settingsRepo, logger,
	)

	// Background drain: kicked by handlers, safety-netted by a slow tick.
	drain := runner.New(
		processor, logger,
		time.Duration(cfg.Queue.DrainDelaySec)*time.Second,
		time.Duration(cfg.Queue.FallbackIntervalSec)*time.Second,
	)
	runnerCtx, stopRunner := context.WithCancel(ctx)
	go drain.Start(runnerCtx)

	server := chiTransport.NewServer(
		recSvc, clusterSvc, lifecycleSvc, processor, embSvc, settingsRepo, store, logger,
	).WithKick(drain.Kick)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.AdminKeys, cfg.Auth.EditorKeys))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Routes())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	stopRunner()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
