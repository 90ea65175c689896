package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/lendingdesk/internal/events"
	"github.com/yourorg/lendingdesk/internal/handler"
	"github.com/yourorg/lendingdesk/internal/infrastructure/logger"
	"github.com/yourorg/lendingdesk/internal/infrastructure/redis"
	"github.com/yourorg/lendingdesk/internal/observability/metrics"
	"github.com/yourorg/lendingdesk/internal/observability/tracing"
	"github.com/yourorg/lendingdesk/internal/reliability/retry"
	"github.com/yourorg/lendingdesk/internal/repository"
	"github.com/yourorg/lendingdesk/internal/security"
	"github.com/yourorg/lendingdesk/internal/security/audit"
	"github.com/yourorg/lendingdesk/internal/security/auth"
	"github.com/yourorg/lendingdesk/internal/security/middleware"
	"github.com/yourorg/lendingdesk/internal/security/ratelimit"
	"github.com/yourorg/lendingdesk/internal/service"
	"github.com/yourorg/lendingdesk/internal/worker"
	"github.com/yourorg/lendingdesk/pkg/config"
	"github.com/yourorg/lendingdesk/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting LendingDesk server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, log, "lendingdesk", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect to PostgreSQL, retrying while it comes up
	pool, err := retry.Do(ctx, retry.DefaultOptions(), log, "database connect",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, &cfg.Database, log)
		})
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Connect to Redis. The catalog cache degrades to the database when
	// Redis is absent.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, catalog cache disabled", slog.String("error", err.Error()))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// 6. Initialize repositories
	db := pool.GetDB()
	userRepo := repository.NewPostgresUserRepository(db, log)
	bookRepo := repository.NewPostgresBookRepository(db, log)
	requestRepo := repository.NewPostgresBorrowRequestRepository(db, log)
	historyRepo := repository.NewPostgresBorrowHistoryRepository(db, log)

	// 7. Initialize security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "lendingdesk", cfg.TokenTTL)
	gate := security.NewGate(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 8. Initialize services
	broadcaster := events.NewBroadcaster()
	authService := service.NewAuthService(userRepo, tokenManager, log)
	accountService := service.NewAccountService(userRepo, gate, auditLogger, log)
	catalogService := service.NewCatalogService(bookRepo, redisClient, cfg.CatalogCacheTTL, log)
	borrowService := service.NewBorrowService(requestRepo, bookRepo, gate, broadcaster, auditLogger, log, cfg.StrictApproval)
	historyService := service.NewHistoryService(historyRepo, gate, log)

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/login", handler.NewLoginHandler(authService, log))
	mux.Handle("POST /api/change-password", handler.NewChangePasswordHandler(authService, log))
	mux.Handle("POST /create-user/", handler.NewCreateUserHandler(accountService, log))
	mux.Handle("GET /books/", handler.NewListBooksHandler(catalogService, log))
	mux.Handle("POST /borrow/", handler.NewSubmitBorrowHandler(borrowService, log))
	mux.Handle("GET /borrow-requests/", handler.NewListRequestsHandler(borrowService, log))
	mux.Handle("PATCH /update-request/{id}/{$}", handler.NewUpdateRequestHandler(borrowService, log))
	mux.Handle("GET /user-history/{userId}/{$}", handler.NewUserHistoryHandler(historyService, log))
	mux.Handle("GET /my-history/", handler.NewMyHistoryHandler(historyService, log))
	mux.Handle("GET /ws/requests", handler.NewFeedHandler(broadcaster, gate, log, cfg.CORSAllowedOrigins))
	mux.Handle("/healthz", handler.NewHealthHandler())
	mux.Handle("/readyz", handler.NewReadinessHandler(pool, redisClient, log))
	mux.Handle("/metrics", promhttp.Handler())

	// Chain middleware: request ID -> metrics -> CORS -> JWT -> rate limit ->
	// audit. CORS answers preflights before auth runs; JWT installs the
	// principal before the per-user limiter and the audit log consult it.
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			withCORS(cfg.CORSAllowedOrigins,
				middleware.JWTMiddleware(tokenManager, log)(
					middleware.RateLimitMiddleware(rateLimiter, log)(
						middleware.AuditMiddleware(auditLogger)(
							middleware.ValidateJSONContentType(log)(mux),
						),
					),
				),
			),
		),
		log,
	)

	// 10. Start the loans gauge worker in the background
	gaugeWorker := worker.NewLoansGaugeWorker(historyRepo, log, cfg.LoansGaugeInterval)
	go gaugeWorker.Start(ctx)

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, "lendingdesk"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop the gauge worker
	rateLimiter.Stop()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

// withCORS sets the CORS headers for configured origins and answers OPTIONS
// preflights. Preflights carry no Authorization header, so this sits outside
// the JWT check.
func withCORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(allowed, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(allowed) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", allowed[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
