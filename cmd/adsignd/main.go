// The adsignd command implements the adsign display management server
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	adhttp "github.com/wrale/adsign/internal/adsignd/advertisement/http"
	adpg "github.com/wrale/adsign/internal/adsignd/advertisement/postgres"
	"github.com/wrale/adsign/internal/adsignd/auth"
	"github.com/wrale/adsign/internal/adsignd/config"
	"github.com/wrale/adsign/internal/adsignd/database"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	approvalpg "github.com/wrale/adsign/internal/adsignd/display/approval/postgres"
	displayhttp "github.com/wrale/adsign/internal/adsignd/display/http"
	displaypg "github.com/wrale/adsign/internal/adsignd/display/postgres"
	"github.com/wrale/adsign/internal/adsignd/display/service"
	"github.com/wrale/adsign/internal/adsignd/events"
	"github.com/wrale/adsign/internal/adsignd/httpapi"
	"github.com/wrale/adsign/internal/adsignd/liveness"
	"github.com/wrale/adsign/internal/adsignd/loop"
	loophttp "github.com/wrale/adsign/internal/adsignd/loop/http"
	looppg "github.com/wrale/adsign/internal/adsignd/loop/postgres"
	"github.com/wrale/adsign/internal/adsignd/metrics"
	"github.com/wrale/adsign/internal/adsignd/ratelimit"
	ratelimitredis "github.com/wrale/adsign/internal/adsignd/ratelimit/redis"
	"github.com/wrale/adsign/internal/adsignd/store/memory"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	issueToken := flag.String("issue-admin-token", "", "print a signed token for the given admin id and exit")
	flag.Parse()

	// Initialize structured logging with JSON format for easier parsing
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewJWTService(cfg.Auth)
	if *issueToken != "" {
		token, expiresAt, err := tokens.IssueToken(context.Background(), *issueToken)
		if err != nil {
			logger.Error("failed to issue admin token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		logger.Info("issued admin token", "adminID", *issueToken, "expiresAt", expiresAt)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, tokens, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// repositories groups the persistence backends selected by storage.driver
type repositories struct {
	displays display.Repository
	requests approval.Repository
	loops    loop.Repository
	ads      advertisement.Repository
	ready    func(ctx context.Context) error
	close    func() error
}

func openRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		logger.Warn("using in-memory storage, state is lost on restart")
		store := memory.New()
		return &repositories{
			displays: store.Displays(),
			requests: store.Requests(),
			loops:    store.Loops(),
			ads:      store.Advertisements(),
			ready:    func(context.Context) error { return nil },
			close:    func() error { return nil },
		}, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	db, err := database.Open(openCtx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return &repositories{
		displays: displaypg.NewRepository(db, logger),
		requests: approvalpg.NewRepository(db, logger),
		loops:    looppg.NewRepository(db, logger),
		ads:      adpg.NewRepository(db, logger),
		ready:    pinger(db),
		close:    db.Close,
	}, nil
}

func pinger(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// rateLimiters uses Redis when configured so limits hold across replicas
func rateLimiters(cfg *config.Config, logger *slog.Logger) (*ratelimit.Limiters, func() error, error) {
	if cfg.Redis.Addr == "" {
		return ratelimit.NewLimiters(cfg.RateLimit, nil, logger), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	svc := ratelimit.NewService(ratelimitredis.NewStore(client), logger)
	if err := svc.RegisterConfiguredLimits(cfg.RateLimit); err != nil {
		client.Close()
		return nil, nil, err
	}
	return ratelimit.NewLimiters(cfg.RateLimit, svc, logger), client.Close, nil
}

func run(ctx context.Context, cfg *config.Config, tokens auth.Service, logger *slog.Logger) error {
	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up storage: %w", err)
	}
	defer repos.close()

	limiters, closeLimiter, err := rateLimiters(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up rate limiting: %w", err)
	}
	defer closeLimiter()

	hub := events.NewHub(logger)
	go hub.Run(ctx)

	if cfg.Liveness.RejectedRetention > 0 {
		sweeper := approval.NewSweeper(repos.requests, repos.displays, cfg.Liveness.RejectedRetention, cfg.Liveness.SweepInterval, logger)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	displays := service.New(repos.displays, hub, logger)
	workflow := approval.NewService(repos.displays, repos.requests, hub, logger,
		approval.WithMaxAttempts(cfg.Registration.MaxAttempts))
	tracker := liveness.NewTracker(repos.displays, repos.requests, logger)
	loops := loop.NewService(repos.loops, repos.ads, repos.displays, hub, logger)
	ads := advertisement.NewService(repos.ads, logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(httpapi.RequestIDHeader)
	r.Use(httpapi.Recover(logger))
	r.Use(httpapi.LogMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", httpapi.Health(nil))
	r.Get("/readyz", httpapi.Health(repos.ready))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1alpha1", func(r chi.Router) {
		displayhttp.NewHandler(displays, workflow, tracker, loops, hub, tokens, limiters, logger).Mount(r)
		loophttp.NewHandler(loops, tokens, logger).Mount(r)
		adhttp.NewHandler(ads, tokens, logger).Mount(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusNotFound, map[string]string{
			"code":    "NOT_FOUND",
			"message": "route not found",
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"storage", cfg.Storage.Driver,
		)

		var err error
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
