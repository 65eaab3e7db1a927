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

	"github.com/geocoder89/careerhub/internal/auth"
	"github.com/geocoder89/careerhub/internal/config"
	"github.com/geocoder89/careerhub/internal/db"
	"github.com/geocoder89/careerhub/internal/genai"
	httpx "github.com/geocoder89/careerhub/internal/http"
	"github.com/geocoder89/careerhub/internal/observability"
	"github.com/geocoder89/careerhub/internal/redisclient"
	"github.com/geocoder89/careerhub/internal/repo/memory"
	"github.com/geocoder89/careerhub/internal/repo/mongodb"
	"github.com/geocoder89/careerhub/internal/repo/postgres"
	"github.com/geocoder89/careerhub/internal/repo/redisstore"
	"github.com/geocoder89/careerhub/internal/security"
	"github.com/geocoder89/careerhub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, "careerhub-api", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	users, closeStore, err := openUserStore(ctx, cfg, prom, log)
	if err != nil {
		log.Error("user store unavailable", "db_url_scheme", schemeOf(cfg.DBURL), "err", err)
		os.Exit(1)
	}
	defer closeStore()

	opts := []service.Option{service.WithLogger(log)}

	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer rdb.Close()

		opts = append(opts, service.WithResetTokenStore(redisstore.NewResetTokens(rdb.Raw(), prom)))
		log.Info("reset tokens stored in redis", "addr", cfg.RedisAddr)
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	authService := service.NewAuthService(users, security.NewHasher(cfg.BcryptCost), jwtManager, cfg.ResetTokenTTL, opts...)

	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		log.Error("seed admin failed", "err", err)
		os.Exit(1)
	}

	model, err := genai.New(ctx, genai.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
	if err != nil {
		log.Error("generative model init failed", "err", err)
		os.Exit(1)
	}
	if _, disabled := model.(genai.Disabled); disabled {
		log.Warn("GEMINI_API_KEY not set, /api/generate will answer 500")
	}
	generator := genai.NewProtected(model, genai.ProtectedConfig{Timeout: cfg.GenerateTimeout}, prom)

	// set up routers with the log
	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Auth:      authService,
		Generator: generator,
		Prom:      prom,
		Metrics:   reg,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// generate calls may take up to GenerateTimeout
		WriteTimeout: cfg.GenerateTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// openUserStore connects the backend named by DB_URL and prepares its indexes or schema.
func openUserStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (service.UserStore, func(), error) {
	backend, err := db.BackendFor(cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}

	switch backend {
	case db.BackendMongo:
		client, database, err := db.NewMongo(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}

		repo, err := mongodb.OpenUsersRepo(ctx, database, prom)
		if err != nil {
			closeFn()
			return nil, nil, err
		}

		log.Info("user store ready", "backend", backend, "database", database.Name())
		return repo, closeFn, nil

	case db.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}

		repo := postgres.NewUsersRepo(pool, prom)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}

		log.Info("user store ready", "backend", backend)
		return repo, pool.Close, nil

	default:
		log.Warn("using in-memory user store, data is lost on restart")
		return memory.NewUsersRepo(), func() {}, nil
	}
}

func schemeOf(dbURL string) string {
	backend, err := db.BackendFor(dbURL)
	if err != nil {
		return "invalid"
	}
	return string(backend)
}
