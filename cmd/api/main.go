// cmd/api/main.go
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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"libris/internal/auth"
	"libris/internal/catalog"
	"libris/internal/circulation"
	"libris/internal/config"
	"libris/internal/membership"
	"libris/internal/reporting"
	"libris/internal/storage/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := setupTracing(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	store := postgres.NewStore(db)
	engine := circulation.NewEngine(store,
		circulation.WithBorrowPeriod(cfg.BorrowPeriodDays),
		circulation.WithLogger(logger),
		circulation.WithMetrics(circulation.NewMetrics(registry)),
	)

	catalogService := catalog.NewService(db, logger)
	membershipService := membership.NewService(db, logger)
	reportingService := reporting.NewService(db, logger)

	catalogHandler := catalog.NewHandler(catalogService, cfg.ItemsPerPage)
	membershipHandler := membership.NewHandler(membershipService, tokens, cfg.ItemsPerPage)
	circulationHandler := circulation.NewHandler(engine, cfg.ItemsPerPage)
	reportingHandler := reporting.NewHandler(reportingService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", membershipHandler.HandleRegister)
		r.Post("/auth/login", membershipHandler.HandleLogin)

		r.Get("/books", catalogHandler.HandleListBooks)
		r.Get("/books/{id}", catalogHandler.HandleGetBook)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokens))

			r.Post("/auth/logout", membershipHandler.HandleLogout)

			r.Post("/borrows", circulationHandler.HandleBorrow)
			r.Put("/borrows/{id}/return", circulationHandler.HandleReturn)
			r.Get("/borrows", circulationHandler.HandleListLoans)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)

				r.Post("/books", catalogHandler.HandleAddBook)
				r.Put("/books/{id}", catalogHandler.HandleUpdateBook)
				r.Delete("/books/{id}", catalogHandler.HandleDeleteBook)

				r.Get("/users", membershipHandler.HandleListUsers)
				r.Get("/users/{id}", membershipHandler.HandleGetUser)
				r.Put("/users/{id}", membershipHandler.HandleUpdateUser)

				r.Get("/statistics/borrows", reportingHandler.HandleBorrowStatistics)
				r.Get("/statistics/users", reportingHandler.HandleUserStatistics)
				r.Get("/statistics/borrows/export", reportingHandler.HandleExportLoans)
				r.Get("/statistics/users/export", reportingHandler.HandleExportUserActivity)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setupTracing wires the global tracer provider to an OTLP/HTTP collector.
func setupTracing(ctx context.Context, endpoint string) (func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("libris"),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown", "error", err)
		}
	}, nil
}
