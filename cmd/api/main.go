package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"collabdocs/internal/config"
	"collabdocs/internal/database"
	"collabdocs/internal/database/migration"
	"collabdocs/internal/extract"
	handlers "collabdocs/internal/http/handler"
	"collabdocs/internal/http/middleware"
	"collabdocs/internal/ingest"
	"collabdocs/internal/otel"
	"collabdocs/internal/realtime"
	"collabdocs/internal/repository/postgres"
	"collabdocs/internal/service"
	"collabdocs/internal/storage"
)

func main() {
	ctx := context.Background()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	// Tracing is optional; a failed exporter degrades to a noop provider.
	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Storage backend is selected once here: remote when the full MinIO
	// credential set is configured, local disk otherwise.
	objStore, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	reg := prometheus.DefaultRegisterer

	ingestMetrics, err := ingest.NewMetrics(reg)
	if err != nil {
		log.Fatalf("failed to register ingest metrics: %v", err)
	}
	realtimeMetrics, err := realtime.NewMetrics(reg)
	if err != nil {
		log.Fatalf("failed to register realtime metrics: %v", err)
	}

	// Ingestion pipeline: validate, store, best-effort extract
	extractor := extract.New(time.Duration(cfg.Extract.TimeoutSec) * time.Second)
	ingester := ingest.NewService(objStore, extractor, cfg.Upload, ingestMetrics)

	// Realtime hub and presence fan-out
	hub := realtime.NewHub(realtimeMetrics)
	presence := realtime.NewPresence(hub)

	docRepo := postgres.NewDocumentPostgres(db)
	docSvc := service.NewDocumentService(ingester, objStore, docRepo, hub)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Upload.MaxBytes),
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(promMiddleware.Handler())
	app.Use(otelfiber.Middleware())

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, docSvc)
	handlers.RegisterRealtime(app, hub, presence)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
