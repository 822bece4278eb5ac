package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docchat/docs"
	"docchat/internal/answer"
	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/database"
	"docchat/internal/database/migration"
	"docchat/internal/extract"
	handlers "docchat/internal/http/handler"
	"docchat/internal/http/middleware"
	"docchat/internal/llm"
	"docchat/internal/logger"
	"docchat/internal/otel"
	"docchat/internal/repository"
	"docchat/internal/repository/postgres"
	"docchat/internal/service"
	"docchat/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Document Chat API
// @version 1.0
// @description Upload a PDF, then ask questions about it.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.Location)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server_exit", err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) error {
	shutdownTracing, err := otel.Init(ctx, otel.SettingsFromEnv(), log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// Object storage: MinIO/S3 in production, in-process for local runs.
	var objStore storage.Storage
	var memObjects *storage.MemoryStorage
	switch cfg.Storage.Backend {
	case "memory":
		base := cfg.Storage.PublicBaseURL
		if base == "" {
			base = "http://localhost:" + cfg.Port + "/objects"
		}
		memObjects = storage.NewMemory(base)
		objStore = memObjects
	default:
		objStore, err = storage.NewMinIO(cfg.MinIO, cfg.Storage.PublicBaseURL)
		if err != nil {
			return err
		}
	}
	log.Info("storage_configured", logger.Fields{"backend": cfg.Storage.Backend, "public_read": cfg.MinIO.PublicRead})

	// Document ledger: Postgres when configured, otherwise in memory.
	var ledger repository.DocumentRepository
	if cfg.Database.Enabled() {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			return err
		}
		ledger = postgres.NewDocumentPostgres(db)
	} else {
		log.Warn("ledger_in_memory", nil, logger.Fields{"detail": "DB_HOST not set; document ledger is not persisted"})
		ledger = repository.NewMemoryDocuments()
	}

	gemini, err := llm.NewGemini(ctx, cfg.Gemini)
	if err != nil {
		return err
	}
	defer gemini.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		return err
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	publicRead := cfg.MinIO.PublicRead || cfg.Storage.Backend == "memory"
	docStore := service.NewDocumentStore(objStore, ledger, service.DocumentStoreOptions{
		PublicRead:    publicRead,
		PresignExpiry: cfg.Pipeline.PresignExpiry,
	})
	chatSvc := service.NewChatService(service.ChatDeps{
		Documents: docStore,
		Extractor: extract.New(gemini, extract.Options{
			ScratchDir:   cfg.Pipeline.ScratchDir,
			FetchTimeout: cfg.Timeouts.Fetch,
			MaxBytes:     cfg.Pipeline.MaxDocumentBytes,
			Logger:       log,
		}),
		Answerer:         answer.New(gemini),
		Sessions:         chat.NewManager(),
		Responder:        chat.NewResponder(chat.DefaultRules),
		Metrics:          metrics,
		Logger:           log,
		Timeouts:         cfg.Timeouts,
		MaxDocumentBytes: cfg.Pipeline.MaxDocumentBytes,
	})

	sweeper := service.NewSweeper(objStore, ledger, cfg.Pipeline.OrphanTTL, metrics, log)
	go sweeper.Run(ctx, cfg.Pipeline.OrphanSweepEvery)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             bodyLimit(cfg.Pipeline.MaxDocumentBytes),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	var objects storage.Storage
	if memObjects != nil {
		objects = memObjects
	}
	handlers.RegisterRoutes(app, ledger, chatSvc, log, objects)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_listening", logger.Fields{"port": cfg.Port})
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server_shutdown", nil)
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// bodyLimit leaves room for base64 inflation of the largest accepted document.
func bodyLimit(maxDocument int64) int {
	if maxDocument <= 0 {
		return fiber.DefaultBodyLimit
	}
	return int((maxDocument+2)/3*4) + 64<<10
}
