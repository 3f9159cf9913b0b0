package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	app "github.com/mohammadpnp/site-import/internal/application/importer"
	"github.com/mohammadpnp/site-import/internal/config"
	"github.com/mohammadpnp/site-import/internal/infrastructure/broadcast"
	infrafile "github.com/mohammadpnp/site-import/internal/infrastructure/file"
	"github.com/mohammadpnp/site-import/internal/infrastructure/notify"
	"github.com/mohammadpnp/site-import/internal/infrastructure/repository"
	httpecho "github.com/mohammadpnp/site-import/internal/interfaces/http/echo"
	"gorm.io/gorm"
)

// Components is the import pipeline shared by the HTTP server and the
// background worker.
type Components struct {
	Jobs        *repository.ImportJobRepository
	Files       *infrafile.LocalStore
	Detector    *app.ConflictDetector
	Broadcaster *broadcast.Broadcaster
	Engine      *app.Engine
	Worker      *app.ImportWorker
}

func NewComponents(cfg config.Config, db *gorm.DB, pool *pgxpool.Pool, logger *slog.Logger) (*Components, error) {
	files, err := infrafile.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("create upload store: %w", err)
	}

	jobs := repository.NewImportJobRepository(db)
	sites := repository.NewProjectSiteRepository(pool)
	refs := app.NewReferenceResolver(repository.NewReferenceRepository(db), cfg.ReferenceCacheTTL)
	broadcaster := broadcast.NewBroadcaster(jobs, logger)
	notifications := notify.NewNotificationRepository(db)

	engine := app.NewEngine(jobs, sites, files, refs, broadcaster, notifications, logger, app.EngineConfig{
		ProgressEvery:     cfg.ImportProgressStep,
		HeartbeatInterval: cfg.ImportJobLease / 4,
		MaxRows:           cfg.ImportMaxRows,
	})
	worker := app.NewImportWorker(jobs, engine, broadcaster, notifications, logger, app.ImportWorkerConfig{
		Workers:       cfg.ImportWorkers,
		PollInterval:  cfg.ImportPollInterval,
		LeaseDuration: cfg.ImportJobLease,
	})

	return &Components{
		Jobs:        jobs,
		Files:       files,
		Detector:    app.NewConflictDetector(sites, refs),
		Broadcaster: broadcaster,
		Engine:      engine,
		Worker:      worker,
	}, nil
}

func NewHTTPServer(cfg config.Config, components *Components, logger *slog.Logger) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(requestLogger(logger))
	server.Use(middleware.BodyLimit(cfg.BodyLimit()))

	importHandler := httpecho.NewImportHandler(httpecho.ImportUseCases{
		Start:  app.NewStartImport(components.Jobs, components.Files, components.Detector, components.Worker, cfg.ImportMaxRows),
		Detect: app.NewDetectConflicts(components.Detector, cfg.ImportMaxRows),
		Status: app.NewGetImportStatus(components.Jobs),
		Report: app.NewDownloadErrorReport(components.Jobs),
		List:   app.NewListImports(components.Jobs),
		Delete: app.NewDeleteImport(components.Jobs, components.Files),
	}, logger)
	progressHandler := httpecho.NewProgressHandler(components.Broadcaster, logger)

	httpecho.RegisterRoutes(server, importHandler, progressHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return server
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}
