// -----------------------------------------------------------------------
// App - Service composition root
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/dispatch"
	"github.com/ternarybob/scriptor/internal/handlers"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/embeddings"
	"github.com/ternarybob/scriptor/internal/services/events"
	"github.com/ternarybob/scriptor/internal/services/images"
	"github.com/ternarybob/scriptor/internal/services/links"
	"github.com/ternarybob/scriptor/internal/services/llm"
	"github.com/ternarybob/scriptor/internal/services/quality"
	"github.com/ternarybob/scriptor/internal/services/render"
	"github.com/ternarybob/scriptor/internal/services/scheduler"
	"github.com/ternarybob/scriptor/internal/services/scorer"
	"github.com/ternarybob/scriptor/internal/services/similarity"
	"github.com/ternarybob/scriptor/internal/services/urlcheck"
	"github.com/ternarybob/scriptor/internal/stages"
	"github.com/ternarybob/scriptor/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService interfaces.SchedulerService

	// Pipeline collaborators
	LLMService       interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService
	ImageService     interfaces.ImageService
	LinkProvider     interfaces.LinkProvider
	URLValidator     interfaces.URLValidator
	Renderer         interfaces.Renderer
	Scorer           interfaces.QualityScorer
	Monitor          interfaces.QualityMonitor
	Similarity       *similarity.Service

	// Job execution
	Engine     *pipeline.Engine
	Dispatcher interfaces.Dispatcher

	// HTTP handlers
	JobHandler     *handlers.JobHandler
	QualityHandler *handlers.QualityHandler
	StatusHandler  *handlers.StatusHandler
	WSHandler      *handlers.WebSocketHandler
	LogWriter      *handlers.WebSocketWriter
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Event bus and WebSocket hub come up first so every later component
	// can publish and stream.
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, app.Logger, &cfg.WebSocket)

	// Tap arbor's context channel and relay matching log lines to
	// WebSocket clients.
	app.LogWriter = handlers.NewWebSocketWriter(app.WSHandler, app.Logger, &cfg.WebSocket)
	app.Logger.SetChannel("context", app.LogWriter.Channel())
	app.LogWriter.Start()

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	// Start claiming jobs only after every handler is wired. Start also
	// requeues jobs orphaned by an unclean shutdown.
	if err := app.Dispatcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to start dispatcher: %w", err)
	}

	logger.Info().
		Int("workers", cfg.Dispatch.Concurrency).
		Bool("quality_gate", app.Scorer != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	// LLM provider router. A failed health check downgrades to a warning:
	// generation jobs fail individually until a usable key is configured,
	// while the API stays up for status and inspection.
	llmService := llm.NewService(a.Config, a.Logger)
	if err := llmService.HealthCheck(context.Background()); err != nil {
		a.Logger.Warn().Err(err).Msg("LLM health check failed - article generation will fail until a provider key is configured")
	} else {
		a.Logger.Debug().Msg("LLM service initialized and health check passed")
	}
	a.LLMService = llmService

	a.EmbeddingService = embeddings.NewService(a.Config, a.Logger)
	a.ImageService = images.NewService(a.Config, a.StorageManager.ArtifactStorage(), a.Logger)
	a.LinkProvider = links.NewService(a.Config, a.Logger)
	a.URLValidator = urlcheck.NewValidator(0, a.Logger)
	a.Renderer = render.NewService(a.Logger)
	a.Logger.Debug().Msg("Pipeline collaborators initialized")

	// Quality monitor always runs; the gate only when the scorer is
	// configured on.
	a.Monitor = quality.NewMonitor(0, a.Logger)
	if s := scorer.NewService(a.Config, a.LLMService, a.Logger); s.Enabled() {
		a.Scorer = s
		a.Logger.Debug().Str("model", a.Config.Scorer.Model).Msg("AEO scorer initialized")
	} else {
		a.Logger.Info().Msg("AEO scorer disabled - quality gate off")
	}

	a.Similarity = similarity.NewService(a.Config, a.EmbeddingService, a.Logger)

	registry, err := stages.BuildRegistry(stages.Deps{
		Config:     a.Config,
		LLM:        a.LLMService,
		Images:     a.ImageService,
		Links:      a.LinkProvider,
		Validator:  a.URLValidator,
		Renderer:   a.Renderer,
		Artifacts:  a.StorageManager.ArtifactStorage(),
		Similarity: a.Similarity,
		Logger:     a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build stage registry: %w", err)
	}

	a.Engine = pipeline.NewEngine(
		registry,
		a.StorageManager.JobStorage(),
		a.StorageManager.ArtifactStorage(),
		a.EventService,
		a.Scorer,
		a.Monitor,
		a.Config,
		a.Logger,
	)
	a.Dispatcher = dispatch.NewDispatcher(a.StorageManager.JobStorage(), a.Engine, a.Logger, &a.Config.Dispatch)
	a.Logger.Debug().Msg("Pipeline engine and dispatcher initialized")

	// Maintenance scheduler: retention purge, similarity sweep, quality
	// snapshot.
	a.SchedulerService = scheduler.NewService(a.Logger)
	if err := scheduler.RegisterMaintenanceJobs(
		a.SchedulerService,
		a.Config,
		a.StorageManager.JobStorage(),
		a.StorageManager.ArtifactStorage(),
		a.Similarity,
		a.Monitor,
		a.Logger,
	); err != nil {
		return fmt.Errorf("failed to register maintenance jobs: %w", err)
	}
	if err := a.SchedulerService.Start(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to start scheduler service")
	} else {
		a.Logger.Debug().Msg("Scheduler service started")
	}

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() error {
	// WSHandler is created in New() before the services so the log writer
	// can stream startup logs.
	a.JobHandler = handlers.NewJobHandler(
		a.StorageManager.JobStorage(),
		a.StorageManager.ArtifactStorage(),
		a.Dispatcher,
		a.EventService,
		a.Logger,
	)
	a.QualityHandler = handlers.NewQualityHandler(a.Monitor, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(
		a.StorageManager.JobStorage(),
		a.Dispatcher,
		a.SchedulerService,
		a.Logger,
	)
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	// Stop claiming new jobs first. Running jobs get a grace window before
	// their contexts are cancelled.
	if a.Dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := a.Dispatcher.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Dispatcher stopped before all jobs finished")
		}
		cancel()
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.LogWriter != nil {
		a.LogWriter.Stop()
	}

	if a.ImageService != nil {
		if err := a.ImageService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close image service")
		}
	}

	if a.EmbeddingService != nil {
		if err := a.EmbeddingService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close embedding service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		} else {
			a.Logger.Info().Msg("LLM service closed")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
