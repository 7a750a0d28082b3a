package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kimhsiao/stash/cmd/desktop/handlers"
	"github.com/kimhsiao/stash/internal/analysis"
	"github.com/kimhsiao/stash/internal/config"
	"github.com/kimhsiao/stash/internal/export"
	"github.com/kimhsiao/stash/internal/export/scheduler"
	"github.com/kimhsiao/stash/internal/logging"
	"github.com/kimhsiao/stash/internal/models"
	"github.com/kimhsiao/stash/internal/parser"
	"github.com/kimhsiao/stash/internal/persist"
	"github.com/kimhsiao/stash/internal/services"
	"github.com/kimhsiao/stash/internal/store"
)

// App owns every long-lived component of the desktop server.
type App struct {
	cfg       *config.Config
	adapter   *persist.Adapter
	writer    *persist.Writer
	store     *store.Store
	gateway   *analysis.Gateway
	analysis  *services.AnalysisService
	exports   *export.Service
	scheduler *scheduler.Scheduler
	hub       *WSHub
	router    chi.Router

	unsubscribe func()
}

// NewApp loads the document and wires the components together.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	kv, err := persist.Open(cfg.Store, cfg.DataDir, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store, err)
	}
	adapter := persist.NewAdapter(kv)
	app, err := newApp(ctx, cfg, adapter)
	if err != nil {
		adapter.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, cfg *config.Config, adapter *persist.Adapter) (*App, error) {
	interval, err := scheduler.ParseInterval(cfg.BackupInterval)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, adapter: adapter}
	a.writer = persist.NewWriter(adapter)
	a.store = store.New(adapter.Load(ctx), store.WithSink(a.writer))
	a.hub = NewWSHub()
	a.unsubscribe = a.store.Subscribe(a.hub.BroadcastChange)

	a.gateway = analysis.NewGateway(analysis.AIConfig{
		Provider:      analysis.ParseProvider(cfg.AIProvider),
		APIEndpoint:   cfg.AIEndpoint,
		APIKey:        cfg.AIAPIKey,
		ModelName:     cfg.AIModel,
		MaxTokens:     cfg.AIMaxTokens,
		Timeout:       cfg.AITimeout,
		RatePerMinute: cfg.AIRatePerMin,
		CacheTTL:      cfg.AICacheTTL,
	})
	a.analysis = services.NewAnalysisService(a.store, a.gateway, nil)
	a.analysis.SetEventCallbacks(a.hub.BroadcastAnalysisStarted, a.hub.BroadcastAnalysisCompleted, a.hub.BroadcastAnalysisFailed)

	a.exports = export.NewService()
	a.scheduler = scheduler.NewScheduler(a.exports, a.store, scheduler.SchedulerConfig{
		Interval:       interval,
		RetentionCount: cfg.BackupRetention,
		ExportDir:      cfg.BackupDir,
		Password:       cfg.BackupPassword,
	})
	a.scheduler.SetEventCallbacks(
		func(res *export.ExportResult) {
			a.hub.BroadcastExportCompleted(res.FilePath, res.Manifest)
		},
		func(err error) { a.hub.BroadcastExportFailed(err.Error()) },
	)

	var previewer handlers.LinkPreviewer
	if cfg.LinkPreview {
		previewer = parser.NewLinkPreviewer(parser.DefaultTimeout)
	}
	a.router = a.routes(previewer)
	return a, nil
}

// routes builds the REST and WebSocket surface.
func (a *App) routes(previewer handlers.LinkPreviewer) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	health := handlers.NewHealthHandler(a.cfg.Store, string(a.gateway.Provider()), a.gateway.Configured)
	blocks := handlers.NewBlockHandler(a.store, a.analysis, previewer)
	channels := handlers.NewChannelHandler(a.store)
	ai := handlers.NewAIHandler(a.analysis, a.gateway)
	capture := handlers.NewCaptureHandler(a.analysis)
	exports := handlers.NewExportHandler(a.store, a.exports, a.scheduler, a.hub)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.Health)

		r.Get("/document", exports.GetDocument)
		r.Get("/document/export", exports.Export)
		r.Post("/document/import", exports.Import)
		r.Post("/document/archive", exports.Archive)
		r.Get("/backups", exports.ListBackups)
		r.Post("/backups", exports.RunBackup)

		r.Get("/blocks", blocks.ListBlocks)
		r.Post("/blocks", blocks.CreateBlock)
		r.Patch("/blocks/{id}", blocks.UpdateBlock)
		r.Delete("/blocks/{id}", blocks.DeleteBlock)
		r.Post("/blocks/{id}/analyze", blocks.AnalyzeBlock)

		r.Get("/channels", channels.ListChannels)
		r.Post("/channels", channels.CreateChannel)
		r.Patch("/channels/{id}", channels.UpdateChannel)
		r.Delete("/channels/{id}", channels.DeleteChannel)
		r.Put("/selection", channels.Select)
		r.Patch("/verticals/{name}", channels.RenameVertical)
		r.Delete("/verticals/{name}", channels.DeleteVertical)

		r.Get("/ai/config", ai.GetAIConfig)
		r.Post("/analyze", ai.Analyze)
		r.Post("/connections", ai.FindConnections)

		r.Post("/capture/image", capture.CaptureImage)
		r.Post("/capture/detect", capture.DetectType)
	})
	r.Get("/ws", HandleWebSocket(a.hub))
	return r
}

// Start launches the backup scheduler.
func (a *App) Start(ctx context.Context) error {
	return a.scheduler.Start(ctx)
}

// Close stops background work and flushes the document. Pending analyses
// finish first so their results are persisted.
func (a *App) Close(ctx context.Context) error {
	a.scheduler.Stop()
	a.analysis.Wait()
	a.unsubscribe()
	a.hub.Stop()

	err := a.writer.Flush(ctx)
	a.writer.Close()
	if err == nil {
		err = a.writer.LastError()
	}
	if cerr := a.adapter.Close(); err == nil {
		err = cerr
	}
	return err
}

// Snapshot exposes the live document, mostly for tests.
func (a *App) Snapshot() models.Document {
	return a.store.Snapshot()
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logging.Debug("Request completed", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"bytes":       ww.BytesWritten(),
			"request_id":  chimiddleware.GetReqID(r.Context()),
		})
	})
}
