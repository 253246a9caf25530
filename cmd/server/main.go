package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/quotecalc/internal/catalog"
	"github.com/Simplici0/quotecalc/internal/config"
	"github.com/Simplici0/quotecalc/internal/db"
	"github.com/Simplici0/quotecalc/internal/describe"
	"github.com/Simplici0/quotecalc/internal/logging"
	"github.com/Simplici0/quotecalc/internal/migrations"
	"github.com/Simplici0/quotecalc/internal/report"
	"github.com/Simplici0/quotecalc/internal/report/pdf"
	"github.com/Simplici0/quotecalc/internal/seed"
	"github.com/Simplici0/quotecalc/internal/storage"
	"github.com/Simplici0/quotecalc/internal/storage/filekv"
	"github.com/Simplici0/quotecalc/internal/storage/sqlitekv"
)

type server struct {
	logger     *zap.Logger
	sessions   *sessionService
	workspaces *workspaces
	catalog    *catalog.Catalog
	generator  describe.Generator
	company    report.Company
	pdf        *pdf.Generator
	now        func() time.Time
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	store, database, err := openStore(cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()

		stats, err := seed.Run(database, cat.Entries())
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		logger.Info("catalog seeded", zap.Int("inserts", stats.Inserts), zap.Int("updates", stats.Updates))

		if cat, err = catalog.LoadDB(ctx, database); err != nil {
			return err
		}
	}

	var gen describe.Generator = describe.NewMock()
	if cfg.DescribeMode == config.DescribeOllama {
		gen = describe.NewOllama(cfg.OllamaURL, cfg.OllamaModel, nil)
	}

	company := report.Company(cfg.Company)
	srv := &server{
		logger:     logger,
		sessions:   newSessionService(cfg.SessionSecret),
		workspaces: newWorkspaces(store, gen, logger, sessionLimits{idleTTL: cfg.SessionIdleTTL, max: cfg.MaxSessions}),
		catalog:    cat,
		generator:  gen,
		company:    company,
		pdf:        pdf.New(company),
		now:        time.Now,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go srv.workspaces.janitor(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", httpServer.Addr),
			zap.String("storage", cfg.StorageDriver),
			zap.String("describe", cfg.DescribeMode),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.CatalogPath)
}

// openStore returns the history store for the configured driver. The database is only
// returned for the sqlite driver and is already migrated.
func openStore(cfg config.Config) (storage.Store, *sql.DB, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return storage.NewMemory(), nil, nil
	case config.StorageFile:
		store, err := filekv.Open(cfg.StatePath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.Up(database); err != nil {
			database.Close()
			return nil, nil, err
		}
		return sqlitekv.New(database), database, nil
	}
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/draft", s.handleDraft)
		r.Post("/draft/items", s.handleAddItem)
		r.Post("/draft/services", s.handleAddService)
		r.Put("/draft/items/{index}", s.handleSetItem)
		r.Delete("/draft/items/{index}", s.handleRemoveItem)
		r.Post("/draft/labor/{category}/toggle", s.handleToggleLabor)
		r.Put("/draft/labor/{category}", s.handleSetLaborHours)
		r.Get("/draft/breakdown", s.handleBreakdown)
		r.Post("/draft/copy", s.handleCopyTotal)
		r.Post("/draft/save", s.handleSave)

		r.Get("/quotes", s.handleQuotesList)
		r.Get("/quotes/{id}", s.handleQuote)
		r.Delete("/quotes/{id}", s.handleDeleteQuote)
		r.Get("/quotes/{id}/text", s.handleQuoteText)
		r.Get("/quotes/{id}/pdf", s.handleQuotePDF)

		r.Get("/catalog", s.handleCatalog)
		r.Get("/catalog/categories", s.handleCategories)

		r.Post("/descriptions", s.handleDescribe)
		r.Get("/descriptions", s.handleDescriptions)
		r.Get("/descriptions/models", s.handleModels)
		r.Put("/descriptions/model", s.handleSetModel)

		r.Post("/recommendations", s.handleRecommend)
		r.Post("/pricing-analysis", s.handleAnalyzePricing)
	})
	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
