package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"

	"github.com/Simplici0/cee-quotes/internal/config"
	"github.com/Simplici0/cee-quotes/internal/db"
	"github.com/Simplici0/cee-quotes/internal/logger"
	"github.com/Simplici0/cee-quotes/internal/migrations"
	"github.com/Simplici0/cee-quotes/internal/quote"
	"github.com/Simplici0/cee-quotes/internal/seed"
	"github.com/Simplici0/cee-quotes/internal/store"
)

type server struct {
	quotes *quote.Service
	tokens *tokenVerifier
}

func main() {
	// Load warns through slog, so install the JSON handler before it runs.
	logger.Init("")
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		fatal("failed to open database", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		version, err := migrations.Up(ctx, database, cfg.MigrationsDir)
		if err != nil {
			fatal("failed to run database migrations", err)
		}
		logger.L.Info("database migrated", "version", version)

		stats, err := seed.Run(ctx, database, seed.Config{Tenant: cfg.SeedTenant})
		if err != nil {
			fatal("failed to seed database", err)
		}
		logger.L.Info("database seeded", "tenant", cfg.SeedTenant, "inserts", stats.Inserts, "updates", stats.Updates)
	}

	st := store.New(database, cache.New(cfg.SettingsCacheTTL, 2*cfg.SettingsCacheTTL))
	srv := &server{
		quotes: quote.NewService(st),
		tokens: newTokenVerifier(cfg.TenantTokenSecret),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.L.Info("listening", "addr", httpServer.Addr, "env", cfg.Env)
	if err := httpServer.ListenAndServe(); err != nil {
		fatal("server stopped", err)
	}
}

func fatal(msg string, err error) {
	logger.L.Error(msg, "error", err)
	os.Exit(1)
}

func (s *server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}).Handler)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.tenantMiddleware)

		r.Post("/modules/{code}/simulate", s.handleSimulate)
		r.Get("/modules/{code}/settings", s.handleGetSettings)
		r.Put("/modules/{code}/settings", s.handlePutSettings)
		r.Patch("/modules/{code}/settings", s.handlePatchSettings)
		r.Post("/quote-previews/edit", s.handlePreviewEdit)

		r.Get("/valuations", s.handleListValuations)
		r.Post("/valuations", s.handleUpsertValuation)

		r.Get("/products", s.handleListProducts)
		r.Post("/products", s.handleCreateProduct)
		r.Post("/products/{id}/archive", s.handleArchiveProduct)

		r.Get("/folders/{id}/sizing", s.handleGetSizing)
		r.Put("/folders/{id}/sizing", s.handlePutSizing)
		r.Get("/folders/{id}/quote-drafts", s.handleListDrafts)

		r.Post("/quote-drafts", s.handleCreateDraft)
		r.Get("/quote-drafts/{id}", s.handleGetDraft)
		r.Put("/quote-drafts/{id}", s.handleUpsertDraft)
		r.Patch("/quote-drafts/{id}", s.handleUpdateDraft)
		r.Delete("/quote-drafts/{id}", s.handleDeleteDraft)
		r.Post("/quote-drafts/{id}/simulate", s.handleSimulateDraft)
		r.Post("/quote-drafts/{id}/edits", s.handleEditDraftLine)
		r.Get("/quote-drafts/{id}/text", s.handleDraftText)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		l := logger.L.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), l)))

		l.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
