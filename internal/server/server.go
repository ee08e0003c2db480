// ABOUTME: HTTP JSON API over the ledger, routed with chi.
// ABOUTME: Serves dashboard, edits, food records, analysis, settings, /metrics and /healthz.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/logger"
	"github.com/harperreed/deficit/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// maxBodyBytes bounds request bodies; photos arrive as base64 data URLs.
const maxBodyBytes = 20 << 20

// Handler holds the dependencies shared by every route.
type Handler struct {
	ledger *ledger.Ledger
	logger *logger.Logger
}

func NewHandler(l *ledger.Ledger, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	log.Info().Msg("http handler created")
	return &Handler{ledger: l, logger: log}
}

// Routes builds the router.
func (h *Handler) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(metrics.InstrumentHandler)
	router.Use(h.withLogger)

	router.Get("/healthz", h.healthz)
	router.Handle("/metrics", metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(limitBody)

		r.Get("/dashboard", h.dashboard)
		r.Get("/stats/{year}/{month}", h.monthlyStats)

		r.Route("/days/{date}", func(r chi.Router) {
			r.Get("/", h.day)
			r.Put("/active", h.setActive)
			r.Put("/bmr", h.setBMR)
			r.Get("/food", h.listFood)
			r.Post("/food", h.addFood)
			r.Post("/analyze", h.analyze)
			r.Post("/repair", h.repair)
		})

		r.Get("/food/{id}", h.getFood)
		r.Delete("/food/{id}", h.deleteFood)

		r.Get("/settings", h.getSettings)
		r.Put("/settings/profile", h.saveProfile)
		r.Put("/settings/bmr-mode", h.setBMRMode)
		r.Put("/settings/ai", h.updateAI)
	})

	return router
}

// Serve runs the API on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h *Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.logger.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (h *Handler) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := h.logger.With().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Logger()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(log.WithContext(r.Context())))

		log.Debug().
			Int("status", ww.Status()).
			Int("size", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
