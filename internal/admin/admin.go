// Package admin serves the operational HTTP endpoints. It is optional:
// the server only starts it when an admin address is configured.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/skirmish-gg/skirmish/internal/middleware"
)

// Stats is the live-counter source the status endpoint reports from.
type Stats interface {
	ConnCount(ctx context.Context) (int, error)
	SessionCount() int
	SimpleQueueLen() int
	RankedQueueLen() int
	PendingContests() int
	CompletedContests() int
}

// Handler serves /healthz and /statusz.
type Handler struct {
	stats  Stats
	logger *slog.Logger
}

// NewHandler creates the admin handler over a stats source.
func NewHandler(stats Stats, logger *slog.Logger) *Handler {
	return &Handler{
		stats:  stats,
		logger: logger.With(slog.String("component", "admin")),
	}
}

// Router builds the admin route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.Logging(h.logger))
	r.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/statusz", h.handleStatusz).Methods(http.MethodGet)
	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the /statusz payload.
type statusResponse struct {
	Connections       int `json:"connections"`
	Sessions          int `json:"sessions"`
	SimpleQueue       int `json:"simple_queue"`
	RankedQueue       int `json:"ranked_queue"`
	PendingContests   int `json:"pending_contests"`
	CompletedContests int `json:"completed_contests"`
}

func (h *Handler) handleStatusz(w http.ResponseWriter, r *http.Request) {
	conns, err := h.stats.ConnCount(r.Context())
	if err != nil {
		h.logger.Warn("failed to count connections", slog.String("error", err.Error()))
		http.Error(w, "reactor unavailable", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, http.StatusOK, statusResponse{
		Connections:       conns,
		Sessions:          h.stats.SessionCount(),
		SimpleQueue:       h.stats.SimpleQueueLen(),
		RankedQueue:       h.stats.RankedQueueLen(),
		PendingContests:   h.stats.PendingContests(),
		CompletedContests: h.stats.CompletedContests(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// Serve runs the admin listener until the context is cancelled.
func (h *Handler) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	h.logger.Info("admin endpoint listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
