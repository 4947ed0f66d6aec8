package avoidhelm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServer struct {
	server *http.Server
	router *mux.Router
	logger *slog.Logger
}

func NewHTTPServer(addr string, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	router := mux.NewRouter()
	srv := &http.Server{
		Addr:         addr,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}
	return &HTTPServer{
		server: srv,
		router: router,
		logger: logger,
	}
}

// Handler exposes the router, for tests.
func (hs *HTTPServer) Handler() http.Handler { return hs.router }

// Run serves until ctx is done, then shuts down gracefully.
func (hs *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		hs.logger.Info("HTTP server starting", "addr", hs.server.Addr)
		if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := hs.server.Shutdown(shutdownCtx); err != nil {
		hs.logger.Warn("HTTP server shutdown error", "error", err)
		return err
	}
	hs.logger.Info("HTTP server stopped")
	return nil
}

func (hs *HTTPServer) RegisterRoutes(helm *Helm, hub *VisualHub) {
	hs.router.HandleFunc("/ws/visuals", hub.HandleWebSocket)

	hs.router.HandleFunc("/behaviors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, helm.Snapshot())
	}).Methods("GET")
	hs.router.HandleFunc("/behaviors/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		st, ok := helm.Status(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "behavior not found: " + id})
			return
		}
		writeJSON(w, http.StatusOK, st)
	}).Methods("GET")
	hs.router.HandleFunc("/decision", func(w http.ResponseWriter, r *http.Request) {
		d := helm.LastDecision()
		if d == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}).Methods("GET")
	hs.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"iteration": helm.Iteration(),
			"viewers":   hub.Clients(),
		})
	}).Methods("GET")
	hs.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
