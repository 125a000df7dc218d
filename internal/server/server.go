// Package server exposes the aggregator's HTTP surface: the WebSocket
// stream and a health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/server/ws"
)

// Config holds HTTP listener parameters.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server hosts the /ws upgrade endpoint and /healthz.
type Server struct {
	httpSrv *http.Server
	logger  *slog.Logger
	timeout time.Duration
}

// New builds the server around the given hub.
func New(cfg Config, hub *ws.Hub, logger *slog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/", handleRoot)

	return &Server{
		httpSrv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      withCORS(mux),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // websocket writes manage their own deadlines
		},
		logger:  logger.With(slog.String("component", "server")),
		timeout: cfg.ShutdownTimeout,
	}
}

// Run serves until ctx is cancelled, then drains with a bounded shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpSrv.Addr))
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"message": "Crypto RFQ API is running",
	})
}

// withCORS allows all origins, mirroring the permissive policy the dashboard
// frontend expects.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
