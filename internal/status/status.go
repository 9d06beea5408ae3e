// Package status serves a small local HTTP endpoint reporting whether the
// cashier client is connected, authenticated and busy.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iamp15/elpatio-appCajeros/internal/client"
)

// Snapshotter reads the client state.
type Snapshotter interface {
	Snapshot(ctx context.Context) (client.Snapshot, error)
}

// snapshotTimeout bounds how long /status waits for the loop.
const snapshotTimeout = 2 * time.Second

// NewRouter returns the status routes.
func NewRouter(src Snapshotter) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/status", statusHandler(src)).Methods(http.MethodGet)
	return r
}

func statusHandler(src Snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
		defer cancel()

		snap, err := src.Snapshot(ctx)
		if err != nil {
			slog.Warn("status snapshot", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing status response", "error", err)
	}
}

// Server runs the router on a TCP address.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr. Use "127.0.0.1:0" for an ephemeral port.
func Listen(addr string, src Snapshotter) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		srv: &http.Server{
			Handler:           NewRouter(src),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln: ln,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	slog.Info("status endpoint listening", "addr", s.Addr())
	if err := s.srv.Serve(s.ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
