// Package api exposes a minimal, read-only HTTP status endpoint for a
// running Batcher behind an optional token-authenticated mux; there is
// no cluster to query here, only the in-process batcher.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/chtzvt/forestbatch/internal/batcher"
)

// Server wraps the HTTP status endpoint and its config/state.
type Server struct {
	Batcher *batcher.Batcher
	Addr    string
	Logger  *log.Logger
	Config  *Config
	server  *http.Server
}

// Config configures the status server: listen address and bearer
// tokens accepted by the auth middleware.
type Config struct {
	ListenAddr string   `mapstructure:"listen_addr"`
	AuthTokens []string `mapstructure:"auth_tokens"`
}

// NewServer builds a Server reporting on b.
func NewServer(b *batcher.Batcher, config Config, logger *log.Logger) *Server {
	return &Server{
		Batcher: b,
		Addr:    config.ListenAddr,
		Config:  &config,
		Logger:  logger,
	}
}

// Start runs the HTTP server until ctx is done, then shuts it down
// gracefully. Exposes /healthz (unauthenticated) and /status (token
// authenticated when auth tokens are configured).
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	protected := http.NewServeMux()
	RegisterStatusHandlers(protected, s.Batcher)

	if len(s.Config.AuthTokens) > 0 {
		mux.Handle("/status", TokenAuthMiddleware(s.Config.AuthTokens, protected))
	} else {
		mux.Handle("/status", protected)
	}

	s.server = &http.Server{
		Addr:    s.Addr,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.Logger.Printf("status server listening on %s", s.Addr)
	return s.server.ListenAndServe()
}
