// Package adminhttp is the ambient operator surface every role exposes
// alongside its fast path: a gorilla/mux router serving /healthz and
// the Prometheus /metrics scrape endpoint. It never touches the
// byte-prefix request handling in internal/lb, internal/api or
// internal/worker — this is a second listener entirely.
package adminhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// Serve starts the admin listener and blocks until ctx is canceled. A
// blank addr disables the surface entirely — callers run this in its
// own goroutine. Errors other than the expected shutdown close are
// logged, never returned, since the admin surface is never load
// bearing for request handling.
func Serve(ctx context.Context, addr string, role string, log zerolog.Logger) {
	if addr == "" {
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("role", role).Str("addr", addr).Msg("admin http listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Str("role", role).Msg("admin http serve")
	}
}
