// Package server assembles the HTTP surface: the Connect settlement service
// behind its interceptors, plus health and metrics endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soham-0-0-7/split-slice/internal/auth"
	"github.com/soham-0-0-7/split-slice/internal/middleware"
	"github.com/soham-0-0-7/split-slice/pkg/api/apiconnect"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router. Metrics, RateLimiter and Health are optional.
type Options struct {
	Service     apiconnect.SettlementServiceHandler
	JWT         *auth.JWTManager
	RateLimiter *middleware.RateLimiter
	Metrics     *prometheus.Registry
	Health      Pinger
}

// NewRouter creates the chi router with all routes mounted.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", healthHandler(opts.Health))
	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}

	// Logging is outermost so rejected calls are logged too.
	interceptors := []connect.Interceptor{
		middleware.LoggingInterceptor(),
		middleware.RequireAuth(opts.JWT, apiconnect.SettlementServicePreviewProcedure),
	}
	if opts.RateLimiter != nil {
		interceptors = append(interceptors, opts.RateLimiter.Interceptor())
	}

	path, handler := apiconnect.NewSettlementServiceHandler(opts.Service, connect.WithInterceptors(interceptors...))
	r.Handle(path+"*", handler)

	return r
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
