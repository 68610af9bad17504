package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

// NewWorkerRouter serves the job API, the health check and metrics.
func NewWorkerRouter(jobs *JobHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(Instrument("job-worker-http"))

	r.Handle("/metrics", promhttp.Handler())
	health.RegisterRoutes(r)
	jobs.RegisterRoutes(r)
	return r
}

// GatewayOptions tunes the gateway router.
type GatewayOptions struct {
	AllowedOrigins []string
	// RateLimit is requests per second for /api/worker; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// NewGatewayRouter serves the worker proxy, the health check and metrics.
func NewGatewayRouter(proxy *GatewayHandler, health *HealthHandler, opts GatewayOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization"},
	}).Handler)
	r.Use(Instrument("job-worker-gateway-http"))

	r.Handle("/metrics", promhttp.Handler())
	health.RegisterRoutes(r)

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(limiter))
		proxy.RegisterRoutes(r)
	})
	return r
}
