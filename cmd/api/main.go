package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"routepay/internal/api"
	"routepay/internal/config"
	"routepay/internal/logging"
	"routepay/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.LogLevel)
	metrics.RegisterDefault()

	srv, err := api.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init server")
	}

	mux := http.NewServeMux()

	// Journeys
	mux.HandleFunc("/v1/journeys", srv.JourneysHandler)
	mux.HandleFunc("/v1/journeys/", srv.JourneyByIDHandler) // includes /deliveries

	// Reference data
	mux.HandleFunc("/v1/routes", srv.RoutesHandler)
	mux.HandleFunc("/v1/drivers", srv.DriversHandler)

	// Batch ingestion
	mux.HandleFunc("/v1/batches/daily", srv.DailyBatchHandler)
	mux.HandleFunc("/v1/batches/weekly", srv.WeeklyBatchHandler)

	// Derived views
	mux.HandleFunc("/v1/weekly-totals", srv.WeeklyTotalsHandler)
	mux.HandleFunc("/v1/payments/summary", srv.PaymentSummaryHandler)

	// Admin
	mux.HandleFunc("/v1/admin/aggregate", srv.AggregateHandler)
	mux.HandleFunc("/debug/info", srv.DebugJSON)

	// Event stream
	mux.HandleFunc("/v1/events/ws", srv.EventsWSHandler)

	// Docs
	mux.HandleFunc("/openapi.yaml", srv.OpenAPIHandler)
	mux.HandleFunc("/docs", srv.DocsHandler)
	mux.HandleFunc("/swagger", srv.SwaggerHandler)

	// Health
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)

	// Metrics
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":" + cfg.Port
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		status := strconv.Itoa(sw.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		log.Debug().
			Str("remote", r.RemoteAddr).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", dur).
			Msg("request")
	})
}
