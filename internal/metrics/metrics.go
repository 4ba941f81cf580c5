package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for remote calls and lookups.
var (
	RemoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyquery",
			Name:      "remote_requests_total",
			Help:      "Total number of backend requests",
		},
		[]string{"endpoint", "status"},
	)

	RemoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keyquery",
			Name:      "remote_request_duration_seconds",
			Help:      "Backend request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keyquery",
			Name:      "lookups_total",
			Help:      "Completed lookups by outcome",
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// Register registers the collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RemoteRequestsTotal)
		prometheus.MustRegister(RemoteRequestDuration)
		prometheus.MustRegister(LookupsTotal)
	})
}

// CountRemoteRequest increments the request counter
func CountRemoteRequest(endpoint, status string) {
	RemoteRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// ObserveRemoteDuration records a request duration
func ObserveRemoteDuration(endpoint string, d time.Duration) {
	RemoteRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// CountLookup increments the lookup counter for an outcome
func CountLookup(outcome string) {
	LookupsTotal.WithLabelValues(outcome).Inc()
}

// Server exposes /metrics on a listen address
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server for addr
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in the background; listen errors are passed to onErr
func (s *Server) Start(onErr func(error)) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if onErr != nil {
				onErr(err)
			}
		}
	}()
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
