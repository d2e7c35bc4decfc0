package obs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthFunc reports whether a dependency (usually postgres) is usable.
type HealthFunc func(context.Context) error

const healthTimeout = 2 * time.Second

// BootstrapMetricsServer serves /metrics and /healthz on addr in the background.
// health may be nil.
func BootstrapMetricsServer(addr string, health HealthFunc, l *zap.Logger) *http.Server {
	ms := createMetricsServer(addr, health)
	go func() {
		l.Info("metrics listening", zap.String("addr", addr))
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server", zap.Error(err))
		}
	}()
	return ms
}

type healthBody struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	CheckMS int64  `json:"check_ms"`
}

func createMetricsServer(addr string, health HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		body, code := healthBody{Status: "ok"}, http.StatusOK
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			start := time.Now()
			err := health(ctx)
			cancel()
			body.CheckMS = time.Since(start).Milliseconds()
			if err != nil {
				body.Status, body.Error, code = "unhealthy", err.Error(), http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       3 * time.Second,
		WriteTimeout:      healthTimeout + time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
