package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var heartbeatTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "hive_heartbeat_timestamp_seconds",
	Help: "Unix time of the last successful heartbeat tick.",
})

func init() {
	prometheus.MustRegister(heartbeatTimestamp)
}

// metricsServer serves the Prometheus handler on a second, independent
// loopback listener, mirroring the minimal mux.Handle("/metrics", ...)
// wiring the gateway server uses for its own HTTP listener.
type metricsServer struct {
	logger *slog.Logger
	server *http.Server
}

func newMetricsServer(addr string, logger *slog.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &metricsServer{
		logger: logger,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the listener in the background. A bind failure is logged,
// never fatal to boot.
func (m *metricsServer) Start() {
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}

func (m *metricsServer) Stop(ctx context.Context) {
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics server shutdown", "error", err)
	}
}
