package service

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const shutdownTimeout = 5 * time.Second

// MetricsServer exposes the prometheus registry while a run is in progress.
// Start and Shutdown may be called from different goroutines in any order.
type MetricsServer struct {
	log log.Logger

	mu     sync.Mutex
	server *http.Server
	closed bool
}

func NewMetricsServer(logger log.Logger) *MetricsServer {
	if logger == nil {
		logger = log.Root()
	}
	return &MetricsServer{log: logger}
}

func (m *MetricsServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	hdlr.HandleFunc("/healthz", m.handleHealthz)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

// Start blocks serving on addr until Shutdown is called. After Shutdown it
// returns http.ErrServerClosed without listening.
func (m *MetricsServer) Start(ctx context.Context, addr string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return http.ErrServerClosed
	}
	srv := &http.Server{
		Handler:     m.Handler(),
		Addr:        addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	m.server = srv
	m.mu.Unlock()

	return srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return m.server.Shutdown(ctx)
}

func (m *MetricsServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	m.log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}
