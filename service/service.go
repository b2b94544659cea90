package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-snapcheck/metrics"
)

type Service struct {
	Metrics *MetricsServer
	log     log.Logger
}

func New(logger log.Logger) *Service {
	if logger == nil {
		logger = log.Root()
	}
	return &Service{
		Metrics: NewMetricsServer(logger),
		log:     logger.New("component", "service"),
	}
}

// Start serves metrics on host:port in the background
func (s *Service) Start(ctx context.Context, host string, port int) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	s.log.Info("starting metrics server", "addr", addr)

	go func() {
		if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error starting metrics server", "err", err)
			metrics.RecordErrorDetails("metrics_server", err)
		}
	}()
}

func (s *Service) Shutdown() {
	s.log.Info("service shutting down")
	_ = s.Metrics.Shutdown()
	s.log.Info("metrics stopped")
}
