package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/optimism/op-service/httputil"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/ibs-acceptor/metrics"
)

const (
	StatusHost = "0.0.0.0"
	StatusPort = 8090
)

type Config struct {
	StatusEnabled bool
	StatusAddr    string
	StatusPort    int
	Metrics       opmetrics.CLIConfig
}

// Service runs the optional side servers of a harness process.
type Service struct {
	Status  *StatusServer
	Metrics *httputil.HTTPServer

	cfg Config
	log log.Logger
}

func New(cfg Config, lgr log.Logger) *Service {
	return &Service{
		Status: &StatusServer{},
		cfg:    cfg,
		log:    lgr,
	}
}

// SetSource points the status server's /scorecard at the given run.
func (s *Service) SetSource(src ScorecardSource) {
	s.Status.SetSource(src)
}

func (s *Service) Start(ctx context.Context) error {
	s.log.Info("service starting")

	if s.cfg.Metrics.Enabled {
		s.log.Info("starting metrics server", "addr", s.cfg.Metrics.ListenAddr, "port", s.cfg.Metrics.ListenPort)
		srv, err := opmetrics.StartServer(metrics.Registry, s.cfg.Metrics.ListenAddr, s.cfg.Metrics.ListenPort)
		if err != nil {
			metrics.RecordErrorDetails("metrics_server", err)
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		s.log.Info("started metrics server", "endpoint", srv.Addr())
		s.Metrics = srv
	}

	if s.cfg.StatusEnabled {
		addr := net.JoinHostPort(s.cfg.StatusAddr, strconv.Itoa(s.cfg.StatusPort))
		go func() {
			s.log.Info("starting status server", "addr", addr)
			if err := s.Status.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting status server", "err", err)
				metrics.RecordErrorDetails("status_server", err)
			}
		}()
	}

	s.log.Info("service started")
	return nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.log.Info("service shutting down")

	var result error
	if err := s.Status.Shutdown(); err != nil {
		result = errors.Join(result, fmt.Errorf("failed to stop status server: %w", err))
	}
	s.log.Info("status stopped")

	if s.Metrics != nil {
		if err := s.Metrics.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
		s.log.Info("metrics stopped")
	}

	s.log.Info("service stopped")
	return result
}
