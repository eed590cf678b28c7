package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/pkg/config"
	"github.com/wonny/fxlab/pkg/logger"
)

// Timeouts bound each phase of a request. Write covers the synchronous
// /api/ops endpoints, where a backfill or a batch backtest runs inline.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// DefaultTimeouts 기본 타임아웃 (ops 요청은 수 분 소요 가능)
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Read:  15 * time.Second,
		Write: 5 * time.Minute,
		Idle:  60 * time.Second,
	}
}

// Server serves the fx JSON API
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	env        string
	logger     zerolog.Logger
}

// New creates the API server on cfg.Port with default timeouts
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return NewWithTimeouts(cfg, log, router, DefaultTimeouts())
}

// NewWithTimeouts creates the API server with explicit timeouts
func NewWithTimeouts(cfg *config.Config, log *logger.Logger, router http.Handler, t Timeouts) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadTimeout:       t.Read,
			ReadHeaderTimeout: t.Read,
			WriteTimeout:      t.Write,
			IdleTimeout:       t.Idle,
		},
		env:    cfg.Env,
		logger: log.Component("api.server"),
	}
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured address; it returns nil after Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("env", s.env).
		Dur("write_timeout", s.httpServer.WriteTimeout).
		Msg("fx API listening")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve API: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down fx API")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown API: %w", err)
	}
	return nil
}
