// Package server implements component E, the connection server: it
// owns the listening socket(s), accepts connections, and feeds each
// one into the pool package as a producer task. Grounded on the
// teacher's server/server.go for the logging/admin-router wiring
// shape and on original_source/demos-crypto/src/CryptoServer.cpp for
// the accept-loop/dispatch semantics (unix/ipv4/ipv6 listener setup,
// per-connection timeout, graceful shutdown).
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/demos-voting/cryptoserver/audit"
	"github.com/demos-voting/cryptoserver/pool"
	"github.com/demos-voting/cryptoserver/replay"
	"github.com/pressly/lg"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

// Version is stamped into build_info and the admin banner; overridden
// by -ldflags at release build time the way the teacher's server.go
// does for its own Version var.
var Version = "dev"

var (
	ErrAlreadyServing = errors.New("server: already serving")
	ErrNotServing     = errors.New("server: not serving")
)

// Server owns the listener and the worker pool backing it. Unlike the
// teacher's DB-backed Server, it holds no persistent state between
// requests (spec.md §3's "the server holds no per-client state").
type Server struct {
	Config   *Config
	Pool     *pool.Pool
	Metrics  *Metrics
	Logger   zerolog.Logger
	Audit    *audit.Publisher
	Registry *Registry
	Replay   *replay.Guard

	mu       sync.Mutex
	listener net.Listener
	adminSrv *http.Server
}

// New builds a Server from cfg, constructing its worker pool
// immediately (spec.md §4.4: "the pool's lifetime spans the server's
// lifetime, not any single connection"). The audit publisher is
// always constructed; it is a no-op when cfg.AuditBrokers is empty
// (see audit.Publisher.Publish).
func New(cfg *Config, logger zerolog.Logger) (*Server, error) {
	p, err := pool.New(cfg.Threads)
	if err != nil {
		return nil, err
	}
	return &Server{
		Config:   cfg,
		Pool:     p,
		Metrics:  NewMetrics(),
		Logger:   logger,
		Audit:    audit.NewPublisher(cfg.AuditBrokers, cfg.AuditTopic, logger),
		Registry: NewRegistry(registryTTL, registryCleanupInterval),
		Replay:   replay.New(),
	}, nil
}

// registryTTL/registryCleanupInterval bound how long an in-flight
// connection entry can linger in the admin registry if its
// taskBase.finish path is never reached (e.g. a panic recovered
// elsewhere); both are well above the per-frame read/write timeout so
// a live connection is never evicted while still in flight.
const (
	registryTTL             = 5 * time.Minute
	registryCleanupInterval = 10 * time.Minute
)

// SetupLogger mirrors the teacher's server.SetupLogger: a logrus
// logger doubling as the stdlib log redirect target via pressly/lg,
// wrapped here by a zerolog front end for the structured per-request
// fields the connection server emits. Grounded on the teacher's
// server.go SetupLogger (logrus + lg.RedirectStdlogOutput) combined
// with the teacher's metrics/issuer packages' zerolog usage elsewhere
// in the same repo family.
func SetupLogger(ctx context.Context) (context.Context, zerolog.Logger, *logrus.Logger) {
	legacy := logrus.New()
	lg.RedirectStdlogOutput(legacy)
	lg.DefaultLogger = legacy
	ctx = lg.WithLoggerContext(ctx, legacy)

	zl := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("component", "cryptoserver").Logger()
	return ctx, zl, legacy
}

func (s *Server) listen() (net.Listener, error) {
	switch s.Config.Family {
	case Unix:
		// spec.md §4.5: unlink any prior path before binding, so a
		// stale socket file left behind by a non-graceful exit doesn't
		// make every subsequent start fail with "address already in use".
		if err := os.Remove(s.Config.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return net.Listen("unix", s.Config.Path)
	case IPv4:
		addr := fmt.Sprintf("%s:%d", s.Config.IP, s.Config.Port)
		return net.Listen("tcp4", addr)
	case IPv6:
		ip := s.Config.IP
		if ip == "" {
			ip = "::"
		}
		addr := fmt.Sprintf("[%s]:%d", ip, s.Config.Port)
		return net.Listen("tcp6", addr)
	default:
		return nil, ErrInvalidFamily
	}
}

// ListenAndServe implements original_source's accept loop: bind,
// then accept connections forever, handing each to the pool as a
// producer task. It blocks until the listener is closed by Shutdown.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return ErrAlreadyServing
	}
	ln, err := s.listen()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = ln
	s.mu.Unlock()

	timeout := s.Config.Timeout
	if timeout <= 0 {
		timeout = acceptTimeout
	}

	s.Logger.Info().
		Str("family", s.Config.Family.String()).
		Str("addr", ln.Addr().String()).
		Int("threads", s.Config.Threads).
		Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Metrics.ConnectionErrs.Inc()
			continue
		}
		s.Metrics.Connections.Inc()
		s.Pool.AddTask(&connJob{
			conn:     conn,
			timeout:  timeout,
			metrics:  s.Metrics,
			log:      s.Logger,
			audit:    s.Audit,
			registry: s.Registry,
			replay:   s.Replay,
		})
	}
}

// Shutdown stops accepting new connections and drains the pool,
// mirroring original_source's server_stop flag plus ~ThreadPool, with
// the producer-drain improvement documented in pool.Pool.Close.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return ErrNotServing
	}
	if err := ln.Close(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.Pool.Close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acceptTimeout is the default per-frame read/write deadline applied
// when a Config does not specify one explicitly.
const acceptTimeout = 120 * time.Second
