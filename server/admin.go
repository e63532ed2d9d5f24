package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/brave-intl/bat-go/middleware"
	"github.com/go-chi/chi"
	chiware "github.com/go-chi/chi/middleware"
)

// ErrAdminDisabled is returned by ServeAdmin when Config.AdminAddr is
// empty (spec.md's Non-goals exclude an HTTP surface from the core
// protocol, but the ambient stack still carries one for ops, gated
// off by default).
var ErrAdminDisabled = errors.New("server: admin surface disabled (no -admin address configured)")

// ServeAdmin mounts the /metrics, /healthz and pprof routes behind the
// same chi middleware stack the teacher's setupRouter used for its
// token API: request IDs, a heartbeat, a request timeout and bearer
// auth via bat-go/middleware. It blocks until the admin listener is
// closed by Shutdown.
func (s *Server) ServeAdmin() error {
	if s.Config.AdminAddr == "" {
		return ErrAdminDisabled
	}

	r := chi.NewRouter()
	r.Use(chiware.RequestID)
	r.Use(chiware.Heartbeat("/"))
	r.Use(chiware.Timeout(10 * time.Second))
	if secret := adminBearerSecret(); secret != "" {
		r.Use(middleware.BearerToken)
	}
	r.Mount("/", s.Metrics.AdminMux(Version))
	r.Get("/debug/tasks", s.handleConnections)

	s.mu.Lock()
	s.adminSrv = &http.Server{Addr: s.Config.AdminAddr, Handler: r}
	srv := s.adminSrv
	s.mu.Unlock()

	s.Logger.Info().Str("addr", s.Config.AdminAddr).Msg("admin surface listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ShutdownAdmin gracefully stops the admin HTTP surface, if running.
func (s *Server) ShutdownAdmin(ctx context.Context) error {
	s.mu.Lock()
	srv := s.adminSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// handleConnections reports every in-flight connection tracked by
// Server.Registry, for operators diagnosing a stuck or overloaded
// pool without needing to correlate prometheus counters by hand.
func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Registry.Snapshot())
}

// adminBearerSecret exists so admin auth is opt-in: bat-go's
// BearerToken middleware reads TOKEN_LIST from the environment itself,
// so this just reports whether one was configured rather than parsing
// it a second time.
func adminBearerSecret() string {
	return os.Getenv("TOKEN_LIST")
}
