package server

import (
	"github.com/robfig/cron/v3"
)

// SetupDiagnostics schedules a periodic pool/queue health line,
// repurposing the teacher's SetupCronTasks (server/cron.go), which
// used robfig/cron/v3 to rotate signing keys on a schedule. There is
// nothing to rotate here (spec.md's server holds no long-lived
// secrets), so the only recurring job is an operational heartbeat.
func (s *Server) SetupDiagnostics() *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("* * * * *", func() {
		s.Logger.Info().
			Int("pool_size", s.Pool.Size()).
			Msg("diagnostics heartbeat")
	})
	if err != nil {
		s.Logger.Error().Err(err).Msg("failed to schedule diagnostics heartbeat")
	}
	c.Start()
	return c
}
