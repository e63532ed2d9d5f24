package server

import (
	"time"

	"github.com/patrickmn/go-cache"
	uuid "github.com/satori/go.uuid"
)

// Registry is an in-flight-request tracker for the admin surface:
// each decoded request gets a correlation ID, removed by Forget when
// the command finishes; the TTL also expires any entry whose
// completion path is never reached. Grounded on the teacher's use
// of patrickmn/go-cache for short-lived signing-request bookkeeping,
// repurposed here from signing requests to live-connection tracking.
type Registry struct {
	c *cache.Cache
}

// NewRegistry builds a Registry whose entries expire after ttl and are
// swept every cleanupInterval.
func NewRegistry(ttl, cleanupInterval time.Duration) *Registry {
	return &Registry{c: cache.New(ttl, cleanupInterval)}
}

// Entry is the bookkeeping recorded for one in-flight connection.
type Entry struct {
	Command   string
	RemoteIP  string
	StartedAt time.Time
}

// Track records a new in-flight connection and returns its
// correlation ID.
func (r *Registry) Track(command, remoteIP string) string {
	id := uuid.NewV4().String()
	r.c.SetDefault(id, Entry{Command: command, RemoteIP: remoteIP, StartedAt: nowUTC()})
	return id
}

// Forget removes a completed connection's entry before its TTL would
// otherwise expire it.
func (r *Registry) Forget(id string) {
	r.c.Delete(id)
}

// Snapshot returns every currently tracked entry, keyed by
// correlation ID, for the admin introspection endpoint.
func (r *Registry) Snapshot() map[string]Entry {
	items := r.c.Items()
	out := make(map[string]Entry, len(items))
	for k, v := range items {
		if e, ok := v.Object.(Entry); ok {
			out[k] = e
		}
	}
	return out
}

func nowUTC() time.Time { return time.Now().UTC() }
