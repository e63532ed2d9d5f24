// Package replay provides a bounded-memory duplicate-submission guard
// for the admin/audit surface. It is grounded on the teacher's
// btd.DoubleSpendList (spendlist.go), which used a
// tylertreat/BoomFilters StableBloomFilter to flag reused redemption
// tokens; here the same structure flags reused VerifyCom submissions
// (the same Com checked more than once), which is the
// closest analogue this stateless protocol has to "double spend" —
// the server itself makes no decision based on it (spec.md's server
// holds no per-client state), it only feeds the audit stream's replay
// counter.
package replay

import (
	"sync"

	boom "github.com/tylertreat/BoomFilters"
)

// Guard is a probabilistic, bounded-memory set of recently seen
// fingerprints. False positives are possible (a fingerprint reported
// as "seen" that wasn't), and so are false negatives: a stable Bloom
// filter decays old entries as new ones are added, so a fingerprint
// recorded long ago can eventually be reported as unseen. Sized
// identically to the teacher's NewDoubleSpendList: 10M 8-bit buckets
// (~10MB), 1e-6 asymptotic false positive rate.
type Guard struct {
	mu     sync.RWMutex
	filter *boom.StableBloomFilter
}

// New builds an empty Guard.
func New() *Guard {
	return &Guard{filter: boom.NewStableBloomFilter(10000000, 8, 0.000001)}
}

// Seen reports whether fingerprint has been recorded before, without
// recording it.
func (g *Guard) Seen(fingerprint []byte) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filter.Test(fingerprint)
}

// Record marks fingerprint as seen for future Seen/CheckAndRecord
// calls.
func (g *Guard) Record(fingerprint []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter.Add(fingerprint)
}

// CheckAndRecord is the atomic test-then-set a caller almost always
// wants: it reports whether fingerprint had already been seen, then
// records it regardless.
func (g *Guard) CheckAndRecord(fingerprint []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	wasSeen := g.filter.Test(fingerprint)
	g.filter.Add(fingerprint)
	return wasSeen
}

// Reset clears every recorded fingerprint.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter.Reset()
}
