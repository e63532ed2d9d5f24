package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryTrackForget(t *testing.T) {
	r := NewRegistry(time.Minute, time.Minute)
	id := r.Track("KeyGen", "127.0.0.1:5555")

	snap := r.Snapshot()
	entry, ok := snap[id]
	assert.True(t, ok)
	assert.Equal(t, "KeyGen", entry.Command)
	assert.Equal(t, "127.0.0.1:5555", entry.RemoteIP)

	r.Forget(id)
	snap = r.Snapshot()
	_, ok = snap[id]
	assert.False(t, ok)
}

func TestRegistryTracksMultipleEntriesIndependently(t *testing.T) {
	r := NewRegistry(time.Minute, time.Minute)
	a := r.Track("GenBallot", "10.0.0.1:1")
	b := r.Track("VerifyCom", "10.0.0.2:2")

	snap := r.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "GenBallot", snap[a].Command)
	assert.Equal(t, "VerifyCom", snap[b].Command)
}
