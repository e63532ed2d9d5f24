package audit

import (
	"testing"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger { return zerolog.Nop() }

func TestEncodeNonEmpty(t *testing.T) {
	ev := Event{Command: "GenBallot", Success: true, DurationMs: 42, RemoteAddr: "127.0.0.1:1234"}
	raw := Encode(ev)
	if len(raw) == 0 {
		t.Fatal("expected non-empty encoding")
	}
	// 4-byte command length prefix + "GenBallot" + success byte + 8-byte
	// duration + 4-byte addr length prefix + addr + duplicate byte.
	want := 4 + len(ev.Command) + 1 + 8 + 4 + len(ev.RemoteAddr) + 1
	if len(raw) != want {
		t.Fatalf("got %d bytes, want %d", len(raw), want)
	}
}

func TestPublishNoopWithoutBrokers(t *testing.T) {
	p := NewPublisher(nil, "audit.events", noopLogger())
	// Must not panic or block despite no brokers configured.
	p.Publish(Event{Command: "KeyGen"})
}
