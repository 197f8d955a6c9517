package xsync

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	b := Backoff{Base: 2 * time.Second, Max: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: -1, want: 2 * time.Second},
		{attempt: 0, want: 2 * time.Second},
		{attempt: 1, want: 4 * time.Second},
		{attempt: 2, want: 8 * time.Second},
		{attempt: 3, want: 16 * time.Second},
		{attempt: 4, want: 30 * time.Second},
		{attempt: 5, want: 30 * time.Second},
		{attempt: 200, want: 30 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffDelayMonotonic(t *testing.T) {
	t.Parallel()

	b := Backoff{Base: 30 * time.Second, Max: 120 * time.Second}

	prev := time.Duration(0)
	for attempt := range 64 {
		got := b.Delay(attempt)
		if got < prev {
			t.Fatalf("Delay(%d) = %v, less than previous %v", attempt, got, prev)
		}
		if got > b.Max {
			t.Fatalf("Delay(%d) = %v, exceeds cap %v", attempt, got, b.Max)
		}
		prev = got
	}
}

func TestConnectionStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{ConnectionState(42), "ConnectionState(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
