package observer

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSetNotifyOrderAndRemove(t *testing.T) {
	t.Parallel()

	var s Set[int]
	var got []string

	removeA := s.Add(func(v int) { got = append(got, "a") })
	s.Add(func(v int) { got = append(got, "b") })
	s.Add(func(v int) { got = append(got, "c") })

	s.Notify(1)
	removeA()
	removeA()
	s.Notify(2)

	want := []string{"a", "b", "c", "b", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Notify() order mismatch (-want +got):\n%s", diff)
	}
	if got := s.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestSetNotifyIsolatesPanics(t *testing.T) {
	t.Parallel()

	var s Set[string]
	s.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var calls int
	s.Add(func(string) { calls++ })
	s.Add(func(string) { panic("boom") })
	s.Add(func(string) { calls++ })

	s.Notify("x")

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
