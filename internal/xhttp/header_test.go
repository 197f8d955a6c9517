package xhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
		wantOK bool
	}{
		{name: "valid", header: "Bearer abc.def", want: "abc.def", wantOK: true},
		{name: "lowercase scheme", header: "bearer abc", want: "abc", wantOK: true},
		{name: "empty", header: "", wantOK: false},
		{name: "missing token", header: "Bearer ", wantOK: false},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := BearerToken(tt.header)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsWebsocketUpgrade(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/ws", nil)
	if IsWebsocketUpgrade(r) {
		t.Errorf("IsWebsocketUpgrade() = true without Upgrade header")
	}
	r.Header.Set(Upgrade, "WebSocket")
	if !IsWebsocketUpgrade(r) {
		t.Errorf("IsWebsocketUpgrade() = false, want true")
	}
}
