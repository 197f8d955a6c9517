// Package session names one running client so the server can tell its
// connections and requests apart in logs.
package session

import (
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const hostMaxLen = 16

// NewID returns "<host>-<yyyymmdd-hhmmss>-<8 hex>". The random suffix keeps two
// clients started in the same second on one machine distinct.
func NewID() string {
	return newID(hostname(), time.Now(), uuid.NewString())
}

func newID(host string, now time.Time, random string) string {
	suffix := strings.ReplaceAll(random, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	id := now.UTC().Format("20060102-150405") + "-" + suffix
	if host == "" {
		return id
	}
	return host + "-" + id
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	h, _, _ = strings.Cut(h, ".")
	h = strings.ToLower(h)
	if len(h) > hostMaxLen {
		h = h[:hostMaxLen]
	}
	return h
}
