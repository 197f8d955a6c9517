package postgres

import (
	"strings"
	"testing"
)

func TestEmbeddedNames(t *testing.T) {
	t.Parallel()

	names, err := embeddedNames()
	if err != nil {
		t.Fatalf("embeddedNames() error = %v", err)
	}
	if len(names) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	for i, n := range names {
		if !strings.HasSuffix(n, ".sql") {
			t.Errorf("migration %q is not a .sql file", n)
		}
		if i > 0 && names[i-1] >= n {
			t.Errorf("migrations out of order: %q before %q", names[i-1], n)
		}
	}
}
