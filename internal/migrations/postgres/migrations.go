package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsDir = "sql"

// advisoryLockID serializes Apply across server replicas starting together.
const advisoryLockID int64 = 0x6e6f7469

//go:embed sql/*.sql
var migrationsFS embed.FS

type Migration struct {
	Name      string
	AppliedAt *time.Time
}

func (m Migration) Applied() bool { return m.AppliedAt != nil }

// Apply runs every pending migration in name order, each in its own
// transaction, and returns the names it applied.
func Apply(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		return nil, fmt.Errorf("failed to take migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", advisoryLockID)
	}()

	if err := createHistoryTable(ctx, conn); err != nil {
		return nil, err
	}

	status, err := loadStatus(ctx, conn)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range status {
		if m.Applied() {
			continue
		}
		if err := applyOne(ctx, conn, m.Name); err != nil {
			return applied, err
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}

// Status lists every embedded migration and when it was applied, if ever.
func Status(ctx context.Context, pool *pgxpool.Pool) ([]Migration, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if err := createHistoryTable(ctx, conn); err != nil {
		return nil, err
	}
	return loadStatus(ctx, conn)
}

func applyOne(ctx context.Context, conn *pgxpool.Conn, name string) error {
	content, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+name)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", name, err)
	}

	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		for stmt := range strings.SplitSeq(string(content), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
		}
		if _, err := tx.Exec(ctx, "INSERT INTO migrations_history (name) VALUES ($1)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		return nil
	})
}

func loadStatus(ctx context.Context, conn *pgxpool.Conn) ([]Migration, error) {
	names, err := embeddedNames()
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, "SELECT name, applied_at FROM migrations_history")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration history: %w", err)
	}
	history := make(map[string]time.Time)
	var (
		name string
		at   time.Time
	)
	if _, err := pgx.ForEachRow(rows, []any{&name, &at}, func() error {
		history[name] = at
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to scan migration history: %w", err)
	}

	out := make([]Migration, 0, len(names))
	for _, n := range names {
		m := Migration{Name: n}
		if at, ok := history[n]; ok {
			m.AppliedAt = &at
		}
		out = append(out, m)
	}
	return out, nil
}

func embeddedNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func createHistoryTable(ctx context.Context, conn *pgxpool.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS migrations_history (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration history: %w", err)
	}
	return nil
}
