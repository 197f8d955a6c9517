package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/garrettladley/notisync/internal/migrations/postgres"
)

const envDatabaseURL = "DATABASE_URL"

func migrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := connect(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Apply(cmd.Context(), pool)
			for _, name := range applied {
				fmt.Printf("applied %s\n", name)
			}
			if err != nil {
				return err
			}

			if len(applied) == 0 {
				fmt.Println("Already up to date")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv(envDatabaseURL), "Postgres connection string")
	return cmd
}

func statusCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := connect(cmd.Context(), databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrations, err := postgres.Status(cmd.Context(), pool)
			if err != nil {
				return err
			}

			for _, m := range migrations {
				state := "pending"
				if m.Applied() {
					state = m.AppliedAt.Local().Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-40s %s\n", m.Name, state)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv(envDatabaseURL), "Postgres connection string")
	return cmd
}

func connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New(envDatabaseURL + " is not set")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return pool, nil
}
