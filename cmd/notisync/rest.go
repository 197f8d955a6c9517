package main

import (
	"fmt"
	"os"
	"sort"

	go_json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.api.MarkRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("marked %s read\n", args[0])
			return nil
		},
	}
}

func readAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.api.MarkAllRead(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("marked %d read\n", updated)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.api.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}

func batchReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch-read <id>...",
		Short: "Mark several notifications read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			updated, err := a.api.BatchMarkRead(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Printf("marked %d read\n", updated)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show notification counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.api.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return go_json.NewEncoder(os.Stdout).Encode(stats)
			}

			fmt.Printf("total:  %d\nunread: %d\n", stats.Total, stats.Unread)
			for _, k := range sortedKeys(stats.ByType) {
				fmt.Printf("  %-16s %d\n", k, stats.ByType[k])
			}
			for _, k := range sortedKeys(stats.ByPriority) {
				fmt.Printf("  %-16s %d\n", k, stats.ByPriority[k])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
