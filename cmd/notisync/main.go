package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/garrettladley/notisync/internal/version"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "notisync",
		Short:   "Live notifications in your terminal",
		Version: version.Get(),
		RunE:    runWatch,
	}

	rootCmd.AddCommand(
		watchCmd(),
		tailCmd(),
		readCmd(),
		readAllCmd(),
		deleteCmd(),
		batchReadCmd(),
		statsCmd(),
		versionCmd(),
		upgradeCmd(),
	)

	if err := fang.Execute(context.Background(), rootCmd, fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM)); err != nil {
		os.Exit(1)
	}
}
