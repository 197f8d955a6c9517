package main

import (
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/garrettladley/notisync/internal/tui"
	"github.com/garrettladley/notisync/internal/xslog"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live notification list",
		Long:  "Opens the full-screen list. Keys: r read, a read all, d delete, q quit.",
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmd.Context()
	model := tui.New(tui.Deps{Ctx: ctx, Engine: engine, Logger: a.logger})

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	p := tea.NewProgram(&model)
	if _, err := p.Run(); err != nil {
		a.logger.ErrorContext(ctx, "tui exited", xslog.Error(err))
		return err
	}
	return nil
}
