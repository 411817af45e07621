package main

import (
	"fmt"

	"github.com/fentz26/taskdeck/internal/notify"
	"github.com/fentz26/taskdeck/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	notes := &notify.Recorder{}
	s, err := openSession(notes)
	if err != nil {
		return err
	}
	defer s.Close()

	app := tui.New(cmd.Context(), s.app, notes)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
