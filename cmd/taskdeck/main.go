package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fentz26/taskdeck/internal/config"
	"github.com/fentz26/taskdeck/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "taskdeck - accounts and tasks from the terminal",
	Long: `taskdeck is a terminal client for the task API. Sign in with a username and
password or a phone one-time code, then manage your tasks from the command
line or the interactive TUI.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	cfg *config.Config
	log *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().String("api", config.DefaultAPIURL, "API base URL")
	rootCmd.PersistentFlags().String("config-dir", config.DefaultDir(), "Configuration directory")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd, otpCmd, passwordCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(devserverCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves flags, environment and config.yaml into cfg and sets
// up the default logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	v := viper.New()
	flags := cmd.Flags()
	for key, name := range map[string]string{
		"api_url":    "api",
		"config_dir": "config-dir",
		"log.level":  "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	loaded, err := config.Load(v)
	if err != nil {
		return usageError{err}
	}
	cfg = loaded
	log = logger.Setup(cfg.Log, os.Stderr)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}
