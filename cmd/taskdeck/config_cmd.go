package main

import (
	"fmt"

	"github.com/fentz26/taskdeck/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and write configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to config.yaml",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var overwrite bool

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&overwrite, "force", false, "Replace an existing config.yaml")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.WriteFile(cfg, overwrite)
	if err != nil {
		return usageError{err}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config_dir:                   %s\n", cfg.Dir)
	fmt.Fprintf(out, "api_url:                      %s\n", cfg.APIURL)
	fmt.Fprintf(out, "timeout:                      %s\n", cfg.Timeout)
	fmt.Fprintf(out, "log.level:                    %s\n", cfg.Log.Level)
	fmt.Fprintf(out, "log.format:                   %s\n", cfg.Log.Format)
	fmt.Fprintf(out, "storage.backend:              %s\n", cfg.Storage.Backend)
	fmt.Fprintf(out, "storage.dir:                  %s\n", cfg.StorageDir())
	fmt.Fprintf(out, "tasks.page_size:              %d\n", cfg.Tasks.PageSize)
	fmt.Fprintf(out, "tasks.refetch_after_mutation: %t\n", cfg.Tasks.RefetchAfterMutation)
	fmt.Fprintf(out, "async.policy:                 %s\n", cfg.Async.Policy)
	return nil
}
