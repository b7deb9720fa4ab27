// Package main provides the CLI entry point for hived, the Hive agent
// runtime daemon.
//
// Start the daemon in the foreground:
//
//	hived run --config hive.yaml
//
// Check the running daemon's status, or stop it, over its IPC port:
//
//	hived status --config hive.yaml
//	hived stop --config hive.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hiveagent/hive/internal/config"
	"github.com/hiveagent/hive/internal/daemon"
)

var configPath string

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hived",
		Short: "hived runs the Hive agent daemon",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "hive.yaml", "path to the YAML config file")
	root.AddCommand(buildRunCmd(), buildStopCmd(), buildStatusCmd())
	return root
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Boot the daemon and block until shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d := daemon.New(cfg.ToDaemonConfig())
			code := d.Run(ctx)
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

func buildStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask a running daemon to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			resp, err := dialDaemon(cfg.HomeDir, "stop")
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func buildStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the running daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			resp, err := dialDaemon(cfg.HomeDir, "status")
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func printJSON(v map[string]any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
