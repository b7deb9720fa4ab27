// Package main provides hived-watcher, a separate long-lived process that
// restarts hived on crash or stale heartbeat (internal/supervisor).
//
//	hived-watcher --home ~/.hive --daemon-path /usr/local/bin/hived
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hiveagent/hive/internal/supervisor"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var homeDir, daemonPath, configPath string

	cmd := &cobra.Command{
		Use:   "hived-watcher",
		Short: "hived-watcher restarts hived on crash or stale heartbeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			var daemonArgs []string
			if configPath != "" {
				daemonArgs = append(daemonArgs, "run", "--config", configPath)
			} else {
				daemonArgs = append(daemonArgs, "run")
			}

			s := supervisor.New(supervisor.Config{
				HomeDir:    homeDir,
				DaemonPath: daemonPath,
				DaemonArgs: daemonArgs,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&homeDir, "home", "", "Hive home directory (must match the daemon's own --config home_dir)")
	cmd.Flags().StringVar(&daemonPath, "daemon-path", "hived", "path to the hived executable to spawn")
	cmd.Flags().StringVar(&configPath, "config", "", "config file forwarded to each spawned hived run")
	cmd.MarkFlagRequired("home")

	return cmd
}
