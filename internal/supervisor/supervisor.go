// Package supervisor implements the watcher process: a separate long-lived
// process that ticks every 60s, checks the daemon's pid and heartbeat
// freshness, and restarts the daemon when it has crashed or gone stale.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hiveagent/hive/internal/procutil"
)

const (
	tickInterval       = 60 * time.Second
	heartbeatStaleness = 90 * time.Second
	killGrace          = 5 * time.Second
)

// Config configures a Supervisor.
type Config struct {
	HomeDir string
	// DaemonPath is the executable to spawn (the hived binary).
	DaemonPath string
	// DaemonArgs are extra arguments passed to every spawned daemon,
	// e.g. a --home override forwarded from this process's own environment.
	DaemonArgs []string
	Logger     *slog.Logger
}

// Supervisor restarts the daemon process on crash or stale heartbeat.
type Supervisor struct {
	cfg Config

	pidPath       string
	heartbeatPath string
	stopPath      string
	watcherPID    string
}

// New constructs a Supervisor. Home-layout paths are derived from
// cfg.HomeDir per spec.md §6.
func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Supervisor{
		cfg:           cfg,
		pidPath:       filepath.Join(cfg.HomeDir, "daemon.pid"),
		heartbeatPath: filepath.Join(cfg.HomeDir, "daemon.heartbeat"),
		stopPath:      filepath.Join(cfg.HomeDir, "daemon.stop"),
		watcherPID:    filepath.Join(cfg.HomeDir, "daemon.watcher.pid"),
	}
}

// Run writes this process's own pid file and ticks until ctx is
// cancelled or a tick finds the stop sentinel, restarting the daemon
// whenever it is missing or stale.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := procutil.WritePID(s.watcherPID, os.Getpid()); err != nil {
		return fmt.Errorf("write watcher pid: %w", err)
	}
	defer procutil.RemovePID(s.watcherPID)

	s.tick()
	if procutil.StopSentinelExists(s.stopPath) {
		return nil
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick()
			if procutil.StopSentinelExists(s.stopPath) {
				return nil
			}
		}
	}
}

// tick runs one supervision cycle: exit on stop sentinel, otherwise ensure
// the daemon is alive and fresh, restarting it if not.
func (s *Supervisor) tick() {
	if procutil.StopSentinelExists(s.stopPath) {
		s.cfg.Logger.Info("stop sentinel present, watcher exiting without spawning")
		return
	}

	pid, err := procutil.ReadPID(s.pidPath)
	if err != nil {
		s.cfg.Logger.Error("read daemon pid", "error", err)
	}

	if pid != 0 && procutil.IsAlive(pid) && procutil.HeartbeatAge(s.heartbeatPath) < heartbeatStaleness {
		return
	}

	reason := "daemon not running"
	if pid != 0 && procutil.IsAlive(pid) {
		reason = "stale heartbeat"
		s.killDaemon(pid)
	}
	s.cfg.Logger.Warn("restarting daemon", "reason", reason, "pid", pid)
	if err := s.spawnDaemon(); err != nil {
		s.cfg.Logger.Error("spawn daemon", "error", err)
	}
}

// killDaemon sends SIGTERM, waits up to killGrace for the process to
// exit, and escalates to SIGKILL if it is still alive.
func (s *Supervisor) killDaemon(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = proc.Signal(syscall.SIGTERM)

	deadline := time.Now().Add(killGrace)
	for time.Now().Before(deadline) {
		if !procutil.IsAlive(pid) {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	if procutil.IsAlive(pid) {
		s.cfg.Logger.Warn("daemon still alive after SIGTERM grace period, sending SIGKILL", "pid", pid)
		_ = proc.Kill()
	}
}

// spawnDaemon starts a fresh daemon process, forwarding its stdout/stderr
// to this process's own (the daemon log, when launched under the watcher's
// redirected stdio).
func (s *Supervisor) spawnDaemon() error {
	cmd := exec.Command(s.cfg.DaemonPath, s.cfg.DaemonArgs...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	// Deliberately not waited on here: the watcher doesn't own the
	// daemon's lifecycle beyond spawning it, it discovers crashes on the
	// next tick via the pid file and heartbeat, same as a daemon started
	// by any other means.
	go func() { _ = cmd.Wait() }()
	return nil
}
