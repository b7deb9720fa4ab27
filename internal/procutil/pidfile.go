// Package procutil holds small file-based process-lifecycle primitives
// shared by the daemon and its supervisor: pid files, the stop sentinel,
// and the heartbeat file.
package procutil

import (
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// WritePID writes pid to path, creating or truncating it.
func WritePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPID reads a pid previously written by WritePID. Returns 0 and no
// error if the file does not exist.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return pid, nil
}

// RemovePID removes a pid file, ignoring a not-exist error.
func RemovePID(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsAlive reports whether pid refers to a live process. Signal 0 performs
// no action beyond existence/permission checking.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// TouchHeartbeat overwrites the heartbeat file with the current epoch
// milliseconds, matching the plain-text wire format read by the
// supervisor's staleness check.
func TouchHeartbeat(path string) error {
	ms := time.Now().UnixMilli()
	return os.WriteFile(path, []byte(strconv.FormatInt(ms, 10)), 0o644)
}

// HeartbeatAge returns how long ago the heartbeat file was last touched,
// read from its stamped content rather than filesystem mtime so it
// survives being copied or synced. A missing or unparseable file reports
// an effectively infinite age.
func HeartbeatAge(path string) time.Duration {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Duration(1<<63 - 1)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(time.UnixMilli(ms))
}

// StopSentinelExists reports whether the stop sentinel file is present.
func StopSentinelExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteStopSentinel creates the empty stop sentinel file.
func WriteStopSentinel(path string) error {
	return os.WriteFile(path, nil, 0o644)
}

// RemoveStopSentinel removes the stop sentinel file, ignoring a
// not-exist error.
func RemoveStopSentinel(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
