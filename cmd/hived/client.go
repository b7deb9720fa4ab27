package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// dialDaemon connects to the running daemon's IPC port, read from
// <homeDir>/daemon.port, and sends one request/response round trip. Mirrors
// the daemon's own single-line JSON framing (internal/daemon/ipc.go).
func dialDaemon(homeDir, reqType string) (map[string]any, error) {
	portBytes, err := os.ReadFile(filepath.Join(homeDir, "daemon.port"))
	if err != nil {
		return nil, fmt.Errorf("daemon not running (no daemon.port in %s): %w", homeDir, err)
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(portBytes)))
	if err != nil {
		return nil, fmt.Errorf("invalid daemon.port contents: %w", err)
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	line, err := json.Marshal(map[string]string{"type": reqType})
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	resp, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resp), &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return out, nil
}
