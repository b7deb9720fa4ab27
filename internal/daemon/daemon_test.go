package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedAgent(t *testing.T, homeDir string) {
	t.Helper()
	dbPath := filepath.Join(homeDir, "hive.db")
	st, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	if _, err := st.UpsertPrimaryAgent(context.Background(), models.Agent{
		Name: "Hive", Provider: "ollama", Model: "llama3", Persona: "Helpful.",
	}); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
}

func startTestDaemon(t *testing.T, port int) (*Daemon, <-chan int) {
	t.Helper()
	home := t.TempDir()
	seedAgent(t, home)

	cfg := Config{
		HomeDir:      home,
		IPCPortStart: port,
		Logger:       discardLogger(),
		Providers: ProviderConfig{
			Ollama: &provider.OllamaConfig{BaseURL: "http://127.0.0.1:1", DefaultModel: "llama3"},
		},
	}
	d := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan int, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(home, "daemon.port")); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return d, done
}

func sendIPC(t *testing.T, port int, req map[string]any) map[string]any {
	t.Helper()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		t.Fatalf("dial ipc: %v", err)
	}
	defer conn.Close()

	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	b = append(b, '\n')
	if _, err := conn.Write(b); err != nil {
		t.Fatalf("write request: %v", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", line, err)
	}
	return resp
}

func TestDaemonPingAndStatus(t *testing.T) {
	const port = 27611
	_, done := startTestDaemon(t, port)

	resp := sendIPC(t, port, map[string]any{"type": "ping"})
	if resp["pong"] != true {
		t.Errorf("ping response = %v, want pong:true", resp)
	}

	status := sendIPC(t, port, map[string]any{"type": "status"})
	if status["agent"] != "Hive" {
		t.Errorf("status agent = %v, want Hive", status["agent"])
	}
	if status["ctxEnabled"] != false {
		t.Errorf("status ctxEnabled = %v, want false", status["ctxEnabled"])
	}

	stop := sendIPC(t, port, map[string]any{"type": "stop"})
	if stop["acknowledged"] != true {
		t.Errorf("stop response = %v, want acknowledged:true", stop)
	}

	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("exit code = %d, want 0", code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down after stop command")
	}
}

func TestDaemonUnknownCommand(t *testing.T) {
	const port = 27612
	_, done := startTestDaemon(t, port)
	defer func() {
		sendIPC(t, port, map[string]any{"type": "stop"})
		<-done
	}()

	resp := sendIPC(t, port, map[string]any{"type": "bogus"})
	if resp["error"] != "Unknown command type: bogus" {
		t.Errorf("error = %v, want Unknown command type: bogus", resp["error"])
	}
}

func TestDaemonInvalidJSON(t *testing.T) {
	const port = 27613
	_, done := startTestDaemon(t, port)
	defer func() {
		sendIPC(t, port, map[string]any{"type": "stop"})
		<-done
	}()

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		t.Fatalf("dial ipc: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["error"] != "Invalid JSON" {
		t.Errorf("error = %v, want Invalid JSON", resp["error"])
	}
}

func TestDaemonTaskCreateAndCancel(t *testing.T) {
	const port = 27614
	_, done := startTestDaemon(t, port)
	defer func() {
		sendIPC(t, port, map[string]any{"type": "stop"})
		<-done
	}()

	created := sendIPC(t, port, map[string]any{"type": "task", "title": "say hello"})
	if created["accepted"] != true {
		t.Fatalf("task create = %v, want accepted:true", created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("task create response missing id")
	}

	cancelled := sendIPC(t, port, map[string]any{"type": "task_cancel", "id": id})
	if cancelled["ok"] != true {
		t.Errorf("task_cancel = %v, want ok:true", cancelled)
	}
}
