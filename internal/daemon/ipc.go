package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"time"
)

// ipcRequest is the single-line JSON shape every IPC connection sends,
// per spec.md §6.
type ipcRequest struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// serveIPC accepts connections until the listener closes and handles each
// on its own goroutine, so connections are served concurrently. Each one
// carries exactly one request and one response terminated by "\n", in the guest-agent's
// Accept-loop-plus-per-connection-goroutine idiom, adapted from
// length-prefixed binary framing to single-line JSON framing.
func (d *Daemon) serveIPC() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.runCtx.Done():
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				d.logger.Error("ipc accept", "error", err)
				continue
			}
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handleIPCConn(conn)
		}()
	}
}

func (d *Daemon) handleIPCConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}

	var req ipcRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		writeIPCResponse(conn, map[string]any{"error": "Invalid JSON"})
		return
	}

	d.dispatchIPC(conn, req)
}

func writeIPCResponse(conn net.Conn, resp map[string]any) {
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	b = append(b, '\n')
	conn.Write(b)
}

func (d *Daemon) dispatchIPC(conn net.Conn, req ipcRequest) {
	switch req.Type {
	case "ping":
		writeIPCResponse(conn, map[string]any{"pong": true, "timestamp": time.Now().UTC()})

	case "status":
		writeIPCResponse(conn, d.buildStatus())

	case "stop":
		writeIPCResponse(conn, map[string]any{"acknowledged": true})
		go func() {
			time.Sleep(100 * time.Millisecond)
			d.requestStop(0)
		}()

	case "task":
		d.handleTaskCreate(conn, req)

	case "task_cancel":
		if err := d.worker.Cancel(d.runCtx, req.ID); err != nil {
			writeIPCResponse(conn, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeIPCResponse(conn, map[string]any{"ok": true})

	case "integrations_reload":
		writeIPCResponse(conn, map[string]any{"ok": true})
		go d.reloadIntegrations(d.runCtx)

	default:
		writeIPCResponse(conn, map[string]any{"error": "Unknown command type: " + req.Type})
	}
}

func (d *Daemon) handleTaskCreate(conn net.Conn, req ipcRequest) {
	agentID := req.AgentID
	if agentID == "" {
		agent, err := d.store.PrimaryAgent(d.runCtx)
		if err != nil {
			writeIPCResponse(conn, map[string]any{"accepted": false, "error": "no agent configured"})
			return
		}
		agentID = agent.ID
	}

	// The payload's own id, if any, is client-chosen for correlation only;
	// the store always mints its own primary key (see DESIGN.md), which is
	// what the response reports.
	task, err := d.store.InsertTask(d.runCtx, req.Title, agentID)
	if err != nil {
		writeIPCResponse(conn, map[string]any{"accepted": false, "error": err.Error()})
		return
	}
	d.worker.Nudge()
	writeIPCResponse(conn, map[string]any{"accepted": true, "id": task.ID})
}

func (d *Daemon) buildStatus() map[string]any {
	now := time.Now()
	uptime := now.Sub(d.startedAt)

	status := map[string]any{
		"pid":           os.Getpid(),
		"uptime":        uptime.String(),
		"uptimeSeconds": int(uptime.Seconds()),
		"ctxEnabled":    false,
		"timestamp":     now.UTC(),
	}

	if agent, err := d.store.PrimaryAgent(d.runCtx); err == nil {
		status["agent"] = agent.Name
		status["provider"] = agent.Provider
		status["model"] = agent.Model
	}

	episodes, _ := d.store.CountEpisodes(d.runCtx)
	conversations, _ := d.store.CountConversations(d.runCtx)
	status["memoryStats"] = map[string]any{
		"episodes":      episodes,
		"conversations": conversations,
	}

	status["taskWorker"] = map[string]any{
		"activeTaskId": d.worker.ActiveTaskID(),
	}

	integrationStatus := map[string]string{}
	if d.adapters != nil {
		for platformName, s := range d.adapters.Status() {
			integrationStatus[platformName] = string(s)
		}
	}
	status["integrations"] = integrationStatus

	return status
}
