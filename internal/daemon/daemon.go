package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hiveagent/hive/internal/export"
	"github.com/hiveagent/hive/internal/integrations"
	"github.com/hiveagent/hive/internal/memory"
	"github.com/hiveagent/hive/internal/orchestrator"
	"github.com/hiveagent/hive/internal/platform"
	"github.com/hiveagent/hive/internal/platform/discord"
	"github.com/hiveagent/hive/internal/platform/matrix"
	"github.com/hiveagent/hive/internal/platform/slack"
	"github.com/hiveagent/hive/internal/platform/telegram"
	"github.com/hiveagent/hive/internal/platform/whatsapp"
	"github.com/hiveagent/hive/internal/procutil"
	"github.com/hiveagent/hive/internal/prompt"
	"github.com/hiveagent/hive/internal/promptupdate"
	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/internal/tasks"
	"github.com/hiveagent/hive/internal/tracing"
)

// Daemon is one boot of the hived process: store, provider, orchestrator,
// memory pipeline, adapter registry, task worker, and IPC server, wired
// together per spec.md §4.K.
type Daemon struct {
	cfg       Config
	logger    *slog.Logger
	logWriter *lumberjack.Logger // nil when an external Logger was supplied

	pidPath       string
	portPath      string
	stopPath      string
	heartbeatPath string
	ctxDir        string

	store        *store.Store
	integrations *integrations.Store
	assembler    *prompt.Assembler
	memoryPipe   *memory.Pipeline
	exporter     *export.Exporter
	handler      *platform.Handler
	adapters     *platform.Registry
	adapterList  []platform.Adapter
	worker       *tasks.Worker
	promptCheck  *promptupdate.Checker
	tracer       *tracing.Tracer
	tracerStop   func(context.Context) error

	providerMu sync.Mutex
	registry   *provider.Registry

	listener net.Listener
	port     int
	metrics  *metricsServer

	startedAt time.Time
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	stopOnce sync.Once
	done     chan int
}

// New constructs a Daemon from cfg but does not yet touch the filesystem
// or network; call Run to boot and block until shutdown.
func New(cfg Config) *Daemon {
	cfg = cfg.withDefaults()
	return &Daemon{
		cfg:           cfg,
		pidPath:       filepath.Join(cfg.HomeDir, "daemon.pid"),
		portPath:      filepath.Join(cfg.HomeDir, "daemon.port"),
		stopPath:      filepath.Join(cfg.HomeDir, "daemon.stop"),
		heartbeatPath: filepath.Join(cfg.HomeDir, "daemon.heartbeat"),
		ctxDir:        filepath.Join(cfg.HomeDir, "ctx"),
		done:          make(chan int, 1),
	}
}

// Run executes the full boot sequence and then blocks until a shutdown is
// requested (IPC `stop`, a stop sentinel observed on a heartbeat
// tick, or ctx cancellation), returning the process exit code.
func (d *Daemon) Run(ctx context.Context) int {
	if err := d.boot(ctx); err != nil {
		d.logger0().Error("boot failed", "error", err)
		return 1
	}
	defer d.shutdown()

	select {
	case <-ctx.Done():
		d.requestStop(0)
	case code := <-d.done:
		return code
	}
	return <-d.done
}

// logger0 returns a usable logger even if boot failed before one was
// constructed.
func (d *Daemon) logger0() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// boot runs the ten steps of spec.md §4.K.
func (d *Daemon) boot(ctx context.Context) error {
	d.startedAt = time.Now()
	d.runCtx, d.cancel = context.WithCancel(ctx)

	// Step 1: ensure home and ctx directories exist.
	if err := os.MkdirAll(d.cfg.HomeDir, 0o755); err != nil {
		return fmt.Errorf("create home dir: %w", err)
	}
	if err := os.MkdirAll(d.ctxDir, 0o755); err != nil {
		return fmt.Errorf("create ctx dir: %w", err)
	}

	if d.cfg.Logger != nil {
		d.logger = d.cfg.Logger
	} else {
		logger, writer := newFileLogger(d.cfg.HomeDir)
		d.logger = logger
		d.logWriter = writer
	}
	d.logger = d.logger.With("component", "daemon")

	// Step 2: open the store, recover abandoned task runs.
	dbPath := filepath.Join(d.cfg.HomeDir, "hive.db")
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	d.store = st
	if n, err := st.ResetRunningTasksToQueued(ctx); err != nil {
		return fmt.Errorf("reset running tasks: %w", err)
	} else if n > 0 {
		d.logger.Info("re-queued tasks abandoned by a prior crash", "count", n)
	}

	traceCfg := d.cfg.Tracing
	if traceCfg.ServiceName == "" {
		traceCfg.ServiceName = "hived"
	}
	d.tracer, d.tracerStop = tracing.New(traceCfg)

	d.integrations = integrations.New(d.cfg.HomeDir)
	d.assembler = prompt.New(d.store, d.cfg.HomeDir)

	// Step 3: load the primary agent. Absence is logged, not fatal.
	agent, err := d.store.PrimaryAgent(ctx)
	if err != nil {
		d.logger.Warn("no primary agent configured yet, agent-dependent features disabled", "error", err)
	}

	// Step 4: construct the provider registry. Failure is a warning; the
	// orchestrator and task worker run with orchestrator == nil until a
	// later reinit succeeds.
	reg, err := buildProviders(d.cfg.Providers)
	if err != nil {
		d.logger.Warn("provider construction failed, will retry on next heartbeat", "error", err)
	}
	d.setRegistry(reg)

	// Step 5: long-term memory collaborator. None is implemented as a
	// standalone module (see DESIGN.md); the handler runs with its
	// built-in prompt assembly and legacy episode store.
	var longTerm platform.LongTermMemory

	if reg != nil {
		d.memoryPipe = memory.New(d.store, reg.Default(), d.logger, d.cfg.Memory, nil, nil)
		d.memoryPipe.Start()
	}

	d.exporter = export.New(export.Config{HomeDir: d.cfg.HomeDir, S3: d.cfg.ExportS3}, d.logger)
	d.handler = platform.New(d.store, d.integrations, nil, d.memoryPipe, longTerm, d.exporter, d.cfg.HomeDir, d.cfg.RateLimitWindow, d.logger)
	d.worker = tasks.New(d.store, nil, d.logger, d.tracer)
	if reg != nil && agent != nil {
		d.rebindOrchestrator(reg)
	}

	// Step 6: pid file + first heartbeat touch.
	if err := procutil.WritePID(d.pidPath, os.Getpid()); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if err := procutil.TouchHeartbeat(d.heartbeatPath); err != nil {
		return fmt.Errorf("touch heartbeat: %w", err)
	}
	procutil.RemoveStopSentinel(d.stopPath)

	// Step 7: heartbeat timer.
	d.wg.Add(1)
	go d.heartbeatLoop()

	// Step 8: bind the loopback IPC listener, incrementing on EADDRINUSE.
	if err := d.bindListener(); err != nil {
		return fmt.Errorf("bind ipc listener: %w", err)
	}
	d.wg.Add(1)
	go d.serveIPC()

	// Metrics listener, independent of IPC; never blocks boot on failure.
	if d.cfg.MetricsAddr != "" {
		d.metrics = newMetricsServer(d.cfg.MetricsAddr, d.logger)
		d.metrics.Start()
	}

	// Step 9: adapters, one supervised goroutine each.
	d.adapters = platform.NewRegistry()
	d.registerAdapters()
	d.startAdapters(d.runCtx)

	// Step 10: task worker loop.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.worker.Run(d.runCtx)
	}()

	// Prompt auto-update (spec.md §4.L): silent background checker, never
	// gates boot on a missing or unreachable URL.
	promptCfg := d.cfg.PromptUpdate
	if promptCfg.PromptsDir == "" {
		promptCfg.PromptsDir = filepath.Join(d.cfg.HomeDir, "prompts")
	}
	d.promptCheck = promptupdate.New(promptCfg, d.store, d.logger)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.promptCheck.Run(d.runCtx)
	}()

	d.logger.Info("daemon booted", "port", d.port, "pid", os.Getpid())
	return nil
}

func (d *Daemon) setRegistry(reg *provider.Registry) {
	d.providerMu.Lock()
	d.registry = reg
	d.providerMu.Unlock()
}

func (d *Daemon) getRegistry() *provider.Registry {
	d.providerMu.Lock()
	defer d.providerMu.Unlock()
	return d.registry
}

// rebindOrchestrator (re)builds the Orchestrator around reg and hands it to
// the handler and task worker, used both at boot and on lazy reinit.
func (d *Daemon) rebindOrchestrator(reg *provider.Registry) {
	fetcher := orchestrator.NewHTTPWebFetcher("")
	onExchange := func(conversationID, userText, assistantText string, episodeWritten bool) {
		if d.memoryPipe != nil {
			d.memoryPipe.Schedule(memory.Exchange{
				ConversationID: conversationID,
				UserText:       userText,
				AssistantText:  assistantText,
				EpisodeWritten: episodeWritten,
			})
		}
	}
	orch := orchestrator.New(d.store, reg, d.assembler, fetcher, onExchange, d.logger, d.tracer)
	d.handler.SetOrchestrator(orch)
	d.worker.SetOrchestrator(orch)
}

func (d *Daemon) bindListener() error {
	port := d.cfg.IPCPortStart
	for {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			d.listener = ln
			d.port = port
			return os.WriteFile(d.portPath, []byte(strconv.Itoa(port)), 0o644)
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return err
		}
		port++
	}
}

// heartbeatLoop touches the heartbeat file every tick and watches for the
// stop sentinel, per spec.md §4.K step 7.
func (d *Daemon) heartbeatLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.runCtx.Done():
			return
		case <-ticker.C:
			if err := procutil.TouchHeartbeat(d.heartbeatPath); err != nil {
				d.logger.Error("touch heartbeat", "error", err)
			} else {
				heartbeatTimestamp.Set(float64(time.Now().Unix()))
			}
			if procutil.StopSentinelExists(d.stopPath) {
				d.logger.Info("stop sentinel observed on heartbeat tick, shutting down")
				d.requestStop(0)
				return
			}
			if d.getRegistry() == nil {
				d.tryReinitProvider(d.runCtx)
			}
		}
	}
}

func (d *Daemon) tryReinitProvider(ctx context.Context) {
	reg, err := buildProviders(d.cfg.Providers)
	if err != nil {
		return
	}
	d.setRegistry(reg)
	d.rebindOrchestrator(reg)
	d.logger.Info("provider initialized on lazy reinit")
}

// requestStop arranges for Run to return code, exactly once.
func (d *Daemon) requestStop(code int) {
	d.stopOnce.Do(func() {
		d.done <- code
	})
}

func (d *Daemon) shutdown() {
	d.cancel()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if d.adapters != nil {
		if err := d.adapters.StopAll(stopCtx); err != nil {
			d.logger.Warn("stop adapters", "error", err)
		}
	}
	if d.listener != nil {
		d.listener.Close()
	}
	if d.metrics != nil {
		d.metrics.Stop(stopCtx)
	}
	if d.assembler != nil {
		d.assembler.Close()
	}
	if d.memoryPipe != nil {
		d.memoryPipe.Stop()
	}
	if d.tracerStop != nil {
		if err := d.tracerStop(stopCtx); err != nil {
			d.logger.Warn("shut down tracer", "error", err)
		}
	}
	procutil.RemovePID(d.pidPath)
	os.Remove(d.portPath)
	if d.store != nil {
		d.store.Close()
	}
	if d.logWriter != nil {
		d.logWriter.Close()
	}
	d.wg.Wait()
}

// registerAdapters constructs an Adapter for every platform with a non-nil
// config and registers it. Unconfigured platforms get no adapter; they
// are recorded as "not configured" so that Status() still reports them.
func (d *Daemon) registerAdapters() {
	register := func(a platform.Adapter) {
		d.adapters.Register(a)
		d.adapterList = append(d.adapterList, a)
	}
	if d.cfg.Discord != nil {
		register(discord.New(*d.cfg.Discord, d.handler, d.logger))
	}
	if d.cfg.Telegram != nil {
		register(telegram.New(*d.cfg.Telegram, d.handler, d.logger))
	}
	if d.cfg.Slack != nil {
		register(slack.New(*d.cfg.Slack, d.handler, d.logger))
	}
	if d.cfg.WhatsApp != nil {
		register(whatsapp.New(*d.cfg.WhatsApp, d.handler, d.logger))
	}
	if d.cfg.Matrix != nil {
		register(matrix.New(*d.cfg.Matrix, d.handler, d.logger))
	}
	reported := d.adapters.Status()
	for _, name := range []string{"discord", "telegram", "slack", "whatsapp", "matrix"} {
		if _, ok := reported[name]; !ok {
			d.adapters.SetStatus(name, platform.StatusNotConfigured, "")
		}
	}
}

// startAdapters launches one supervisor goroutine per registered adapter.
// Adapters administratively disabled via integrations/disabled.json are
// never started. A failed Start is retried after adapterRetryInterval; an
// adapter that starts successfully is left running for the daemon's
// lifetime (the minimal Adapter interface has no way to report a crash
// after Start returns, so only failure-to-start is retried — see
// DESIGN.md).
func (d *Daemon) startAdapters(ctx context.Context) {
	for _, a := range d.adapterList {
		disabled, err := d.integrations.IsDisabled(a.Platform())
		if err != nil {
			d.logger.Error("check integration disabled state", "platform", a.Platform(), "error", err)
		}
		if disabled {
			d.adapters.SetStatus(a.Platform(), platform.StatusDisabled, "")
			continue
		}
		d.wg.Add(1)
		go d.superviseAdapter(ctx, a)
	}
}

func (d *Daemon) superviseAdapter(ctx context.Context, a platform.Adapter) {
	defer d.wg.Done()
	for {
		d.adapters.SetStatus(a.Platform(), platform.StatusStarting, "")
		if err := a.Start(ctx); err != nil {
			d.adapters.SetStatus(a.Platform(), platform.StatusError, err.Error())
			d.logger.Error("adapter failed to start, retrying", "platform", a.Platform(), "error", err, "retry_in", adapterRetryInterval)
			select {
			case <-ctx.Done():
				return
			case <-time.After(adapterRetryInterval):
				continue
			}
		}
		d.adapters.SetStatus(a.Platform(), platform.StatusRunning, "")
		return
	}
}

// reloadIntegrations stops and restarts every adapter, re-checking
// disabled.json, per spec.md §4.K step 9's "reload-on-signal" and the
// `integrations_reload` IPC command.
func (d *Daemon) reloadIntegrations(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.adapters.StopAll(stopCtx); err != nil {
		d.logger.Warn("stop adapters for reload", "error", err)
	}
	d.startAdapters(ctx)
}
