// Package daemon manages the hookd process lifecycle: starting the
// background process, PID-file liveness checks, graceful stop, restart,
// and the status client.
package daemon

import (
	"context"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-labs/hookd/internal/engine"
	"github.com/smykla-labs/hookd/internal/plugin"
	"github.com/smykla-labs/hookd/internal/procctx"
	"github.com/smykla-labs/hookd/internal/registry"
	"github.com/smykla-labs/hookd/internal/server"
	"github.com/smykla-labs/hookd/pkg/config"
	"github.com/smykla-labs/hookd/pkg/logger"
)

const (
	// startWait bounds how long Start waits for the daemonized process to
	// bind its socket.
	startWait = 5 * time.Second

	// stopPollInterval is how often Stop re-checks process liveness.
	stopPollInterval = 100 * time.Millisecond
)

var (
	// ErrAlreadyRunning is returned when Start finds a live daemon.
	ErrAlreadyRunning = errors.New("daemon already running")

	// ErrNotRunning is returned when Stop finds no live daemon.
	ErrNotRunning = errors.New("daemon not running")

	// ErrStopTimeout is returned when the daemon outlives the stop grace.
	ErrStopTimeout = errors.New("daemon did not exit within grace period")

	// ErrStartTimeout is returned when the daemonized process never binds
	// its socket.
	ErrStartTimeout = errors.New("daemon did not bind socket in time")
)

// Manager drives the daemon lifecycle for one project.
type Manager struct {
	pctx     *procctx.Context
	doc      *config.Document
	builtins map[string]registry.Builtin
	version  string
	log      logger.Logger
}

// NewManager creates a Manager.
func NewManager(
	pctx *procctx.Context,
	doc *config.Document,
	builtins map[string]registry.Builtin,
	version string,
	log logger.Logger,
) *Manager {
	return &Manager{
		pctx:     pctx,
		doc:      doc,
		builtins: builtins,
		version:  version,
		log:      log,
	}
}

// RunningPID returns the live daemon's PID, or 0 when none is running.
// A PID file pointing at a dead process is stale state, not liveness.
func (m *Manager) RunningPID() int {
	pid, err := readPIDFile(m.pctx.PIDFile)
	if err != nil {
		return 0
	}

	if !processAlive(pid) {
		return 0
	}

	return pid
}

// Start launches the daemon in the background and waits for the socket.
func (m *Manager) Start() (int, error) {
	if pid := m.RunningPID(); pid != 0 {
		return pid, errors.Wrapf(ErrAlreadyRunning, "pid %d", pid)
	}

	// A leftover PID file from a crashed daemon is cleaned here, once
	// liveness has ruled out a live owner.
	if err := removePIDFile(m.pctx.PIDFile); err != nil {
		return 0, err
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, errors.Wrap(err, "failed to resolve executable path")
	}

	logFile, err := os.OpenFile(
		m.pctx.LogFile,
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		logger.LogFilePermissions,
	)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open log file %s", m.pctx.LogFile)
	}
	defer logFile.Close()

	cmd := exec.Command(exe, "run", "--daemonized", "--project", m.pctx.ProjectRoot)
	cmd.Dir = m.pctx.ProjectRoot
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, errors.Wrap(err, "failed to start daemon process")
	}

	pid := cmd.Process.Pid

	// The child is detached; releasing avoids holding a zombie reference.
	if err := cmd.Process.Release(); err != nil {
		return pid, errors.Wrap(err, "failed to release daemon process")
	}

	if err := m.waitForSocket(pid); err != nil {
		return pid, err
	}

	return pid, nil
}

// waitForSocket polls until the daemon accepts connections or the child
// dies.
func (m *Manager) waitForSocket(pid int) error {
	deadline := time.Now().Add(startWait)

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", m.pctx.SocketPath, stopPollInterval)
		if err == nil {
			conn.Close()

			return nil
		}

		if !processAlive(pid) {
			return errors.Newf(
				"daemon process %d exited during startup; see %s",
				pid, m.pctx.LogFile)
		}

		time.Sleep(stopPollInterval)
	}

	return errors.Wrapf(ErrStartTimeout, "socket %s", m.pctx.SocketPath)
}

// Stop signals the daemon and waits for it to exit. The wait is bounded
// by the configured shutdown grace plus scheduling slack; a daemon still
// alive after that is reported, never silently abandoned.
func (m *Manager) Stop() error {
	pid := m.RunningPID()
	if pid == 0 {
		// Remove stale state so the next start is clean.
		if err := removePIDFile(m.pctx.PIDFile); err != nil {
			return err
		}

		return ErrNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrapf(err, "failed to find daemon process %d", pid)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return errors.Wrapf(err, "failed to signal daemon process %d", pid)
	}

	grace := m.doc.GetDaemon().GetShutdownGrace() + time.Second
	deadline := time.Now().Add(grace)

	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return removePIDFile(m.pctx.PIDFile)
		}

		time.Sleep(stopPollInterval)
	}

	return errors.Wrapf(ErrStopTimeout, "pid %d still alive after %s", pid, grace)
}

// Restart stops any running daemon and starts a fresh one. A daemon that
// was not running is not an error for restart.
func (m *Manager) Restart() (int, error) {
	if err := m.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return 0, err
	}

	return m.Start()
}

// Run serves in the current process until ctx is cancelled or a
// termination signal arrives. This is the body of the daemonized child
// and of foreground runs.
func (m *Manager) Run(ctx context.Context) error {
	// One daemon per project. Foreground runs go through the same check
	// as Start, or a second `hookd run` would overwrite the live daemon's
	// PID file and steal its socket.
	if pid := m.RunningPID(); pid != 0 {
		return errors.Wrapf(ErrAlreadyRunning, "pid %d", pid)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := writePIDFile(m.pctx.PIDFile); err != nil {
		return err
	}

	defer func() {
		if err := removePIDFile(m.pctx.PIDFile); err != nil {
			m.log.Error("failed to remove pid file", "error", err)
		}
	}()

	srv, err := m.bootstrap()
	if err != nil {
		return err
	}

	m.log.Info("daemon starting",
		"pid", os.Getpid(),
		"project", m.pctx.RepoIdentity,
		"version", m.version,
	)

	return srv.Serve(ctx)
}

// bootstrap assembles the serving stack: plugins, registry, router,
// server. Every fault here is fatal before the socket is bound.
func (m *Manager) bootstrap() (*server.Server, error) {
	loader := plugin.NewLoader(m.pctx.ProjectRoot, m.log)

	classes, err := loader.LoadAll(m.doc.Plugins)
	if err != nil {
		return nil, err
	}

	builder := registry.NewBuilder(m.builtins, classes, m.pctx, m.log)

	chains, err := builder.Build(m.doc)
	if err != nil {
		return nil, err
	}

	router := engine.NewRouter(chains, m.log)

	daemonCfg := m.doc.GetDaemon()

	return server.New(router, server.Options{
		SocketPath:     m.pctx.SocketPath,
		Project:        m.pctx.RepoIdentity,
		Version:        m.version,
		MaxConnections: daemonCfg.GetMaxConnections(),
		ShutdownGrace:  daemonCfg.GetShutdownGrace(),
	}, m.log), nil
}
