// Package worker supervises the single bot worker process: spawning it,
// relaying its output and stopping it on request.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/tessro/paira/internal/event"
	"github.com/tessro/paira/internal/id"
	"github.com/tessro/paira/internal/logging"
	"github.com/tessro/paira/internal/relay"
)

// StopTimeout is the default duration to wait for the worker to exit after
// the termination signal before killing it.
const StopTimeout = 5 * time.Second

// DefaultUnbufferedEnv disables output buffering in the worker so relayed
// lines arrive as they are printed.
const DefaultUnbufferedEnv = "PYTHONUNBUFFERED=1"

// Config configures a Supervisor.
type Config struct {
	// Path is the worker executable. It must exist when Start is called.
	Path string

	// WorkDir is the working directory for the worker. Empty means the
	// directory containing Path.
	WorkDir string

	// UnbufferedEnv is a KEY=VALUE entry added to the inherited environment.
	// Empty means DefaultUnbufferedEnv.
	UnbufferedEnv string

	// Env holds extra KEY=VALUE entries added after UnbufferedEnv.
	Env []string

	// StopTimeout bounds the graceful part of Stop. Zero means StopTimeout.
	StopTimeout time.Duration

	// BuildCommand, if set, replaces the default command construction. The
	// returned command must not be started. Dir and Env are filled in when
	// left empty.
	BuildCommand func() (*exec.Cmd, error)
}

// handle is the tracked worker process.
type handle struct {
	cmd       *exec.Cmd
	token     string
	pid       int
	startedAt time.Time
	relay     *relay.Relay

	// exited is closed by the reaper once cmd.Wait has returned.
	exited chan struct{}
}

// Supervisor owns at most one worker process.
//
// The mutex guards only the slot. It is never held while spawning, signalling
// or emitting, so Status stays responsive while a Start or Stop is in
// progress.
type Supervisor struct {
	config Config

	mu sync.Mutex
	// +checklocks:mu
	slot slot
	// +checklocks:mu
	proc *handle

	lines event.Emitter[relay.Line]
}

// New creates a stopped Supervisor.
func New(config Config) *Supervisor {
	return &Supervisor{config: config}
}

// OnLine registers a handler for relayed output lines. Each line carries the
// token of the run that printed it. Handlers run on the pump goroutine of
// that run. The returned function unregisters it.
func (s *Supervisor) OnLine(fn func(relay.Line)) (unsubscribe func()) {
	return s.lines.OnEvent(fn)
}

// Status reports whether a worker is tracked. It does not query the OS: a
// worker that exits on its own is reported as running until Stop is called.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == slotRunning {
		return StatusRunning
	}
	return StatusStopped
}

// Info returns display details for the tracked worker.
func (s *Supervisor) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot != slotRunning || s.proc == nil {
		return Info{Status: StatusStopped}
	}
	return Info{
		Status:    StatusRunning,
		PID:       s.proc.pid,
		Token:     s.proc.token,
		StartedAt: s.proc.startedAt,
	}
}

// Start launches the worker. It returns ErrAlreadyRunning if a worker is
// tracked or another Start is in flight, and a *SpawnError if the process
// could not be launched.
func (s *Supervisor) Start() error {
	log := slog.With("component", "worker")

	s.mu.Lock()
	if s.slot != slotEmpty {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.slot = slotStarting
	s.mu.Unlock()

	h, lines, err := s.spawn()
	if err != nil {
		s.mu.Lock()
		s.slot = slotEmpty
		s.mu.Unlock()
		log.Error("worker start failed", "error", err)
		return err
	}

	s.mu.Lock()
	s.proc = h
	s.slot = slotRunning
	s.mu.Unlock()

	go s.pump(h, lines)

	log.Info("worker started", "pid", h.pid, "run", id.Short(h.token))
	return nil
}

// Stop terminates the tracked worker. The handle is released before the
// process is signalled, so Status reports stopped as soon as Stop is called.
// The worker gets the configured timeout to exit after the termination
// signal and is then killed.
func (s *Supervisor) Stop() error {
	log := slog.With("component", "worker")

	s.mu.Lock()
	h := s.proc
	if s.slot != slotRunning || h == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.proc = nil
	s.slot = slotEmpty
	s.mu.Unlock()

	timeout := s.config.StopTimeout
	if timeout <= 0 {
		timeout = StopTimeout
	}

	if err := terminate(h.cmd.Process); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			log.Info("worker already exited", "pid", h.pid)
			return nil
		}
		log.Warn("terminate failed, killing", "pid", h.pid, "error", err)
		return kill(h)
	}

	select {
	case <-h.exited:
		log.Info("worker stopped", "pid", h.pid)
		return nil
	case <-time.After(timeout):
		log.Warn("worker did not exit, killing", "pid", h.pid, "timeout", timeout)
		return kill(h)
	}
}

func kill(h *handle) error {
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill worker %d: %w", h.pid, err)
	}
	return nil
}

// spawn builds and starts the worker and attaches a relay to its output.
func (s *Supervisor) spawn() (*handle, <-chan relay.Line, error) {
	cmd, err := s.command()
	if err != nil {
		return nil, nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, &SpawnError{Path: cmd.Path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return nil, nil, &SpawnError{Path: cmd.Path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, nil, &SpawnError{Path: cmd.Path, Err: err}
	}

	h := &handle{
		cmd:       cmd,
		token:     id.NewRunID(),
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		relay:     relay.New(),
		exited:    make(chan struct{}),
	}
	return h, h.relay.Start(stdout, stderr), nil
}

// command returns the unstarted worker command.
func (s *Supervisor) command() (*exec.Cmd, error) {
	var cmd *exec.Cmd
	if s.config.BuildCommand != nil {
		c, err := s.config.BuildCommand()
		if err != nil {
			return nil, &SpawnError{Path: s.config.Path, Err: fmt.Errorf("build command: %w", err)}
		}
		cmd = c
	} else {
		if s.config.Path == "" {
			return nil, &SpawnError{Err: errors.New("no worker executable configured")}
		}
		info, err := os.Stat(s.config.Path)
		if err != nil {
			return nil, &SpawnError{Path: s.config.Path, Err: err}
		}
		if info.IsDir() {
			return nil, &SpawnError{Path: s.config.Path, Err: errors.New("is a directory")}
		}
		cmd = exec.Command(s.config.Path)
	}

	if cmd.Dir == "" {
		cmd.Dir = s.config.WorkDir
		if cmd.Dir == "" && s.config.Path != "" {
			cmd.Dir = filepath.Dir(s.config.Path)
		}
	}

	if cmd.Env == nil {
		unbuffered := s.config.UnbufferedEnv
		if unbuffered == "" {
			unbuffered = DefaultUnbufferedEnv
		}
		cmd.Env = append(os.Environ(), unbuffered)
		cmd.Env = append(cmd.Env, s.config.Env...)
	}

	hideWindow(cmd)
	return cmd, nil
}

// emit delivers one line to the handlers. A panicking handler loses that
// line but must not stop the pump, or the worker would never be reaped.
func (s *Supervisor) emit(line relay.Line) {
	defer logging.LogPanic("worker-line-handler", nil)
	s.lines.Emit(line)
}

// pump emits relayed lines until both streams close, then reaps the process.
// It never touches the slot: a worker that exits on its own stays tracked
// until Stop.
func (s *Supervisor) pump(h *handle, lines <-chan relay.Line) {
	defer logging.LogPanic("worker-pump", nil)
	log := slog.With("component", "worker", "pid", h.pid)

	for line := range lines {
		line.Token = h.token
		s.emit(line)
	}

	// Wait closes the pipes, so it must only run once the readers are done.
	err := h.cmd.Wait()
	close(h.exited)
	log = log.With("lines", h.relay.Lines(), "dropped", h.relay.Dropped())
	if err != nil {
		log.Info("worker exited", "error", err)
	} else {
		log.Info("worker exited")
	}
}
