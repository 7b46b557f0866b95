// Package backend starts and supervises the backend worker process.
package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/land007/theia/internal/config"
	"github.com/land007/theia/internal/logging"
	"github.com/land007/theia/internal/monitoring"
	ps "github.com/mitchellh/go-ps"
	"go.uber.org/zap"
)

// Endpoint is the connection endpoint the backend reports once ready. It is
// also the wire shape of the readiness message: one JSON line on stdout.
type Endpoint struct {
	Port int `json:"port"`
}

// State describes the backend process lifecycle.
type State int

const (
	StateStarting State = iota
	StateReady
	StateFailed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// RunFunc is the backend entry point for direct-invocation (development)
// mode. It blocks until the backend is listening and returns its endpoint.
type RunFunc func(ctx context.Context) (Endpoint, error)

// Supervisor owns the single backend process of an application run. Start
// performs the readiness handshake exactly once; Stop kills a forked child
// and is safe to call multiple times.
type Supervisor struct {
	cfg     config.BackendConfig
	run     RunFunc
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	state  State
	cmd    *exec.Cmd
	killed bool
}

// NewSupervisor creates a supervisor. When run is non-nil the backend is
// invoked in-process regardless of cfg.Mode; otherwise cfg.Command is forked
// as a child process inheriting the current environment.
func NewSupervisor(cfg config.BackendConfig, run RunFunc, log *logging.Logger) *Supervisor {
	return &Supervisor{
		cfg:   cfg,
		run:   run,
		log:   log,
		state: StateStarting,
	}
}

// WithMetrics adds metrics tracking to the supervisor.
func (s *Supervisor) WithMetrics(metrics *monitoring.Metrics) *Supervisor {
	s.metrics = metrics
	return s
}

// State returns the current backend state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the backend and waits for its readiness handshake. The wait
// is bounded by cfg.HandshakeTimeout; expiry, a spawn error, or a crash
// before the handshake are all fatal for this run — there is no retry.
func (s *Supervisor) Start(ctx context.Context) (Endpoint, error) {
	if s.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
		defer cancel()
	}

	if s.run != nil || s.cfg.Mode == "direct" {
		return s.startDirect(ctx)
	}
	return s.startChild(ctx)
}

func (s *Supervisor) startDirect(ctx context.Context) (Endpoint, error) {
	if s.run == nil {
		return Endpoint{}, s.fail(errors.New("direct mode requires a backend entry point"))
	}

	type result struct {
		ep  Endpoint
		err error
	}
	done := make(chan result, 1)
	go func() {
		ep, err := s.run(ctx)
		done <- result{ep, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Endpoint{}, s.fail(fmt.Errorf("backend start: %w", r.err))
		}
		return s.ready(r.ep), nil
	case <-ctx.Done():
		return Endpoint{}, s.fail(fmt.Errorf("backend handshake: %w", ctx.Err()))
	}
}

func (s *Supervisor) startChild(ctx context.Context) (Endpoint, error) {
	if s.cfg.Command == "" {
		return Endpoint{}, s.fail(errors.New("child mode requires a backend command"))
	}

	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Endpoint{}, s.fail(fmt.Errorf("stdout pipe: %w", err))
	}
	if err := cmd.Start(); err != nil {
		return Endpoint{}, s.fail(fmt.Errorf("failed to spawn backend: %w", err))
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()
	s.log.Info("backend spawned", zap.Int("pid", cmd.Process.Pid))

	ready := make(chan Endpoint, 1)
	exited := make(chan error, 1)
	go func() {
		signaled := false
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if signaled || line == "" {
				// The handshake is one-shot; later output is ignored.
				continue
			}
			var ep Endpoint
			if err := json.Unmarshal([]byte(line), &ep); err != nil || ep.Port == 0 {
				continue
			}
			signaled = true
			ready <- ep
		}
		err := cmd.Wait()
		if !signaled {
			if err != nil {
				exited <- fmt.Errorf("backend exited before readiness: %w", err)
			} else {
				exited <- errors.New("backend exited before signaling readiness")
			}
		}
	}()

	select {
	case ep := <-ready:
		return s.ready(ep), nil
	case err := <-exited:
		return Endpoint{}, s.fail(err)
	case <-ctx.Done():
		// The child spawned but never signaled; reap it without the
		// Terminated transition, which is reserved for application quit.
		s.killChild()
		return Endpoint{}, s.fail(fmt.Errorf("backend handshake: %w", ctx.Err()))
	}
}

// Stop kills the backend child process on application quit. Forked children
// are not reclaimed by the OS when the parent exits, so the kill is explicit;
// there is no graceful shutdown handshake. Stop is idempotent and a no-op in
// direct mode.
func (s *Supervisor) Stop() {
	s.killChild()
	s.mu.Lock()
	s.transitionLocked(StateTerminated)
	s.mu.Unlock()
}

// killChild kills the spawned process if it is still around. No state
// transition happens here; callers decide whether this is a quit or a
// failed startup.
func (s *Supervisor) killChild() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.killed || s.cmd == nil || s.cmd.Process == nil {
		return
	}
	s.killed = true

	pid := s.cmd.Process.Pid
	if proc, err := ps.FindProcess(pid); err == nil && proc == nil {
		// Already gone, nothing to kill.
		return
	}

	if err := s.cmd.Process.Kill(); err != nil {
		s.log.Warn("backend kill failed", zap.Int("pid", pid), zap.Error(err))
	} else {
		s.log.Info("backend terminated", zap.Int("pid", pid))
	}
}

func (s *Supervisor) ready(ep Endpoint) Endpoint {
	s.mu.Lock()
	s.transitionLocked(StateReady)
	s.mu.Unlock()
	s.log.Info("backend ready", zap.Int("port", ep.Port))
	return ep
}

func (s *Supervisor) fail(err error) error {
	s.mu.Lock()
	s.transitionLocked(StateFailed)
	s.mu.Unlock()
	s.log.Error("backend failed to start", zap.Error(err))
	return err
}

func (s *Supervisor) transitionLocked(to State) {
	if s.state == to {
		return
	}
	s.state = to
	if s.metrics != nil {
		s.metrics.BackendTransitions.WithLabelValues(to.String()).Inc()
	}
}
