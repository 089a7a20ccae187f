package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/browserbox/browserbox/internal/infrastructure/logging"
	"github.com/browserbox/browserbox/internal/infrastructure/monitoring"
)

// ErrMissingBinary is returned by Start when the program's executable
// cannot be found. Callers decide whether that is fatal or skippable.
var ErrMissingBinary = errors.New("binary not found")

const killTimeout = 10 * time.Second

// Supervisor launches and keeps child processes alive. Each child runs in
// its own process group so termination signals reach grandchildren too.
type Supervisor struct {
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.RWMutex
	children map[string]*child
	order    []string
	stopping bool

	events chan Event

	doneOnce sync.Once
	done     chan struct{}
	doneErr  error
}

type child struct {
	program Program

	mu        sync.Mutex
	state     State
	pid       int
	restarts  int
	startedAt time.Time
	lastErr   error
	cmd       *exec.Cmd
}

// New creates a supervisor.
func New(logger *logging.Logger) *Supervisor {
	return &Supervisor{
		logger:   logger.Component("supervisor"),
		children: make(map[string]*child),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
	}
}

// WithMetrics attaches a metrics collector.
func (s *Supervisor) WithMetrics(m *monitoring.Metrics) *Supervisor {
	s.metrics = m
	return s
}

// Events returns the state-transition feed. The channel is buffered and
// never blocks the supervisor; slow consumers miss events.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Done is closed when the unit's lifecycle ends: the foreground program
// exited, or a required program exhausted its restart budget.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Err reports why the unit ended. Nil means a clean foreground exit.
func (s *Supervisor) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doneErr
}

// Start launches a program and begins supervising it.
func (s *Supervisor) Start(ctx context.Context, p Program) error {
	if _, err := exec.LookPath(p.Command); err != nil {
		return fmt.Errorf("%s: %w", p.Command, ErrMissingBinary)
	}

	c := &child{program: p, state: StateStarting}

	s.mu.Lock()
	if _, exists := s.children[p.Name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("program %q already supervised", p.Name)
	}
	s.children[p.Name] = c
	s.order = append(s.order, p.Name)
	s.mu.Unlock()

	if err := s.launch(c); err != nil {
		s.transition(c, StateFailed, err)
		return err
	}

	go s.monitor(ctx, c)
	return nil
}

// launch spawns the child process in its own process group.
func (s *Supervisor) launch(c *child) error {
	p := c.program
	cmd := exec.Command(p.Command, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.Name, err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.pid = cmd.Process.Pid
	c.startedAt = time.Now()
	c.mu.Unlock()

	s.logger.Info("process started",
		zap.String("program", p.Name),
		zap.Int("pid", cmd.Process.Pid),
	)
	s.transition(c, StateStarting, nil)

	// Promote to Running once the grace period elapses with the process
	// still alive.
	if p.GracePeriod > 0 {
		startedAt := c.startedAt
		pid := c.pid
		go func() {
			time.Sleep(p.GracePeriod)
			c.mu.Lock()
			alive := c.pid == pid && c.startedAt.Equal(startedAt) && c.state == StateStarting
			c.mu.Unlock()
			if alive {
				s.transition(c, StateRunning, nil)
			}
		}()
	} else {
		s.transition(c, StateRunning, nil)
	}

	return nil
}

// monitor waits for the child to exit and applies the restart policy.
func (s *Supervisor) monitor(ctx context.Context, c *child) {
	p := c.program
	for {
		c.mu.Lock()
		cmd := c.cmd
		startedAt := c.startedAt
		c.mu.Unlock()

		err := cmd.Wait()
		uptime := time.Since(startedAt)

		s.mu.RLock()
		stopping := s.stopping
		s.mu.RUnlock()

		if stopping {
			s.transition(c, StateExited, err)
			return
		}

		if p.Foreground {
			s.logger.Info("foreground process exited",
				zap.String("program", p.Name),
				zap.Duration("uptime", uptime),
				zap.Error(err),
			)
			s.transition(c, StateExited, err)
			s.finish(err)
			return
		}

		c.mu.Lock()
		if uptime >= p.GracePeriod {
			// Surviving the grace period resets the fast-failure budget.
			c.restarts = 0
		}
		c.restarts++
		restarts := c.restarts
		c.lastErr = err
		c.mu.Unlock()

		if restarts > p.MaxRetries {
			s.logger.Error("restart budget exhausted",
				zap.String("program", p.Name),
				zap.Int("attempts", restarts-1),
				zap.Error(err),
			)
			s.transition(c, StateFailed, err)
			if p.Required {
				s.finish(fmt.Errorf("required program %s failed permanently: %w", p.Name, err))
			}
			return
		}

		s.logger.Warn("process exited, restarting",
			zap.String("program", p.Name),
			zap.Duration("uptime", uptime),
			zap.Int("attempt", restarts),
			zap.Int("max_retries", p.MaxRetries),
			zap.Error(err),
		)
		s.transition(c, StateBackingOff, err)
		if s.metrics != nil {
			s.metrics.RecordRestart(p.Name)
		}

		select {
		case <-ctx.Done():
			s.transition(c, StateExited, ctx.Err())
			return
		case <-time.After(p.Backoff):
		}

		s.mu.RLock()
		stopping = s.stopping
		s.mu.RUnlock()
		if stopping {
			s.transition(c, StateExited, nil)
			return
		}

		if err := s.launch(c); err != nil {
			s.transition(c, StateFailed, err)
			if p.Required {
				s.finish(fmt.Errorf("failed to restart required program %s: %w", p.Name, err))
			}
			return
		}
	}
}

// Stop forwards SIGTERM to every child process group and escalates to
// SIGKILL after the kill timeout. Safe to call more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	names := make([]string, len(s.order))
	copy(names, s.order)
	s.mu.Unlock()

	s.logger.Info("stopping all processes", zap.Int("count", len(names)))

	// Signal in reverse start order so dependents go first.
	for i := len(names) - 1; i >= 0; i-- {
		s.signal(names[i], syscall.SIGTERM)
	}

	deadline := time.After(killTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			for _, name := range names {
				s.signal(name, syscall.SIGKILL)
			}
			return
		case <-ticker.C:
			if !s.anyAlive() {
				return
			}
		}
	}
}

func (s *Supervisor) signal(name string, sig syscall.Signal) {
	s.mu.RLock()
	c := s.children[name]
	s.mu.RUnlock()
	if c == nil {
		return
	}

	c.mu.Lock()
	pid := c.pid
	running := c.state == StateStarting || c.state == StateRunning
	c.mu.Unlock()
	if !running || pid <= 0 {
		return
	}

	// Negative pid targets the whole process group.
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("failed to signal process group",
			zap.String("program", name),
			zap.Int("pid", pid),
			zap.String("signal", sig.String()),
			zap.Error(err),
		)
	}
}

func (s *Supervisor) anyAlive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.children {
		c.mu.Lock()
		alive := c.state == StateStarting || c.state == StateRunning
		c.mu.Unlock()
		if alive {
			return true
		}
	}
	return false
}

// Status returns a snapshot of every supervised program in start order.
func (s *Supervisor) Status() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]Status, 0, len(s.order))
	for _, name := range s.order {
		c := s.children[name]
		c.mu.Lock()
		st := Status{
			Name:      c.program.Name,
			State:     c.state.String(),
			PID:       c.pid,
			Restarts:  c.restarts,
			StartedAt: c.startedAt,
		}
		if c.lastErr != nil {
			st.LastError = c.lastErr.Error()
		}
		c.mu.Unlock()
		statuses = append(statuses, st)
	}
	return statuses
}

// transition records a state change and publishes it.
func (s *Supervisor) transition(c *child, state State, err error) {
	c.mu.Lock()
	c.state = state
	if err != nil {
		c.lastErr = err
	}
	pid := c.pid
	c.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetProcessState(c.program.Name, state.String())
		s.metrics.ProcessesUp.Set(s.runningCount())
	}

	ev := Event{Program: c.program.Name, State: state.String(), PID: pid, At: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	select {
	case s.events <- ev:
	default:
	}
}

func (s *Supervisor) runningCount() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n float64
	for _, c := range s.children {
		c.mu.Lock()
		if c.state == StateRunning {
			n++
		}
		c.mu.Unlock()
	}
	return n
}

// finish ends the unit's lifecycle exactly once.
func (s *Supervisor) finish(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.doneErr = err
		s.mu.Unlock()
		close(s.done)
	})
}
