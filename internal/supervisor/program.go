package supervisor

import (
	"time"
)

// State is the lifecycle state of a supervised program.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateBackingOff
	StateExited
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateBackingOff:
		return "backing_off"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Program declares a long-running child process.
type Program struct {
	Name    string
	Command string
	Args    []string
	Env     []string // appended to the inherited environment
	Dir     string

	// Required programs ending up Failed terminate the whole unit.
	Required bool

	// Foreground marks the program whose exit ends the unit's lifecycle
	// (the reverse proxy). Foreground programs are never restarted.
	Foreground bool

	// MaxRetries bounds restarts after fast failures. A process that
	// outlives GracePeriod resets the budget.
	MaxRetries  int
	GracePeriod time.Duration
	Backoff     time.Duration
}

// Status is a point-in-time snapshot of a supervised program.
type Status struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	PID       int       `json:"pid,omitempty"`
	Restarts  int       `json:"restarts"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Event is emitted on every state transition.
type Event struct {
	Program string    `json:"program"`
	State   string    `json:"state"`
	PID     int       `json:"pid,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}
