package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// ErrNoFreePort is returned when every port in the requested range is taken.
// Startup must treat this as fatal: without a stable debug endpoint the
// routing layer's /debug/ mapping cannot be guaranteed.
var ErrNoFreePort = errors.New("no free port in range")

// Lease records the outcome of a port allocation. Bound is always within
// [Requested, UpperBound].
type Lease struct {
	Requested  int `json:"requested_port"`
	Bound      int `json:"bound_port"`
	UpperBound int `json:"upper_bound"`
}

// Allocate probes TCP ports sequentially starting at preferred and returns
// the first one nothing is listening on, up to upperBound inclusive.
//
// The probe is a bind-and-release; a race exists between the probe and the
// eventual bind by the launched process. Acceptable in a single-tenant
// container.
func Allocate(preferred, upperBound int) (int, error) {
	if preferred <= 0 || upperBound < preferred {
		return 0, fmt.Errorf("invalid port range [%d, %d]: %w", preferred, upperBound, ErrNoFreePort)
	}
	for port := preferred; port <= upperBound; port++ {
		if isFree(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("ports %d-%d all taken: %w", preferred, upperBound, ErrNoFreePort)
}

// NewLease allocates a port and wraps it in a Lease.
func NewLease(preferred, upperBound int) (Lease, error) {
	bound, err := Allocate(preferred, upperBound)
	if err != nil {
		return Lease{}, err
	}
	return Lease{Requested: preferred, Bound: bound, UpperBound: upperBound}, nil
}

// WriteLease exports a lease as JSON at path for downstream consumers
// (the health probe and the proxy config renderer).
func WriteLease(path string, lease Lease) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create lease dir: %w", err)
	}
	data, err := json.Marshal(lease)
	if err != nil {
		return fmt.Errorf("failed to encode lease: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write lease: %w", err)
	}
	return nil
}

// ReadLease loads a previously exported lease.
func ReadLease(path string) (Lease, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lease{}, fmt.Errorf("failed to read lease: %w", err)
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return Lease{}, fmt.Errorf("failed to decode lease: %w", err)
	}
	return lease, nil
}

func isFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
