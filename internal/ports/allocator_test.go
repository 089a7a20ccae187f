package ports

import (
	"fmt"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reserve grabs a free port and keeps it held for the test's duration.
func reserve(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().(*net.TCPAddr).Port
}

func TestAllocate(t *testing.T) {
	t.Run("returns preferred port when free", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		free := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		port, err := Allocate(free, free+10)
		require.NoError(t, err)
		assert.Equal(t, free, port)
	})

	t.Run("skips an occupied port", func(t *testing.T) {
		taken := reserve(t)

		port, err := Allocate(taken, taken+10)
		require.NoError(t, err)
		assert.Greater(t, port, taken)
		assert.LessOrEqual(t, port, taken+10)
	})

	t.Run("exhausted range", func(t *testing.T) {
		taken := reserve(t)

		_, err := Allocate(taken, taken)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoFreePort)
	})

	t.Run("invalid range", func(t *testing.T) {
		_, err := Allocate(9300, 9222)
		assert.ErrorIs(t, err, ErrNoFreePort)

		_, err = Allocate(0, 100)
		assert.ErrorIs(t, err, ErrNoFreePort)
	})
}

func TestNewLease(t *testing.T) {
	taken := reserve(t)

	lease, err := NewLease(taken, taken+10)
	require.NoError(t, err)
	assert.Equal(t, taken, lease.Requested)
	assert.Equal(t, taken+10, lease.UpperBound)
	assert.GreaterOrEqual(t, lease.Bound, lease.Requested)
	assert.LessOrEqual(t, lease.Bound, lease.UpperBound)
	assert.NotEqual(t, taken, lease.Bound)
}

func TestLeaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "debug-port.json")
	want := Lease{Requested: 9222, Bound: 9224, UpperBound: 9300}

	require.NoError(t, WriteLease(path, want))

	got, err := ReadLease(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadLeaseMissing(t *testing.T) {
	_, err := ReadLease(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestIsFree(t *testing.T) {
	taken := reserve(t)
	assert.False(t, isFree(taken), fmt.Sprintf("port %d should be busy", taken))
}
