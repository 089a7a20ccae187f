// Package id provides task identifier generation.
//
// Task IDs use the wire format consumed by downstream services:
// "<unix-millis>-<5 random lowercase alphanumerics>", e.g.
// "1717430400000-k3x9q". The timestamp prefix keeps result directories
// roughly sorted by creation time.
package id

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TaskID identifies a browser-automation task and its result directory.
type TaskID string

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var taskIDPattern = regexp.MustCompile(`^\d{10,}-[a-z0-9]{5}$`)

// NewTaskID generates a new task ID.
func NewTaskID() TaskID {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the system is unusable anyway
		panic(fmt.Sprintf("id: entropy unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return TaskID(fmt.Sprintf("%d-%s", time.Now().UnixMilli(), buf))
}

// String returns the ID as a plain string.
func (t TaskID) String() string { return string(t) }

// IsValid reports whether s matches the task ID wire format.
func IsValid(s string) bool {
	return taskIDPattern.MatchString(s)
}

// Timestamp extracts the creation time encoded in a task ID.
func Timestamp(s string) (time.Time, error) {
	if !IsValid(s) {
		return time.Time{}, fmt.Errorf("invalid task id: %q", s)
	}
	millis, err := strconv.ParseInt(s[:len(s)-6], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid task id timestamp: %w", err)
	}
	return time.UnixMilli(millis), nil
}
