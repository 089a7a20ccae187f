package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no result exists for a task ID.
var ErrNotFound = errors.New("no result for task")

const (
	historyDir   = "agent_history"
	downloadsDir = "downloads"
)

// Step is one recorded automation step.
type Step struct {
	Number int    `json:"step_number"`
	Action string `json:"action"`
	Result string `json:"result,omitempty"`
	Status string `json:"status"`
}

// Result is the structured outcome of a finished task, the schema
// downstream services parse out of the per-task result file.
type Result struct {
	TaskID          string    `json:"task_id"`
	ArtifactID      string    `json:"artifact_id"`
	Text            string    `json:"final_result"`
	Success         bool      `json:"success"`
	DurationSeconds float64   `json:"duration_seconds"`
	TotalTokens     int       `json:"total_tokens,omitempty"`
	Steps           []Step    `json:"steps"`
	Errors          []string  `json:"errors,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Screenshot is one per-step image capture.
type Screenshot struct {
	Step int    `json:"step"`
	Path string `json:"local_path"`
}

// Store manages the per-task result layout under a well-known root:
// <root>/agent_history/<id>/<id>.json, <id>.gif and step_N.jpg captures,
// plus <root>/downloads for file transfers.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// EnsureLayout creates the well-known directories.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{
		s.root,
		filepath.Join(s.root, historyDir),
		filepath.Join(s.root, downloadsDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// TaskDir returns (and creates) the directory for a task.
func (s *Store) TaskDir(taskID string) (string, error) {
	dir := filepath.Join(s.root, historyDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create task dir: %w", err)
	}
	return dir, nil
}

// ResultPath returns the structured result file path for a task.
func (s *Store) ResultPath(taskID string) string {
	return filepath.Join(s.root, historyDir, taskID, taskID+".json")
}

// GIFPath returns the animated preview path for a task.
func (s *Store) GIFPath(taskID string) string {
	return filepath.Join(s.root, historyDir, taskID, taskID+".gif")
}

// WriteResult persists a task result. The artifact ID is assigned here so
// every written result is individually addressable.
func (s *Store) WriteResult(taskID string, result Result) error {
	dir, err := s.TaskDir(taskID)
	if err != nil {
		return err
	}
	result.TaskID = taskID
	if result.ArtifactID == "" {
		result.ArtifactID = uuid.NewString()
	}
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, taskID+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// ReadResult loads a task result.
func (s *Store) ReadResult(taskID string) (Result, error) {
	data, err := os.ReadFile(s.ResultPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%s: %w", taskID, ErrNotFound)
		}
		return Result{}, fmt.Errorf("failed to read result: %w", err)
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("failed to decode result: %w", err)
	}
	return result, nil
}

// HasResult reports whether a structured result exists for the task.
func (s *Store) HasResult(taskID string) bool {
	_, err := os.Stat(s.ResultPath(taskID))
	return err == nil
}

// HasGIF reports whether the animated preview exists for the task.
func (s *Store) HasGIF(taskID string) bool {
	_, err := os.Stat(s.GIFPath(taskID))
	return err == nil
}

// Screenshots lists the per-step captures for a task, sorted by step.
func (s *Store) Screenshots(taskID string) ([]Screenshot, error) {
	dir := filepath.Join(s.root, historyDir, taskID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to list task dir: %w", err)
	}

	var shots []Screenshot
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "step_") || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		step, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "step_"), ".jpg"))
		if err != nil {
			continue
		}
		shots = append(shots, Screenshot{Step: step, Path: filepath.Join(dir, name)})
	}
	sort.Slice(shots, func(i, j int) bool { return shots[i].Step < shots[j].Step })
	return shots, nil
}
