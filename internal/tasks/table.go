// ABOUTME: Registry of background shell tasks and their termination
// ABOUTME: Tracks pid, command, and project ownership; kills via SIGTERM

package tasks

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"syscall"
	"time"
)

// ErrDuplicateTask is returned when registering a task id twice.
var ErrDuplicateTask = errors.New("task already registered")

// Info describes one background shell task.
type Info struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	PID         int       `json:"pid"`
	Command     string    `json:"command"`
	Description string    `json:"description,omitempty"`
	OutputFile  string    `json:"output_file,omitempty"`
	StartTime   time.Time `json:"start_time"`
}

// KillOutcome is the result of terminating one task.
type KillOutcome struct {
	Success bool
	Message string
	PID     int
}

// Table is the in-process registry of background shell tasks. Plain
// process-group supervision (SIGKILL escalation, exit polling) lives with
// the shell runner that spawns these tasks, not here; the table only needs
// enough to locate a task and send it a termination signal.
type Table struct {
	mu     sync.RWMutex
	tasks  map[string]*Info
	logger *slog.Logger

	// signal is swappable for tests.
	signal func(pid int, sig syscall.Signal) error
}

// NewTable creates an empty task table.
func NewTable(logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		tasks:  make(map[string]*Info),
		logger: logger.With("component", "tasks"),
		signal: syscall.Kill,
	}
}

// Register adds a running background task to the table.
func (t *Table) Register(info *Info) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tasks[info.ID]; exists {
		return ErrDuplicateTask
	}

	copied := *info
	if copied.StartTime.IsZero() {
		copied.StartTime = time.Now()
	}
	t.tasks[info.ID] = &copied

	t.logger.Debug("background task registered",
		"task_id", copied.ID,
		"pid", copied.PID,
		"project", copied.ProjectID,
	)
	return nil
}

// Remove drops a task from the table, typically after it exits on its own.
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasks, id)
}

// Info returns the task with the given id.
func (t *Table) Info(id string) (*Info, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, ok := t.tasks[id]
	if !ok {
		return nil, false
	}
	copied := *info
	return &copied, true
}

// All returns every registered task, sorted by id.
func (t *Table) All() []*Info {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Info, 0, len(t.tasks))
	for _, info := range t.tasks {
		copied := *info
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Kill sends SIGTERM to the task's process and removes it from the table.
// A process that is already gone counts as success: the goal is a dead
// task, and it is dead.
func (t *Table) Kill(id string) KillOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.tasks[id]
	if !ok {
		return KillOutcome{Success: false, Message: "task not found"}
	}

	delete(t.tasks, id)

	err := t.signal(info.PID, syscall.SIGTERM)
	switch {
	case err == nil:
		t.logger.Info("background task terminated", "task_id", id, "pid", info.PID)
		return KillOutcome{Success: true, Message: "terminated", PID: info.PID}
	case errors.Is(err, syscall.ESRCH):
		t.logger.Info("background task already exited", "task_id", id, "pid", info.PID)
		return KillOutcome{Success: true, Message: "process already exited", PID: info.PID}
	default:
		t.logger.Error("failed to signal background task",
			"task_id", id,
			"pid", info.PID,
			"error", err,
		)
		return KillOutcome{Success: false, Message: "signal failed: " + err.Error(), PID: info.PID}
	}
}
