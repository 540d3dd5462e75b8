package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypePollFeed          TaskType = "poll_feed"
	TaskTypeSubscribe         TaskType = "subscribe"
	TaskTypeImportOPML        TaskType = "import_opml"
	TaskTypeSyncSubscriptions TaskType = "sync_subscriptions"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetTarget() string
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID        string
	Type      TaskType
	Target    string
	StartedAt *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

// GetTarget names what the task operates on: a feed id, a URL or a directory.
func (t *Task) GetTarget() string {
	return t.Target
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, target string) Task {
	return Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		Target: target,
	}
}

// Run starts the task clock, executes the task and logs a failure.
func Run(ctx context.Context, task TaskInterface) error {
	task.Start()

	err := task.Execute(ctx)
	if err != nil {
		slog.Warn("Task failed",
			"type", string(task.GetType()),
			"id", task.GetID(),
			"target", task.GetTarget(),
			"duration", task.GetDuration(),
			"error", err)
	}

	return err
}
