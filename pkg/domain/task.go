package domain

import (
	"context"
	"encoding/json"
)

// TaskHandler can handle both async tasks (returns error only) and sync tasks (returns data and error)
type TaskHandler func(context.Context, TaskEnvelope) ([]byte, error)

type TaskQueueListener interface {
	Listen(ctx context.Context, taskType TaskType, handler TaskHandler) error
}

type TaskPublisher interface {
	EnqueueTask(ctx context.Context, task Task) error
}

type Task interface {
	GetType() TaskType
}

// DedupableTask is implemented by tasks that can be collapsed when the same key is enqueued
// repeatedly within a short window.
type DedupableTask interface {
	Task
	DedupeKey() string
}

type TaskType string

var (
	CreateGif TaskType = "create-gif"
)

// TaskEnvelope is the queued form of a task.
type TaskEnvelope struct {
	ID         string          `json:"id"`
	Type       TaskType        `json:"type"`
	Data       json.RawMessage `json:"data"`
	EnqueuedAt int64           `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
}

type CreateGifTask struct {
	FlowID    string `json:"flowId"`
	RunID     string `json:"runId"`
	AccountID string `json:"accountId"`
}

func (t CreateGifTask) GetType() TaskType {
	return CreateGif
}

func (t CreateGifTask) DedupeKey() string {
	return t.FlowID + ":" + t.RunID + ":" + t.AccountID
}
