package domain

import (
	"context"
	"time"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
)

const (
	PrivateDataGifURLKey        = "gifUrl"
	PrivateDataPrivateGifURLKey = "privateGifUrl"
)

// Run is a single execution of a flow, owned by the tasks database.
type Run struct {
	ID          string
	FlowID      string
	AccountID   string
	Status      RunStatus
	Error       string
	PrivateData map[string]any
	CreatedAt   time.Time
}

// GifURL returns the published gif URL recorded on the run, if any.
func (r Run) GifURL() string {
	if r.PrivateData == nil {
		return ""
	}

	url, ok := r.PrivateData[PrivateDataGifURLKey].(string)
	if !ok {
		return ""
	}

	return url
}

func (r Run) IsFinished() bool {
	return r.Status == RunStatusCompleted || r.HasFailed()
}

func (r Run) HasFailed() bool {
	return r.Status == RunStatusError || r.Error != ""
}

type RunRef struct {
	FlowID    string `json:"flowId"`
	RunID     string `json:"runId"`
	AccountID string `json:"accountId"`
}

type SaveRunGifParams struct {
	RunID      string
	PublicURL  string
	PrivateURL string
}

type ListRunsMissingGifParams struct {
	CompletedAfter time.Time
	Limit          int
}

// RunStore is the read/write surface of the tasks database used by the gif pipeline.
type RunStore interface {
	GetLatestRunID(ctx context.Context, flowID, accountID string) (string, error)
	GetRun(ctx context.Context, runID, flowID, accountID string) (Run, error)
	ListMessageRecords(ctx context.Context, flowID, runID string) ([]MessageRecord, error)
	SaveRunGif(ctx context.Context, params SaveRunGifParams) error
	ListRunsMissingGif(ctx context.Context, params ListRunsMissingGifParams) ([]RunRef, error)
}
