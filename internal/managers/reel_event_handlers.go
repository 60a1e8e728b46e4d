package managers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flowbaker/runreel/internal/metrics"
	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultLogFilePath = "logs/runreel-logs.jsonl"

// ReelLogHandler writes pipeline progress to the application log.
type ReelLogHandler struct{}

func NewReelLogHandler() *ReelLogHandler {
	return &ReelLogHandler{}
}

func (h *ReelLogHandler) HandleEvent(ctx context.Context, event domain.ReelEvent) error {
	var e *zerolog.Event

	switch event.Type {
	case domain.ReelEventTypeGifFailed:
		e = log.Error()
	case domain.ReelEventTypeFrameEncoded, domain.ReelEventTypeImageDownloadStart:
		e = log.Debug()
	default:
		e = log.Info()
	}

	e.Str("event_type", string(event.Type)).
		Str("flow_id", event.FlowID).
		Str("run_id", event.RunID)

	if len(event.Data) > 0 {
		e.Fields(event.Data)
	}

	e.Msg("[gif] " + event.Message)

	return nil
}

// ReelFileSink appends every event as one JSON line to a file.
type ReelFileSink struct {
	file   *os.File
	logger zerolog.Logger
}

func NewReelFileSink(path string) (*ReelFileSink, error) {
	if path == "" {
		path = DefaultLogFilePath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &ReelFileSink{
		file:   file,
		logger: zerolog.New(zerolog.SyncWriter(file)),
	}, nil
}

func (s *ReelFileSink) HandleEvent(ctx context.Context, event domain.ReelEvent) error {
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	data := event.Data
	if data == nil {
		data = map[string]any{}
	}

	s.logger.Log().
		Time("ts", timestamp).
		Str("segment", "gif").
		Str("type", string(event.Type)).
		Str("flowId", event.FlowID).
		Str("runId", event.RunID).
		Interface("data", data).
		Msg(event.Message)

	return nil
}

func (s *ReelFileSink) Close() error {
	return s.file.Close()
}

// ReelMetricsHandler turns pipeline events into prometheus samples.
type ReelMetricsHandler struct {
	metrics *metrics.Metrics
}

func NewReelMetricsHandler(m *metrics.Metrics) *ReelMetricsHandler {
	return &ReelMetricsHandler{metrics: m}
}

func (h *ReelMetricsHandler) HandleEvent(ctx context.Context, event domain.ReelEvent) error {
	m := h.metrics

	switch event.Type {
	case domain.ReelEventTypeImagesDownloaded:
		m.ImagesFetched.Add(numberValue(event.Data, "count"))
		h.observeStage("fetch", event.Data)

	case domain.ReelEventTypeImagesDeduped:
		dropped := numberValue(event.Data, "before") - numberValue(event.Data, "after")
		if dropped > 0 {
			m.ImagesDeduped.Add(dropped)
		}

	case domain.ReelEventTypeFrameEncoded:
		m.FramesEncoded.Inc()

	case domain.ReelEventTypeGifEncoded:
		h.observeStage("encode", event.Data)

	case domain.ReelEventTypeGifUploaded:
		m.GenerationsTotal.WithLabelValues("success").Inc()
		m.GifBytes.Observe(numberValue(event.Data, "bytes"))
		h.observeStage("total", event.Data)

	case domain.ReelEventTypeGifFailed:
		kind, _ := event.Data["kind"].(string)
		if kind == "" {
			kind = "unknown"
		}

		m.GenerationsTotal.WithLabelValues(kind).Inc()

	case domain.ReelEventTypeGifStatusChecked:
		status, _ := event.Data["status"].(string)

		m.StatusChecks.WithLabelValues(status).Inc()
	}

	return nil
}

func (h *ReelMetricsHandler) observeStage(stage string, data map[string]any) {
	if _, ok := data["duration_ms"]; !ok {
		return
	}

	h.metrics.StageDuration.WithLabelValues(stage).Observe(numberValue(data, "duration_ms") / 1000)
}

func numberValue(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
