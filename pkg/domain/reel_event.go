package domain

import (
	"context"
	"time"
)

type ReelEventType string

const (
	ReelEventTypeGifStarted          ReelEventType = "gif_started"
	ReelEventTypeTargetRunSelected   ReelEventType = "target_run_selected"
	ReelEventTypeMessageLogsFetched  ReelEventType = "message_logs_fetched"
	ReelEventTypeImageURLsExtracted  ReelEventType = "image_urls_extracted"
	ReelEventTypeImagesDownloading   ReelEventType = "images_downloading"
	ReelEventTypeImageDownloadStart  ReelEventType = "image_download_started"
	ReelEventTypeImagesDownloaded    ReelEventType = "images_downloaded"
	ReelEventTypeImagesDeduped       ReelEventType = "images_deduped"
	ReelEventTypeEncodingStarted     ReelEventType = "encoding_started"
	ReelEventTypeFrameEncoded        ReelEventType = "frame_encoded"
	ReelEventTypeGifEncoded          ReelEventType = "gif_encoded"
	ReelEventTypeGifUploaded         ReelEventType = "gif_uploaded"
	ReelEventTypeGifFailed           ReelEventType = "gif_failed"
	ReelEventTypeGifStatusChecked    ReelEventType = "gif_status_checked"
	ReelEventTypeGifCreationEnqueued ReelEventType = "gif_creation_enqueued"
)

// ReelEvent is one telemetry point emitted while a run gif is built or its status checked.
type ReelEvent struct {
	Type      ReelEventType
	FlowID    string
	RunID     string
	Message   string
	Data      map[string]any
	Timestamp time.Time
}

func (e ReelEvent) GetEventType() ReelEventType {
	return e.Type
}

type ReelEventHandler interface {
	HandleEvent(ctx context.Context, event ReelEvent) error
}

// ReelEventHandlerFunc adapts a function to ReelEventHandler.
type ReelEventHandlerFunc func(ctx context.Context, event ReelEvent) error

func (f ReelEventHandlerFunc) HandleEvent(ctx context.Context, event ReelEvent) error {
	return f(ctx, event)
}

type ReelEventNotifier interface {
	Subscribe(handler ReelEventHandler)
	Notify(ctx context.Context, event ReelEvent)
}
