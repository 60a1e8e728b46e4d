package reel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/rs/zerolog/log"
)

type GifStatus string

const (
	GifStatusPending   GifStatus = "pending"
	GifStatusCompleted GifStatus = "completed"
	GifStatusError     GifStatus = "error"
)

type GifParams struct {
	FlowID    string
	RunID     string
	AccountID string
}

type GifStatusData struct {
	Status GifStatus `json:"status"`
	URL    string    `json:"url,omitempty"`
	Error  string    `json:"error,omitempty"`
}

type GifStatusResult struct {
	Success bool           `json:"success"`
	Data    *GifStatusData `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type CreateGifResult struct {
	Success       bool   `json:"success"`
	GifURL        string `json:"gifUrl,omitempty"`
	PrivateGifURL string `json:"privateGifUrl,omitempty"`
	RunID         string `json:"runId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ReelService builds run timeline gifs and reports whether one is available.
type ReelService interface {
	GetGifStatus(ctx context.Context, params GifParams) GifStatusResult
	CreateGif(ctx context.Context, params GifParams) CreateGifResult
	HandleCreateGifTask(ctx context.Context, envelope domain.TaskEnvelope) ([]byte, error)
}

type reelService struct {
	store          domain.RunStore
	fetcher        domain.ImageFetcher
	publisher      domain.ArtifactPublisher
	taskPublisher  domain.TaskPublisher
	observer       domain.ReelEventNotifier
	encoderOptions EncoderOptions
	storageDomains StorageDomains
	now            func() time.Time
}

type ReelServiceDependencies struct {
	Store          domain.RunStore
	Fetcher        domain.ImageFetcher
	Publisher      domain.ArtifactPublisher
	TaskPublisher  domain.TaskPublisher
	Observer       domain.ReelEventNotifier
	EncoderOptions EncoderOptions
	StorageDomains StorageDomains
	Now            func() time.Time
}

func NewReelService(deps ReelServiceDependencies) ReelService {
	observer := deps.Observer
	if observer == nil {
		observer = NewReelObserver()
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &reelService{
		store:          deps.Store,
		fetcher:        deps.Fetcher,
		publisher:      deps.Publisher,
		taskPublisher:  deps.TaskPublisher,
		observer:       observer,
		encoderOptions: deps.EncoderOptions,
		storageDomains: deps.StorageDomains,
		now:            now,
	}
}

func (s *reelService) GetGifStatus(ctx context.Context, params GifParams) GifStatusResult {
	data, err := s.getGifStatus(ctx, params)
	if err != nil {
		log.Error().
			Err(err).
			Str("flow_id", params.FlowID).
			Str("run_id", params.RunID).
			Msg("Failed to get gif status")

		return GifStatusResult{Success: false, Error: err.Error()}
	}

	return GifStatusResult{Success: true, Data: &data}
}

func (s *reelService) getGifStatus(ctx context.Context, params GifParams) (GifStatusData, error) {
	runID, err := s.resolveRunID(ctx, params)
	if err != nil {
		return GifStatusData{}, err
	}

	run, err := s.getRun(ctx, runID, params)
	if err != nil {
		return GifStatusData{}, err
	}

	data := gifStatusFromRun(run)

	if data.Status == GifStatusCompleted && data.URL == "" {
		task := domain.CreateGifTask{
			FlowID:    params.FlowID,
			RunID:     runID,
			AccountID: params.AccountID,
		}

		if err := s.taskPublisher.EnqueueTask(ctx, task); err != nil {
			return GifStatusData{}, domain.NewReelError(domain.ErrorKindQueueFailure, "failed to enqueue gif creation", err)
		}

		s.notify(ctx, domain.ReelEventTypeGifCreationEnqueued, params.FlowID, runID, "Gif creation enqueued", nil)

		data = GifStatusData{Status: GifStatusPending}
	}

	s.notify(ctx, domain.ReelEventTypeGifStatusChecked, params.FlowID, runID, "Gif status checked", map[string]any{
		"status": string(data.Status),
	})

	return data, nil
}

// gifStatusFromRun maps the run state onto a gif status. A completed run without a recorded
// URL comes back as completed with an empty URL and needs a build.
func gifStatusFromRun(run domain.Run) GifStatusData {
	if run.HasFailed() {
		return GifStatusData{Status: GifStatusError, Error: run.Error}
	}

	if run.Status != domain.RunStatusCompleted {
		return GifStatusData{Status: GifStatusPending}
	}

	return GifStatusData{Status: GifStatusCompleted, URL: run.GifURL()}
}

func (s *reelService) CreateGif(ctx context.Context, params GifParams) CreateGifResult {
	startedAt := time.Now()

	s.notify(ctx, domain.ReelEventTypeGifStarted, params.FlowID, params.RunID, "Gif creation started", nil)

	artifact, err := s.createGif(ctx, params)
	if err != nil {
		data := map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
		}

		if kind, ok := domain.KindOf(err); ok {
			data["kind"] = string(kind)
		}

		s.notify(ctx, domain.ReelEventTypeGifFailed, params.FlowID, artifact.RunID, err.Error(), data)

		// URLs are only set once the upload went through.
		return CreateGifResult{
			Success:       false,
			GifURL:        artifact.PublicURL,
			PrivateGifURL: artifact.PrivateURL,
			RunID:         artifact.RunID,
			Error:         err.Error(),
		}
	}

	return CreateGifResult{
		Success:       true,
		GifURL:        artifact.PublicURL,
		PrivateGifURL: artifact.PrivateURL,
		RunID:         artifact.RunID,
	}
}

// createGif always returns an artifact carrying the resolved run id, even on failure.
func (s *reelService) createGif(ctx context.Context, params GifParams) (domain.Artifact, error) {
	startedAt := time.Now()

	runID, err := s.resolveRunID(ctx, params)
	if err != nil {
		return domain.Artifact{}, err
	}

	artifact := domain.Artifact{RunID: runID}

	if params.RunID != "" {
		if _, err := s.getRun(ctx, runID, params); err != nil {
			return artifact, err
		}
	}

	s.notify(ctx, domain.ReelEventTypeTargetRunSelected, params.FlowID, runID, "Target run selected", nil)

	records, err := s.store.ListMessageRecords(ctx, params.FlowID, runID)
	if err != nil {
		return artifact, domain.NewReelError(domain.ErrorKindStoreFailure, "failed to fetch message logs", err)
	}

	s.notify(ctx, domain.ReelEventTypeMessageLogsFetched, params.FlowID, runID, "Message logs fetched", map[string]any{
		"records": len(records),
	})

	urls := UniqueReferences(ScanImageReferences(records, s.storageDomains))

	s.notify(ctx, domain.ReelEventTypeImageURLsExtracted, params.FlowID, runID, "Image URLs extracted", map[string]any{
		"count": len(urls),
	})

	if len(urls) == 0 {
		return artifact, domain.ErrNoImagesFound
	}

	images, err := s.fetchImages(ctx, params.FlowID, runID, urls)
	if err != nil {
		return artifact, err
	}

	uniqueImages := DeduplicateImages(images)

	s.notify(ctx, domain.ReelEventTypeImagesDeduped, params.FlowID, runID, "Images deduplicated", map[string]any{
		"before": len(images),
		"after":  len(uniqueImages),
	})

	data, err := s.encode(ctx, params.FlowID, runID, uniqueImages)
	if err != nil {
		return artifact, err
	}

	artifact.Data = data

	result, err := s.publisher.Upload(ctx, domain.UploadParams{
		Name:        strconv.FormatInt(s.now().UnixMilli(), 10) + ".gif",
		File:        data,
		Folder:      fmt.Sprintf("runs/%s/gifs", runID),
		ContentType: domain.GifContentType,
	})
	if err != nil {
		return artifact, domain.NewReelError(domain.ErrorKindUploadFailure, domain.ErrUploadFailed.Message, err)
	}

	if result == nil {
		return artifact, domain.ErrUploadFailed
	}

	artifact.PublicURL = result.PublicURL
	artifact.PrivateURL = result.PrivateURL

	err = s.store.SaveRunGif(ctx, domain.SaveRunGifParams{
		RunID:      runID,
		PublicURL:  artifact.PublicURL,
		PrivateURL: artifact.PrivateURL,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("flow_id", params.FlowID).
			Str("run_id", runID).
			Str("gif_url", artifact.PublicURL).
			Str("private_gif_url", artifact.PrivateURL).
			Msg("Gif published but not recorded on the run")

		return artifact, domain.NewReelError(domain.ErrorKindStoreFailure, "failed to save gif url", err)
	}

	s.notify(ctx, domain.ReelEventTypeGifUploaded, params.FlowID, runID, "Gif uploaded", map[string]any{
		"url":         artifact.PublicURL,
		"private_url": artifact.PrivateURL,
		"bytes":       len(data),
		"duration_ms": time.Since(startedAt).Milliseconds(),
	})

	return artifact, nil
}

func (s *reelService) fetchImages(ctx context.Context, flowID, runID string, urls []string) ([]domain.FetchedImage, error) {
	startedAt := time.Now()

	s.notify(ctx, domain.ReelEventTypeImagesDownloading, flowID, runID, "Downloading images", map[string]any{
		"count": len(urls),
	})

	images, err := s.fetcher.FetchImages(ctx, urls, func(index, total int, url string) {
		s.notify(ctx, domain.ReelEventTypeImageDownloadStart, flowID, runID, "Downloading image", map[string]any{
			"index": index,
			"total": total,
			"url":   url,
		})
	})
	if err != nil {
		var reelErr *domain.ReelError
		if errors.As(err, &reelErr) {
			return nil, err
		}

		return nil, domain.NewReelError(domain.ErrorKindFetchFailure, "failed to download images", err)
	}

	s.notify(ctx, domain.ReelEventTypeImagesDownloaded, flowID, runID, "Images downloaded", map[string]any{
		"count":       len(images),
		"duration_ms": time.Since(startedAt).Milliseconds(),
	})

	return images, nil
}

func (s *reelService) encode(ctx context.Context, flowID, runID string, images []domain.FetchedImage) ([]byte, error) {
	startedAt := time.Now()
	encoder := NewAnimationEncoder(s.encoderOptions)

	s.notify(ctx, domain.ReelEventTypeEncodingStarted, flowID, runID, "Encoding gif", map[string]any{
		"frames": len(images),
		"width":  s.encoderOptions.Width,
		"height": s.encoderOptions.Height,
	})

	data, err := encoder.Encode(ctx, images, func(progress FrameProgress) {
		s.notify(ctx, domain.ReelEventTypeFrameEncoded, flowID, runID, "Frame encoded", map[string]any{
			"index":       progress.Index,
			"total":       progress.Total,
			"duration_ms": progress.FrameDuration.Milliseconds(),
			"eta_ms":      progress.ETA.Milliseconds(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, domain.ReelEventTypeGifEncoded, flowID, runID, "Gif encoded", map[string]any{
		"frames":      len(images),
		"bytes":       len(data),
		"duration_ms": time.Since(startedAt).Milliseconds(),
	})

	return data, nil
}

func (s *reelService) HandleCreateGifTask(ctx context.Context, envelope domain.TaskEnvelope) ([]byte, error) {
	var task domain.CreateGifTask

	if err := json.Unmarshal(envelope.Data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal create gif task: %w", err)
	}

	result := s.CreateGif(ctx, GifParams{
		FlowID:    task.FlowID,
		RunID:     task.RunID,
		AccountID: task.AccountID,
	})

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create gif result: %w", err)
	}

	if !result.Success {
		return payload, fmt.Errorf("failed to create gif for run %s: %s", task.RunID, result.Error)
	}

	return payload, nil
}

func (s *reelService) resolveRunID(ctx context.Context, params GifParams) (string, error) {
	if params.RunID != "" {
		return params.RunID, nil
	}

	runID, err := s.store.GetLatestRunID(ctx, params.FlowID, params.AccountID)
	if err != nil {
		return "", storeError(err, "failed to get latest run")
	}

	return runID, nil
}

func (s *reelService) getRun(ctx context.Context, runID string, params GifParams) (domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID, params.FlowID, params.AccountID)
	if err != nil {
		return domain.Run{}, storeError(err, "failed to get run")
	}

	return run, nil
}

// storeError passes typed errors from the store through and tags anything else as a store failure.
func storeError(err error, message string) error {
	var reelErr *domain.ReelError
	if errors.As(err, &reelErr) {
		return err
	}

	return domain.NewReelError(domain.ErrorKindStoreFailure, message, err)
}

func (s *reelService) notify(ctx context.Context, eventType domain.ReelEventType, flowID, runID, message string, data map[string]any) {
	s.observer.Notify(ctx, domain.ReelEvent{
		Type:    eventType,
		FlowID:  flowID,
		RunID:   runID,
		Message: message,
		Data:    data,
	})
}
