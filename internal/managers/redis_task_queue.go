package managers

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/flowbaker/runreel/internal/metrics"
	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultQueueKeyPrefix   = "runreel"
	DefaultQueuePollTimeout = 5 * time.Second
	DefaultMaxFailedTasks   = 1000

	listenRetryDelay = time.Second
)

type RedisClientConfig struct {
	URL string
	// TLS forces TLS for redis:// urls. rediss:// urls always use TLS.
	TLS bool
}

func NewRedisClient(ctx context.Context, config RedisClientConfig) (*redis.Client, error) {
	options, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	if config.TLS && options.TLSConfig == nil {
		host, _, _ := net.SplitHostPort(options.Addr)

		options.TLSConfig = &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisTaskQueue is a list based task queue. Producers push onto a waiting list and consumers
// atomically move each task to an active list while it runs, so tasks of a crashed worker can be
// recovered. Delivery is at least once.
type RedisTaskQueue struct {
	client       redis.UniversalClient
	keyPrefix    string
	dedupeWindow time.Duration
	pollTimeout  time.Duration
	concurrency  int
	maxFailed    int64
	metrics      *metrics.Metrics
}

type RedisTaskQueueDependencies struct {
	Client    redis.UniversalClient
	KeyPrefix string
	// DedupeWindow collapses repeated enqueues of a DedupableTask. Zero disables it.
	DedupeWindow time.Duration
	PollTimeout  time.Duration
	Concurrency  int
	MaxFailed    int64
	Metrics      *metrics.Metrics
}

type failedTask struct {
	Task     *domain.TaskEnvelope `json:"task,omitempty"`
	Payload  string               `json:"payload,omitempty"`
	Error    string               `json:"error"`
	FailedAt int64                `json:"failed_at"`
}

type QueueStats struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Failed  int64 `json:"failed"`
}

func NewRedisTaskQueue(deps RedisTaskQueueDependencies) *RedisTaskQueue {
	keyPrefix := deps.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultQueueKeyPrefix
	}

	pollTimeout := deps.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultQueuePollTimeout
	}

	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	maxFailed := deps.MaxFailed
	if maxFailed <= 0 {
		maxFailed = DefaultMaxFailedTasks
	}

	return &RedisTaskQueue{
		client:       deps.Client,
		keyPrefix:    keyPrefix,
		dedupeWindow: deps.DedupeWindow,
		pollTimeout:  pollTimeout,
		concurrency:  concurrency,
		maxFailed:    maxFailed,
		metrics:      deps.Metrics,
	}
}

func (q *RedisTaskQueue) waitingKey(taskType domain.TaskType) string {
	return fmt.Sprintf("%s:tasks:%s:waiting", q.keyPrefix, taskType)
}

func (q *RedisTaskQueue) activeKey(taskType domain.TaskType) string {
	return fmt.Sprintf("%s:tasks:%s:active", q.keyPrefix, taskType)
}

func (q *RedisTaskQueue) failedKey(taskType domain.TaskType) string {
	return fmt.Sprintf("%s:tasks:%s:failed", q.keyPrefix, taskType)
}

func (q *RedisTaskQueue) dedupeKey(taskType domain.TaskType, key string) string {
	return fmt.Sprintf("%s:dedupe:%s:%s", q.keyPrefix, taskType, key)
}

func (q *RedisTaskQueue) EnqueueTask(ctx context.Context, task domain.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	taskType := task.GetType()
	taskID := xid.New().String()

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	payload, err := json.Marshal(domain.TaskEnvelope{
		ID:         taskID,
		Type:       taskType,
		Data:       data,
		EnqueuedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal task envelope: %w", err)
	}

	dedupeKey := ""

	if dedupable, ok := task.(domain.DedupableTask); ok && q.dedupeWindow > 0 {
		dedupeKey = q.dedupeKey(taskType, dedupable.DedupeKey())

		acquired, err := q.client.SetNX(ctx, dedupeKey, taskID, q.dedupeWindow).Result()
		if err != nil {
			q.countEnqueue(taskType, "error")
			return fmt.Errorf("failed to check task dedupe key: %w", err)
		}

		if !acquired {
			log.Debug().
				Str("task_type", string(taskType)).
				Str("dedupe_key", dedupable.DedupeKey()).
				Msg("Task collapsed into a recent enqueue")

			q.countEnqueue(taskType, "collapsed")

			return nil
		}
	}

	if err := q.client.LPush(ctx, q.waitingKey(taskType), payload).Err(); err != nil {
		q.countEnqueue(taskType, "error")

		// The claim must not outlive a push that never happened.
		if dedupeKey != "" {
			if delErr := q.client.Del(context.WithoutCancel(ctx), dedupeKey).Err(); delErr != nil {
				log.Error().Err(delErr).Str("dedupe_key", dedupeKey).Msg("Failed to release task dedupe key")
			}
		}

		return fmt.Errorf("task enqueue failed: %w", err)
	}

	q.countEnqueue(taskType, "enqueued")

	log.Debug().
		Str("task_id", taskID).
		Str("task_type", string(taskType)).
		Msg("Task enqueued")

	return nil
}

// Listen consumes tasks of taskType until ctx is cancelled. Tasks left active by a previous
// worker are requeued first.
func (q *RedisTaskQueue) Listen(ctx context.Context, taskType domain.TaskType, handler domain.TaskHandler) error {
	requeued, err := q.RequeueStalled(ctx, taskType)
	if err != nil {
		return err
	}

	if requeued > 0 {
		log.Warn().
			Int("count", requeued).
			Str("task_type", string(taskType)).
			Msg("Requeued stalled tasks")
	}

	log.Info().
		Str("task_type", string(taskType)).
		Int("concurrency", q.concurrency).
		Msg("Listening for tasks")

	var wg sync.WaitGroup

	for i := 0; i < q.concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			q.consume(ctx, taskType, handler)
		}()
	}

	wg.Wait()

	return nil
}

func (q *RedisTaskQueue) consume(ctx context.Context, taskType domain.TaskType, handler domain.TaskHandler) {
	waitingKey := q.waitingKey(taskType)
	activeKey := q.activeKey(taskType)

	for ctx.Err() == nil {
		payload, err := q.client.BLMove(ctx, waitingKey, activeKey, "RIGHT", "LEFT", q.pollTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			log.Error().Err(err).Str("task_type", string(taskType)).Msg("Failed to receive task")

			select {
			case <-ctx.Done():
				return
			case <-time.After(listenRetryDelay):
			}

			continue
		}

		q.process(ctx, taskType, payload, handler)
	}
}

func (q *RedisTaskQueue) process(ctx context.Context, taskType domain.TaskType, payload string, handler domain.TaskHandler) {
	bookkeepingCtx := context.WithoutCancel(ctx)

	var envelope domain.TaskEnvelope

	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		log.Error().Err(err).Str("task_type", string(taskType)).Msg("Dropping malformed task")

		q.fail(bookkeepingCtx, taskType, payload, failedTask{Payload: payload, Error: err.Error()})
		q.countProcessed(taskType, "malformed")

		return
	}

	startedAt := time.Now()

	_, err := handler(ctx, envelope)
	if err != nil && ctx.Err() != nil {
		// Left in the active list for the next worker start.
		log.Warn().
			Err(err).
			Str("task_id", envelope.ID).
			Msg("Task interrupted by shutdown")

		return
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("task_id", envelope.ID).
			Str("task_type", string(taskType)).
			Dur("duration", time.Since(startedAt)).
			Msg("Task failed")

		envelope.Attempts++

		q.fail(bookkeepingCtx, taskType, payload, failedTask{Task: &envelope, Error: err.Error()})
		q.countProcessed(taskType, "failed")

		return
	}

	if err := q.client.LRem(bookkeepingCtx, q.activeKey(taskType), 1, payload).Err(); err != nil {
		log.Error().Err(err).Str("task_id", envelope.ID).Msg("Failed to acknowledge task")
	}

	q.countProcessed(taskType, "success")

	log.Info().
		Str("task_id", envelope.ID).
		Str("task_type", string(taskType)).
		Dur("duration", time.Since(startedAt)).
		Msg("Task completed")
}

func (q *RedisTaskQueue) fail(ctx context.Context, taskType domain.TaskType, payload string, failed failedTask) {
	failed.FailedAt = time.Now().UnixMilli()

	record, err := json.Marshal(failed)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal failed task")
		return
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.activeKey(taskType), 1, payload)
		pipe.LPush(ctx, q.failedKey(taskType), record)
		pipe.LTrim(ctx, q.failedKey(taskType), 0, q.maxFailed-1)

		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("task_type", string(taskType)).Msg("Failed to record failed task")
	}
}

// RequeueStalled moves every active task back to the consuming end of the waiting list, oldest
// last so it is picked up first.
func (q *RedisTaskQueue) RequeueStalled(ctx context.Context, taskType domain.TaskType) (int, error) {
	count := 0

	for {
		err := q.client.LMove(ctx, q.activeKey(taskType), q.waitingKey(taskType), "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return count, nil
		}

		if err != nil {
			return count, fmt.Errorf("failed to requeue stalled tasks: %w", err)
		}

		count++
	}
}

func (q *RedisTaskQueue) Stats(ctx context.Context, taskType domain.TaskType) (QueueStats, error) {
	var waiting, active, failed *redis.IntCmd

	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		waiting = pipe.LLen(ctx, q.waitingKey(taskType))
		active = pipe.LLen(ctx, q.activeKey(taskType))
		failed = pipe.LLen(ctx, q.failedKey(taskType))

		return nil
	})
	if err != nil {
		return QueueStats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return QueueStats{
		Waiting: waiting.Val(),
		Active:  active.Val(),
		Failed:  failed.Val(),
	}, nil
}

func (q *RedisTaskQueue) countEnqueue(taskType domain.TaskType, result string) {
	if q.metrics == nil {
		return
	}

	q.metrics.TasksEnqueued.WithLabelValues(string(taskType), result).Inc()
}

func (q *RedisTaskQueue) countProcessed(taskType domain.TaskType, result string) {
	if q.metrics == nil {
		return
	}

	q.metrics.TasksProcessed.WithLabelValues(string(taskType), result).Inc()
}
