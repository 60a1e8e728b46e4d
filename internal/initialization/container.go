package initialization

import (
	"context"
	"fmt"

	"github.com/flowbaker/runreel/internal/config"
	"github.com/flowbaker/runreel/internal/controllers"
	"github.com/flowbaker/runreel/internal/managers"
	"github.com/flowbaker/runreel/internal/metrics"
	"github.com/flowbaker/runreel/pkg/domain"
	"github.com/flowbaker/runreel/pkg/domain/reel"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Container owns the long lived clients and the services built on them.
type Container struct {
	config   *config.Config
	metrics  *metrics.Metrics
	pool     *pgxpool.Pool
	redis    *redis.Client
	fileSink *managers.ReelFileSink

	store       domain.RunStore
	queue       *managers.RedisTaskQueue
	reelService reel.ReelService
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(config.RequireDatabase, config.RequireRedis, config.RequireStorage); err != nil {
		return nil, err
	}

	log.Info().Msg("Building runreel dependencies")

	c := &Container{
		config:  cfg,
		metrics: metrics.New(),
	}

	pool, err := managers.NewPostgresPool(ctx, managers.PostgresPoolConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, err
	}

	c.pool = pool

	redisClient, err := managers.NewRedisClient(ctx, managers.RedisClientConfig{
		URL: cfg.Redis.URL,
		TLS: cfg.Redis.TLS,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	c.redis = redisClient

	s3Client, err := managers.NewS3Client(managers.S3ClientConfig{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		ForcePathStyle:  cfg.S3.ForcePathStyle,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	observer := reel.NewReelObserver()
	observer.Subscribe(managers.NewReelLogHandler())
	observer.Subscribe(managers.NewReelMetricsHandler(c.metrics))

	if cfg.LogToFile {
		fileSink, err := managers.NewReelFileSink(cfg.LogFilePath)
		if err != nil {
			c.Close()
			return nil, err
		}

		c.fileSink = fileSink
		observer.Subscribe(fileSink)
	}

	c.store = managers.NewPostgresRunStore(managers.PostgresRunStoreDependencies{
		DB:     pool,
		Schema: cfg.Database.Schema,
	})

	c.queue = managers.NewRedisTaskQueue(managers.RedisTaskQueueDependencies{
		Client:       redisClient,
		KeyPrefix:    cfg.Queue.KeyPrefix,
		DedupeWindow: cfg.Queue.DedupeWindow,
		PollTimeout:  cfg.Queue.PollTimeout,
		Concurrency:  cfg.Worker.Concurrency,
		Metrics:      c.metrics,
	})

	width, height := reel.CanvasSize(cfg.Gif.BrowserWidth, cfg.Gif.BrowserHeight, cfg.Gif.Scale)

	c.reelService = reel.NewReelService(reel.ReelServiceDependencies{
		Store: c.store,
		Fetcher: managers.NewHTTPImageFetcher(managers.HTTPImageFetcherDependencies{
			Timeout:       cfg.Fetch.Timeout,
			Concurrency:   cfg.Fetch.Concurrency,
			MaxImageBytes: cfg.Fetch.MaxImageBytes,
		}),
		Publisher: managers.NewS3ArtifactPublisher(managers.S3ArtifactPublisherDependencies{
			Client:         s3Client,
			Bucket:         cfg.S3.Bucket,
			PublicDomain:   cfg.S3.PublicDomain,
			PrivateDomain:  cfg.S3.PrivateDomain,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		}),
		TaskPublisher: c.queue,
		Observer:      observer,
		EncoderOptions: reel.EncoderOptions{
			Width:      width,
			Height:     height,
			FrameDelay: cfg.Gif.FrameDelay,
			Quality:    cfg.Gif.Quality,
		},
		StorageDomains: reel.StorageDomains{
			Public:  cfg.S3.PublicDomain,
			Private: cfg.S3.PrivateDomain,
		},
	})

	log.Info().
		Int("width", width).
		Int("height", height).
		Str("schema", cfg.Database.Schema).
		Msg("Runreel dependencies ready")

	return c, nil
}

func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

func (c *Container) ReelService() reel.ReelService {
	return c.reelService
}

func (c *Container) Queue() *managers.RedisTaskQueue {
	return c.queue
}

func (c *Container) ReelController() *controllers.ReelController {
	return controllers.NewReelController(controllers.ReelControllerDependencies{
		ReelService: c.reelService,
	})
}

// NewBackfillScheduler returns nil when no backfill schedule is configured.
func (c *Container) NewBackfillScheduler() (*managers.ReelBackfillScheduler, error) {
	if c.config.Backfill.Schedule == "" {
		return nil, nil
	}

	scheduler, err := managers.NewReelBackfillScheduler(managers.ReelBackfillSchedulerDependencies{
		Store:         c.store,
		TaskPublisher: c.queue,
		Schedule:      c.config.Backfill.Schedule,
		Lookback:      c.config.Backfill.Lookback,
		Limit:         c.config.Backfill.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backfill scheduler: %w", err)
	}

	return scheduler, nil
}

// RunWorker consumes create-gif tasks until ctx is cancelled.
func (c *Container) RunWorker(ctx context.Context) error {
	return c.queue.Listen(ctx, domain.CreateGif, c.reelService.HandleCreateGifTask)
}

func (c *Container) Close() {
	if c.fileSink != nil {
		if err := c.fileSink.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close reel log file")
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}

	if c.pool != nil {
		c.pool.Close()
	}
}
