package managers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const DefaultDatabaseSchema = "browserable"

type PostgresPoolConfig struct {
	URL      string
	MaxConns int32
}

func NewPostgresPool(ctx context.Context, config PostgresPoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// PgxQuerier is the subset of pgxpool.Pool used by the run store.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type postgresRunStore struct {
	db          PgxQuerier
	runsTable   string
	messageLogs string
}

type PostgresRunStoreDependencies struct {
	DB     PgxQuerier
	Schema string
}

func NewPostgresRunStore(deps PostgresRunStoreDependencies) domain.RunStore {
	schema := deps.Schema
	if schema == "" {
		schema = DefaultDatabaseSchema
	}

	return &postgresRunStore{
		db:          deps.DB,
		runsTable:   pgx.Identifier{schema, "runs"}.Sanitize(),
		messageLogs: pgx.Identifier{schema, "message_logs"}.Sanitize(),
	}
}

func (s *postgresRunStore) GetLatestRunID(ctx context.Context, flowID, accountID string) (string, error) {
	query := fmt.Sprintf(`
		SELECT id::text
		FROM %s
		WHERE flow_id = $1 AND account_id = $2
		ORDER BY created_at DESC
		LIMIT 1`, s.runsTable)

	var runID string

	err := s.db.QueryRow(ctx, query, flowID, accountID).Scan(&runID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNoRunsFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to query latest run: %w", err)
	}

	return runID, nil
}

func (s *postgresRunStore) GetRun(ctx context.Context, runID, flowID, accountID string) (domain.Run, error) {
	query := fmt.Sprintf(`
		SELECT id::text, flow_id::text, account_id::text, COALESCE(status::text, ''), COALESCE(error::text, ''),
			COALESCE(private_data::text, '{}'), created_at
		FROM %s
		WHERE id = $1 AND flow_id = $2 AND account_id = $3`, s.runsTable)

	var (
		run         domain.Run
		status      string
		privateData string
	)

	err := s.db.QueryRow(ctx, query, runID, flowID, accountID).Scan(
		&run.ID,
		&run.FlowID,
		&run.AccountID,
		&status,
		&run.Error,
		&privateData,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, domain.ErrRunNotFound
	}

	if err != nil {
		return domain.Run{}, fmt.Errorf("failed to query run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	run.PrivateData = map[string]any{}

	if err := json.Unmarshal([]byte(privateData), &run.PrivateData); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("Run private data is not a JSON object")

		run.PrivateData = map[string]any{}
	}

	return run, nil
}

func (s *postgresRunStore) ListMessageRecords(ctx context.Context, flowID, runID string) ([]domain.MessageRecord, error) {
	query := fmt.Sprintf(`
		SELECT segment::text, COALESCE(messages::text, ''), created_at
		FROM %s
		WHERE flow_id = $1 AND run_id = $2 AND segment::text = ANY($3)
		ORDER BY created_at ASC`, s.messageLogs)

	segments := make([]string, 0, len(domain.TimelineSegments))
	for _, segment := range domain.TimelineSegments {
		segments = append(segments, string(segment))
	}

	rows, err := s.db.Query(ctx, query, flowID, runID, segments)
	if err != nil {
		return nil, fmt.Errorf("failed to query message logs: %w", err)
	}
	defer rows.Close()

	records := []domain.MessageRecord{}

	for rows.Next() {
		var (
			segment   string
			messages  string
			createdAt time.Time
		)

		if err := rows.Scan(&segment, &messages, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message log: %w", err)
		}

		records = append(records, domain.MessageRecord{
			FlowID:    flowID,
			RunID:     runID,
			Segment:   domain.MessageSegment(segment),
			Messages:  []byte(messages),
			CreatedAt: createdAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read message logs: %w", err)
	}

	return records, nil
}

func (s *postgresRunStore) SaveRunGif(ctx context.Context, params domain.SaveRunGifParams) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET private_data = COALESCE(private_data, '{}'::jsonb)
			|| jsonb_build_object('%s', $2::text, '%s', $3::text)
		WHERE id = $1`, s.runsTable, domain.PrivateDataGifURLKey, domain.PrivateDataPrivateGifURLKey)

	tag, err := s.db.Exec(ctx, query, params.RunID, params.PublicURL, params.PrivateURL)
	if err != nil {
		return fmt.Errorf("failed to save run gif: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}

	return nil
}

func (s *postgresRunStore) ListRunsMissingGif(ctx context.Context, params domain.ListRunsMissingGifParams) ([]domain.RunRef, error) {
	query := fmt.Sprintf(`
		SELECT id::text, flow_id::text, account_id::text
		FROM %s
		WHERE status::text = $1
			AND created_at >= $2
			AND (private_data IS NULL OR private_data->>'%s' IS NULL)
		ORDER BY created_at ASC
		LIMIT $3`, s.runsTable, domain.PrivateDataGifURLKey)

	rows, err := s.db.Query(ctx, query, string(domain.RunStatusCompleted), params.CompletedAfter, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs missing gif: %w", err)
	}

	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RunRef, error) {
		var ref domain.RunRef

		err := row.Scan(&ref.RunID, &ref.FlowID, &ref.AccountID)

		return ref, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs missing gif: %w", err)
	}

	return refs, nil
}
