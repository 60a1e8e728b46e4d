package managers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRunStore creates a throwaway schema in the database named by TEST_DATABASE_URL.
func newTestRunStore(t *testing.T) (domain.RunStore, *pgxpool.Pool, string) {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()

	pool, err := NewPostgresPool(ctx, PostgresPoolConfig{URL: databaseURL, MaxConns: 2})
	require.NoError(t, err)

	schema := "runreel_test_" + xid.New().String()
	quoted := pgx.Identifier{schema}.Sanitize()

	_, err = pool.Exec(ctx, `CREATE SCHEMA `+quoted)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
		CREATE TABLE `+quoted+`.runs (
			id uuid PRIMARY KEY,
			flow_id text NOT NULL,
			account_id text NOT NULL,
			status text,
			error text,
			private_data jsonb,
			created_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE `+quoted+`.message_logs (
			id bigserial PRIMARY KEY,
			flow_id text NOT NULL,
			run_id text NOT NULL,
			segment text NOT NULL,
			messages jsonb,
			created_at timestamptz NOT NULL DEFAULT now()
		);`)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DROP SCHEMA `+quoted+` CASCADE`)
		pool.Close()
	})

	return NewPostgresRunStore(PostgresRunStoreDependencies{DB: pool, Schema: schema}), pool, quoted
}

func TestPostgresRunStore(t *testing.T) {
	store, pool, schema := newTestRunStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).UTC()
	olderRun := uuid.NewString()
	latestRun := uuid.NewString()
	otherAccountRun := uuid.NewString()

	_, err := pool.Exec(ctx, `INSERT INTO `+schema+`.runs (id, flow_id, account_id, status, error, private_data, created_at) VALUES
		($1, 'flow-1', 'acc-1', 'completed', NULL, '{"gifUrl":"https://cdn/old.gif"}', $4),
		($2, 'flow-1', 'acc-1', 'completed', NULL, '{"note":"x"}', $5),
		($3, 'flow-1', 'acc-2', 'error', 'boom', NULL, $6)`,
		olderRun, latestRun, otherAccountRun, base, base.Add(time.Minute), base.Add(2*time.Minute))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO `+schema+`.message_logs (flow_id, run_id, segment, messages, created_at) VALUES
		('flow-1', $1, 'user', '[{"content":[{"type":"image","url":"https://img/2.png"}]}]', $3),
		('flow-1', $1, 'agent', '[{"content":[{"type":"image","url":"https://img/1.png"}]}]', $2),
		('flow-1', $1, 'system', '[{"content":[{"type":"image","url":"https://img/ignored.png"}]}]', $2),
		('flow-1', $1, 'debug', to_jsonb('[]'::text), $4)`,
		latestRun, base, base.Add(time.Second), base.Add(2*time.Second))
	require.NoError(t, err)

	t.Run("latest run", func(t *testing.T) {
		runID, err := store.GetLatestRunID(ctx, "flow-1", "acc-1")
		require.NoError(t, err)
		assert.Equal(t, latestRun, runID)

		_, err = store.GetLatestRunID(ctx, "flow-2", "acc-1")
		assert.ErrorIs(t, err, domain.ErrNoRunsFound)
	})

	t.Run("get run", func(t *testing.T) {
		run, err := store.GetRun(ctx, olderRun, "flow-1", "acc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusCompleted, run.Status)
		assert.Equal(t, "https://cdn/old.gif", run.GifURL())

		run, err = store.GetRun(ctx, otherAccountRun, "flow-1", "acc-2")
		require.NoError(t, err)
		assert.Equal(t, "boom", run.Error)
		assert.Empty(t, run.PrivateData)

		_, err = store.GetRun(ctx, otherAccountRun, "flow-1", "acc-1")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("message records", func(t *testing.T) {
		records, err := store.ListMessageRecords(ctx, "flow-1", latestRun)
		require.NoError(t, err)
		require.Len(t, records, 3)

		assert.Equal(t, domain.MessageSegmentAgent, records[0].Segment)
		assert.Equal(t, domain.MessageSegmentUser, records[1].Segment)
		assert.Equal(t, domain.MessageSegmentDebug, records[2].Segment)
		assert.JSONEq(t, `"[]"`, string(records[2].Messages))
	})

	t.Run("runs missing gif", func(t *testing.T) {
		refs, err := store.ListRunsMissingGif(ctx, domain.ListRunsMissingGifParams{
			CompletedAfter: base.Add(-time.Minute),
			Limit:          10,
		})
		require.NoError(t, err)
		assert.Equal(t, []domain.RunRef{{FlowID: "flow-1", RunID: latestRun, AccountID: "acc-1"}}, refs)
	})

	t.Run("save run gif", func(t *testing.T) {
		err := store.SaveRunGif(ctx, domain.SaveRunGifParams{
			RunID:      latestRun,
			PublicURL:  "https://cdn/new.gif",
			PrivateURL: "http://minio/new.gif",
		})
		require.NoError(t, err)

		run, err := store.GetRun(ctx, latestRun, "flow-1", "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/new.gif", run.GifURL())
		assert.Equal(t, "http://minio/new.gif", run.PrivateData[domain.PrivateDataPrivateGifURLKey])
		assert.Equal(t, "x", run.PrivateData["note"])

		err = store.SaveRunGif(ctx, domain.SaveRunGifParams{RunID: uuid.NewString(), PublicURL: "a", PrivateURL: "b"})
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})
}
