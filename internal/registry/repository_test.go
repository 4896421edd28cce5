package registry

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/splitrelay/internal/database"
	"github.com/aristath/splitrelay/internal/tasks"
	testutil "github.com/aristath/splitrelay/internal/testing"
)

func newTestRepository(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, "registry")
	return NewRepository(db, database.DialectSQLite, zerolog.New(nil).Level(zerolog.Disabled)), db
}

func createTask(t *testing.T, repo *Repository, kind tasks.Kind, params tasks.Params) *tasks.Task {
	t.Helper()
	task := &tasks.Task{
		Owner:       "owner-1",
		Kind:        kind,
		Params:      params,
		SubmittedAt: time.Unix(1_770_000_000, 0),
	}
	require.NoError(t, repo.CreateTask(context.Background(), task))
	require.NotEmpty(t, task.ID)
	return task
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	params := &tasks.AnalysisParams{Market: "1001", MaxStocks: 50, Days: 180, MinMarketCap: 1000}
	created := createTask(t, repo, tasks.KindAnalysis, params)
	assert.Equal(t, tasks.StatusPending, created.Status)

	got, err := repo.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "owner-1", got.Owner)
	assert.Equal(t, tasks.KindAnalysis, got.Kind)
	assert.Equal(t, tasks.StatusPending, got.Status)
	assert.Equal(t, params, got.Params)
	assert.Equal(t, created.SubmittedAt.Unix(), got.SubmittedAt.Unix())
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.ResultMessage)

	_, err = repo.GetTask(ctx, "no-such-task")
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)

	err = repo.CreateTask(ctx, created)
	assert.Error(t, err, "ids are immutable once assigned")
}

func TestRepository_ReadsWorkerWrites(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	task := createTask(t, repo, tasks.KindHistorySync, &tasks.HistorySyncParams{Days: 30})

	_, err := db.Exec(`UPDATE tasks SET status = 'completed', result_message = 'synced 2', completed_at = ? WHERE id = ?`,
		time.Unix(1_770_000_100, 0).Unix(), task.ID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO trade_records (task_id, seq, trade_date, trade_time, code, side, quantity, price) VALUES
		(?, 2, '20260302', '101500', '000660', 'sell', 3, 120500),
		(?, 1, '20260302', '091500', '005930', 'buy', 10, 10080)`, task.ID, task.ID)
	require.NoError(t, err)

	got, err := repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCompleted, got.Status)
	assert.Equal(t, "synced 2", got.ResultMessage)
	require.NotNil(t, got.CompletedAt)

	res, err := repo.FetchResult(ctx, task.ID, tasks.KindHistorySync)
	require.NoError(t, err)
	hist, err := tasks.AsHistorySync(res)
	require.NoError(t, err)
	require.Len(t, hist.Trades, 2)
	assert.Equal(t, "005930", hist.Trades[0].Code, "ordered by seq")
	assert.Equal(t, tasks.SideBuy, hist.Trades[0].Side)
	assert.Equal(t, 10080.0, hist.Trades[0].Price)
	assert.Equal(t, tasks.SideSell, hist.Trades[1].Side)
}

func TestRepository_FetchResultPerKind(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	list := createTask(t, repo, tasks.KindListSync, &tasks.ListSyncParams{})
	_, err := db.Exec(`INSERT INTO list_sync_results (task_id, total, inserted, updated, failed) VALUES (?, 10, 4, 5, 1)`, list.ID)
	require.NoError(t, err)

	analysis := createTask(t, repo, tasks.KindAnalysis, &tasks.AnalysisParams{Market: "2001", MaxStocks: 100, Days: 365})
	_, err = db.Exec(`INSERT INTO analysis_records (task_id, rank, code, name, market, suitability_score, recommendation) VALUES
		(?, 2, '000660', 'SK hynix', 'KOSPI', 71.5, 'fair'),
		(?, 1, '005930', 'Samsung Electronics', 'KOSPI', 88.0, 'good')`, analysis.ID, analysis.ID)
	require.NoError(t, err)

	compare := createTask(t, repo, tasks.KindCompare, &tasks.CompareParams{Codes: []string{"005930", "000660"}})
	_, err = db.Exec(`INSERT INTO compare_records (task_id, code, account_quantity, tracked_quantity, status) VALUES
		(?, '005930', 10, 10, 'match'),
		(?, '000660', 5, 0, 'untracked')`, compare.ID, compare.ID)
	require.NoError(t, err)

	res, err := repo.FetchResult(ctx, list.ID, tasks.KindListSync)
	require.NoError(t, err)
	ls, err := tasks.AsListSync(res)
	require.NoError(t, err)
	assert.Equal(t, tasks.ListSyncCounts{Total: 10, Inserted: 4, Updated: 5, Failed: 1}, ls.Counts)

	res, err = repo.FetchResult(ctx, analysis.ID, tasks.KindAnalysis)
	require.NoError(t, err)
	an, err := tasks.AsAnalysis(res)
	require.NoError(t, err)
	require.Len(t, an.Records, 2)
	assert.Equal(t, "005930", an.Records[0].Code, "ordered by rank")

	res, err = repo.FetchResult(ctx, compare.ID, tasks.KindCompare)
	require.NoError(t, err)
	cmp, err := tasks.AsCompare(res)
	require.NoError(t, err)
	require.Len(t, cmp.Records, 2)
	assert.Equal(t, "000660", cmp.Records[0].Code, "ordered by code")
	assert.Equal(t, tasks.CompareUntracked, cmp.Records[0].Status)

	_, err = repo.FetchResult(ctx, list.ID, "bogus")
	assert.Error(t, err)
}

func TestRepository_EmptyResultSets(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for _, kind := range tasks.AllKinds {
		t.Run(string(kind), func(t *testing.T) {
			res, err := repo.FetchResult(ctx, "task-without-rows", kind)
			require.NoError(t, err)
			assert.Equal(t, kind, res.Kind())
		})
	}
}

func TestRepository_ListByOwner(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		task := &tasks.Task{
			Owner:       "owner-1",
			Kind:        tasks.KindHistorySync,
			Params:      &tasks.HistorySyncParams{Days: i + 1},
			SubmittedAt: time.Unix(int64(1_770_000_000+i*60), 0),
		}
		require.NoError(t, repo.CreateTask(ctx, task))
	}
	other := &tasks.Task{Owner: "owner-2", Kind: tasks.KindListSync, Params: &tasks.ListSyncParams{}}
	require.NoError(t, repo.CreateTask(ctx, other))

	list, err := repo.ListByOwner(ctx, "owner-1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 3, list[0].Params.(*tasks.HistorySyncParams).Days, "newest first")
	assert.Equal(t, 2, list[1].Params.(*tasks.HistorySyncParams).Days)
}
