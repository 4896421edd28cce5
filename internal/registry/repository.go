// Package registry adapts the durable task registry tables to the tasks package.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/splitrelay/internal/database"
	"github.com/aristath/splitrelay/internal/tasks"
)

// tasksColumns is the column list read by scanTask. Keep the order in sync.
const tasksColumns = `id, owner, kind, status, params, result_message, created_at, completed_at`

// Repository reads and creates task rows and reads result rows.
type Repository struct {
	db      *sql.DB
	dialect database.Dialect
	log     zerolog.Logger
}

// NewRepository creates a registry repository over db.
func NewRepository(db *sql.DB, dialect database.Dialect, log zerolog.Logger) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		log:     log.With().Str("repo", "task_registry").Logger(),
	}
}

func (r *Repository) q(query string) string {
	return database.Rebind(r.dialect, query)
}

// CreateTask inserts a pending row and assigns task.ID.
func (r *Repository) CreateTask(ctx context.Context, task *tasks.Task) error {
	if task.ID != "" {
		return fmt.Errorf("task already has id %s", task.ID)
	}
	params, err := EncodeParams(task.Params)
	if err != nil {
		return err
	}
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}

	id := uuid.New().String()
	_, err = r.db.ExecContext(ctx, r.q(`
		INSERT INTO tasks (id, owner, kind, status, params, result_message, created_at)
		VALUES (?, ?, ?, ?, ?, '', ?)
	`), id, task.Owner, string(task.Kind), string(tasks.StatusPending), params, task.SubmittedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	task.ID = id
	task.Status = tasks.StatusPending

	r.log.Debug().Str("task_id", id).Str("kind", string(task.Kind)).Msg("Task row created")
	return nil
}

// GetTask reads a task row by id.
func (r *Repository) GetTask(ctx context.Context, id string) (*tasks.Task, error) {
	row := r.db.QueryRowContext(ctx, r.q("SELECT "+tasksColumns+" FROM tasks WHERE id = ?"), id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return task, nil
}

// ListByOwner returns an owner's most recent tasks, newest first.
func (r *Repository) ListByOwner(ctx context.Context, owner string, limit int) ([]*tasks.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, r.q(
		"SELECT "+tasksColumns+" FROM tasks WHERE owner = ? ORDER BY created_at DESC, id LIMIT ?",
	), owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*tasks.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*tasks.Task, error) {
	var (
		task        tasks.Task
		kind        string
		status      string
		params      []byte
		message     sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(&task.ID, &task.Owner, &kind, &status, &params, &message, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	task.Kind = tasks.Kind(kind)
	parsed, err := tasks.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	task.Status = parsed
	task.Params, err = DecodeParams(task.Kind, params)
	if err != nil {
		return nil, err
	}
	task.ResultMessage = message.String
	task.SubmittedAt = time.Unix(createdAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		task.CompletedAt = &t
	}
	return &task, nil
}

// FetchResult reads the result rows of a task. No rows yields an empty result.
func (r *Repository) FetchResult(ctx context.Context, taskID string, kind tasks.Kind) (tasks.Result, error) {
	switch kind {
	case tasks.KindListSync:
		return r.fetchListSync(ctx, taskID)
	case tasks.KindHistorySync:
		return r.fetchTrades(ctx, taskID)
	case tasks.KindAnalysis:
		return r.fetchAnalysis(ctx, taskID)
	case tasks.KindCompare:
		return r.fetchCompare(ctx, taskID)
	}
	return nil, fmt.Errorf("unknown task kind %q", kind)
}

func (r *Repository) fetchListSync(ctx context.Context, taskID string) (tasks.Result, error) {
	var c tasks.ListSyncCounts
	err := r.db.QueryRowContext(ctx, r.q(
		"SELECT total, inserted, updated, failed FROM list_sync_results WHERE task_id = ?",
	), taskID).Scan(&c.Total, &c.Inserted, &c.Updated, &c.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return &tasks.ListSyncResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read list sync result: %w", err)
	}
	return &tasks.ListSyncResult{Counts: c}, nil
}

func (r *Repository) fetchTrades(ctx context.Context, taskID string) (tasks.Result, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT trade_date, trade_time, code, side, quantity, price
		FROM trade_records WHERE task_id = ? ORDER BY seq
	`), taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trade records: %w", err)
	}
	defer rows.Close()

	res := &tasks.HistorySyncResult{Trades: []tasks.TradeRecord{}}
	for rows.Next() {
		var (
			rec  tasks.TradeRecord
			side string
		)
		if err := rows.Scan(&rec.Date, &rec.Time, &rec.Code, &side, &rec.Quantity, &rec.Price); err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		rec.Side = tasks.TradeSide(side)
		res.Trades = append(res.Trades, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trade records: %w", err)
	}
	return res, nil
}

func (r *Repository) fetchAnalysis(ctx context.Context, taskID string) (tasks.Result, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT code, name, market, suitability_score, recommendation,
		       volatility_score, recovery_success_rate, trend_1y, avg_trading_value
		FROM analysis_records WHERE task_id = ? ORDER BY rank
	`), taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis records: %w", err)
	}
	defer rows.Close()

	res := &tasks.AnalysisResult{Records: []tasks.AnalysisRecord{}}
	for rows.Next() {
		var rec tasks.AnalysisRecord
		if err := rows.Scan(&rec.Code, &rec.Name, &rec.Market, &rec.SuitabilityScore, &rec.Recommendation,
			&rec.VolatilityScore, &rec.RecoveryRate, &rec.Trend1Y, &rec.AvgTradingValue); err != nil {
			return nil, fmt.Errorf("failed to scan analysis record: %w", err)
		}
		res.Records = append(res.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis records: %w", err)
	}
	return res, nil
}

func (r *Repository) fetchCompare(ctx context.Context, taskID string) (tasks.Result, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT code, name, account_quantity, account_avg_price,
		       tracked_quantity, tracked_avg_price, status
		FROM compare_records WHERE task_id = ? ORDER BY code
	`), taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to read compare records: %w", err)
	}
	defer rows.Close()

	res := &tasks.CompareResult{Records: []tasks.CompareRecord{}}
	for rows.Next() {
		var (
			rec    tasks.CompareRecord
			status string
		)
		if err := rows.Scan(&rec.Code, &rec.Name, &rec.AccountQuantity, &rec.AccountAvgPrice,
			&rec.TrackedQuantity, &rec.TrackedAvgPrice, &status); err != nil {
			return nil, fmt.Errorf("failed to scan compare record: %w", err)
		}
		rec.Status = tasks.CompareStatus(status)
		res.Records = append(res.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compare records: %w", err)
	}
	return res, nil
}
