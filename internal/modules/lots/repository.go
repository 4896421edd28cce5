package lots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/splitrelay/internal/database"
)

// ErrLotNotFound is returned when no lot matches.
var ErrLotNotFound = errors.New("lot not found")

// lotsColumns is the column list read by scanLot. Keep the order in sync.
const lotsColumns = `id, owner, code, name, sequence_number, price, quantity, status,
opened_date, closed_price, closed_date, created_at`

// Repository stores lots in portfolio.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a lot repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "lots").Logger(),
	}
}

// Create inserts an open lot. A zero SequenceNumber is assigned the next round of the
// instrument.
func (r *Repository) Create(ctx context.Context, lot *Lot) error {
	if err := lot.Validate(); err != nil {
		return err
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if lot.SequenceNumber == 0 {
			var maxSeq sql.NullInt64
			err := tx.QueryRowContext(ctx,
				`SELECT MAX(sequence_number) FROM lots WHERE owner = ? AND code = ? AND status = 'open'`,
				lot.Owner, lot.Code,
			).Scan(&maxSeq)
			if err != nil {
				return fmt.Errorf("failed to read last round: %w", err)
			}
			lot.SequenceNumber = int(maxSeq.Int64) + 1
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO lots (owner, code, name, sequence_number, price, quantity, status, opened_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, 'open', ?, ?)
		`, lot.Owner, lot.Code, lot.Name, lot.SequenceNumber, lot.Price, lot.Quantity,
			lot.OpenedDate.Format(DateLayout), now.Unix())
		if err != nil {
			return fmt.Errorf("failed to create lot: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get insert ID: %w", err)
		}
		lot.ID = id
		lot.Status = StatusOpen
		lot.CreatedAt = time.Unix(now.Unix(), 0).UTC()

		r.log.Info().
			Str("owner", lot.Owner).
			Str("code", lot.Code).
			Int("round", lot.SequenceNumber).
			Msg("Lot opened")
		return nil
	})
}

// Close marks a lot as sold. Closing leaves a gap in the open rounds.
func (r *Repository) Close(ctx context.Context, owner string, id int64, price float64, date time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lots SET status = 'closed', closed_price = ?, closed_date = ?
		WHERE id = ? AND owner = ? AND status = 'open'
	`, price, date.Format(DateLayout), id, owner)
	if err != nil {
		return fmt.Errorf("failed to close lot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrLotNotFound
	}
	r.log.Info().Int64("lot_id", id).Float64("price", price).Msg("Lot closed")
	return nil
}

// GetByID returns a lot or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, owner string, id int64) (*Lot, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+lotsColumns+" FROM lots WHERE id = ? AND owner = ?", id, owner)
	lot, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

// OpenLots returns every open lot of an owner ordered by opening date.
func (r *Repository) OpenLots(ctx context.Context, owner string) ([]Lot, error) {
	return r.query(ctx, r.db, `
		SELECT `+lotsColumns+` FROM lots
		WHERE owner = ? AND status = 'open'
		ORDER BY opened_date, id
	`, owner)
}

// OpenLotsByCode returns one instrument's open lots in round order.
func (r *Repository) OpenLotsByCode(ctx context.Context, owner, code string) ([]Lot, error) {
	return r.query(ctx, r.db, `
		SELECT `+lotsColumns+` FROM lots
		WHERE owner = ? AND code = ? AND status = 'open'
		ORDER BY sequence_number, opened_date, id
	`, owner, code)
}

// RenumberResult reports what ApplyRenumbering rewrote.
type RenumberResult struct {
	Code    string   `json:"code"`
	Lots    []Lot    `json:"lots"`
	Changes []Change `json:"changes"`
}

// ApplyRenumbering compacts the rounds of one instrument's open lots and persists the
// result in a single transaction.
func (r *Repository) ApplyRenumbering(ctx context.Context, owner, code string) (*RenumberResult, error) {
	result := &RenumberResult{Code: code}

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		open, err := r.query(ctx, tx, `
			SELECT `+lotsColumns+` FROM lots
			WHERE owner = ? AND code = ? AND status = 'open'
			ORDER BY sequence_number, opened_date, id
		`, owner, code)
		if err != nil {
			return err
		}

		renumbered, changes := Renumber(open)
		for _, c := range changes {
			if _, err := tx.ExecContext(ctx,
				`UPDATE lots SET sequence_number = ? WHERE id = ?`, c.To, c.LotID,
			); err != nil {
				return fmt.Errorf("failed to renumber lot %d: %w", c.LotID, err)
			}
		}

		result.Lots = renumbered
		result.Changes = changes
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Changes) > 0 {
		r.log.Info().
			Str("owner", owner).
			Str("code", code).
			Int("changed", len(result.Changes)).
			Msg("Lots renumbered")
	}
	return result, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Repository) query(ctx context.Context, q querier, query string, args ...any) ([]Lot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	lots := make([]Lot, 0)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, *lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lots: %w", err)
	}
	return lots, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLot(row scanner) (*Lot, error) {
	var (
		lot         Lot
		status      string
		openedDate  string
		closedPrice sql.NullFloat64
		closedDate  sql.NullString
		createdAt   int64
	)
	if err := row.Scan(&lot.ID, &lot.Owner, &lot.Code, &lot.Name, &lot.SequenceNumber, &lot.Price,
		&lot.Quantity, &status, &openedDate, &closedPrice, &closedDate, &createdAt); err != nil {
		return nil, err
	}

	lot.Status = Status(status)
	opened, err := time.Parse(DateLayout, openedDate)
	if err != nil {
		return nil, fmt.Errorf("invalid opened_date %q: %w", openedDate, err)
	}
	lot.OpenedDate = opened
	if closedPrice.Valid {
		p := closedPrice.Float64
		lot.ClosedPrice = &p
	}
	if closedDate.Valid && closedDate.String != "" {
		d, err := time.Parse(DateLayout, closedDate.String)
		if err != nil {
			return nil, fmt.Errorf("invalid closed_date %q: %w", closedDate.String, err)
		}
		lot.ClosedDate = &d
	}
	lot.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &lot, nil
}
