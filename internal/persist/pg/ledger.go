package pg

import (
	"context"
	"fmt"
)

// LedgerEntry records one rent file event: a save, or a load and what it
// charged.
type LedgerEntry struct {
	PlayerName string
	RentCode   int16
	Cost       int32
	Items      int32
	Outcome    string // empty for saves
}

type LedgerRepo struct {
	db *DB
}

func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Write inserts a batch of entries in a single transaction.
func (r *LedgerRepo) Write(ctx context.Context, entries []LedgerEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rent_ledger (player_name, rent_code, cost, items, outcome)
			 VALUES ($1, $2, $3, $4, $5)`,
			e.PlayerName, e.RentCode, e.Cost, e.Items, e.Outcome,
		); err != nil {
			return fmt.Errorf("ledger insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// MarkProcessed flags every pending entry as seen by the reporting job.
func (r *LedgerRepo) MarkProcessed(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE rent_ledger SET processed = TRUE WHERE processed = FALSE`,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
