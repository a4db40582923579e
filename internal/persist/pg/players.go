package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// PlayerRow is the reporting copy of one player file entry.
type PlayerRow struct {
	ID        int64
	Name      string
	PfilePos  int
	Level     int16
	Gold      int32
	Bank      int32
	Host      string
	LastLogon time.Time
	Deleted   bool
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Upsert writes row, replacing the previous copy of the same id.
func (r *PlayerRepo) Upsert(ctx context.Context, row *PlayerRow) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO players (id, name, pfile_pos, level, gold, bank, host, last_logon, deleted, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		     name = EXCLUDED.name, pfile_pos = EXCLUDED.pfile_pos, level = EXCLUDED.level,
		     gold = EXCLUDED.gold, bank = EXCLUDED.bank, host = EXCLUDED.host,
		     last_logon = EXCLUDED.last_logon, deleted = EXCLUDED.deleted, updated_at = NOW()`,
		row.ID, row.Name, row.PfilePos, row.Level, row.Gold, row.Bank, row.Host, row.LastLogon, row.Deleted,
	)
	return err
}

// Load returns the mirrored row of name, or nil when there is none.
func (r *PlayerRepo) Load(ctx context.Context, name string) (*PlayerRow, error) {
	row := &PlayerRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, pfile_pos, level, gold, bank, host, COALESCE(last_logon, 'epoch'), deleted
		 FROM players WHERE name = $1`, name,
	).Scan(
		&row.ID, &row.Name, &row.PfilePos, &row.Level, &row.Gold, &row.Bank, &row.Host, &row.LastLogon, &row.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// MarkDeleted flags a mirrored player deleted.
func (r *PlayerRepo) MarkDeleted(ctx context.Context, name string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET deleted = TRUE, updated_at = NOW() WHERE name = $1`, name,
	)
	return err
}
