package system

import "github.com/l1jgo/worldcore/internal/persist/pg"

// Ledger collects rent events between two auto-saves. The persistence
// system drains it into the database mirror.
type Ledger struct {
	pending []pg.LedgerEntry
}

func (l *Ledger) Add(entries ...pg.LedgerEntry) {
	l.pending = append(l.pending, entries...)
}

// Drain returns the pending entries and empties the ledger.
func (l *Ledger) Drain() []pg.LedgerEntry {
	out := l.pending
	l.pending = nil
	return out
}

func (l *Ledger) Len() int { return len(l.pending) }

// Mirror is the optional Postgres copy of the player directory and the rent
// ledger. The player and rent files stay authoritative.
type Mirror struct {
	Players *pg.PlayerRepo
	Ledger  *pg.LedgerRepo
}

func NewMirror(db *pg.DB) *Mirror {
	return &Mirror{Players: pg.NewPlayerRepo(db), Ledger: pg.NewLedgerRepo(db)}
}
