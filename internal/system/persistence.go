package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/codec"
	coresys "github.com/l1jgo/worldcore/internal/core/system"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/persist"
	"github.com/l1jgo/worldcore/internal/persist/pg"
	"github.com/l1jgo/worldcore/internal/session"
	"github.com/l1jgo/worldcore/internal/world"
)

// PersistenceSystem periodically saves every playing character's record and
// crash file, then copies the directory and the rent ledger to the mirror
// when one is configured. Phase Persist.
type PersistenceSystem struct {
	w        *world.World
	players  *persist.PlayerFile
	rent     *persist.RentStore
	sessions *session.Registry
	ledger   *Ledger
	mirror   *Mirror // optional
	log      *zap.Logger
	interval uint64 // auto-save every N pulses, 0 disables
}

func NewPersistenceSystem(w *world.World, players *persist.PlayerFile, rent *persist.RentStore, sessions *session.Registry, ledger *Ledger, mirror *Mirror, log *zap.Logger, intervalPulses uint64) *PersistenceSystem {
	return &PersistenceSystem{
		w:        w,
		players:  players,
		rent:     rent,
		sessions: sessions,
		ledger:   ledger,
		mirror:   mirror,
		log:      log,
		interval: intervalPulses,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Tick(pulse uint64) {
	if s.interval == 0 || pulse%s.interval != 0 {
		return
	}
	s.savePlayers(true)
}

// SaveAllPlayers writes every playing character and its crash file whether
// or not its objects changed. Called on shutdown.
func (s *PersistenceSystem) SaveAllPlayers() int {
	return s.savePlayers(false)
}

// savePlayers writes player records. With dirtyOnly, crash files are only
// rewritten for characters flagged with changed objects.
func (s *PersistenceSystem) savePlayers(dirtyOnly bool) int {
	count := 0
	s.sessions.Playing(func(sess *session.Session, c *world.Character) {
		if err := s.players.Save(s.w, sess.Char); err != nil {
			s.log.Error("自動存檔角色失敗", zap.String("name", c.Name), zap.Error(err))
			return
		}
		if !dirtyOnly || c.Act&data.PlrCrash != 0 {
			if err := s.rent.CrashSave(s.w, sess.Char); err != nil {
				s.log.Error("自動存檔物品失敗", zap.String("name", c.Name), zap.Error(err))
				return
			}
		}
		s.mirrorPlayer(c)
		count++
	})
	if count > 0 {
		s.log.Info("自動存檔完成", zap.Int("玩家數", count))
	}
	s.flushLedger()
	return count
}

func (s *PersistenceSystem) mirrorPlayer(c *world.Character) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	row := &pg.PlayerRow{
		ID:        c.IDNum,
		Name:      codec.FoldName(c.Name),
		PfilePos:  c.Player.PfilePos,
		Level:     int16(c.Level),
		Gold:      c.Points.Gold,
		Bank:      c.Points.Bank,
		Host:      c.Player.Host,
		LastLogon: time.Unix(c.Player.LastLogon, 0),
		Deleted:   c.Act&data.PlrDeleted != 0,
	}
	if err := s.mirror.Players.Upsert(ctx, row); err != nil {
		s.log.Error("同步玩家目錄失敗", zap.String("name", c.Name), zap.Error(err))
	}
}

// flushLedger writes the pending rent events and marks the ledger processed
// up to this save. Without a mirror the events are dropped.
func (s *PersistenceSystem) flushLedger() {
	entries := s.ledger.Drain()
	if s.mirror == nil || len(entries) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.mirror.Ledger.Write(ctx, entries); err != nil {
		s.log.Error("寫入租用帳目失敗", zap.Int("筆數", len(entries)), zap.Error(err))
		s.ledger.Add(entries...)
		return
	}
	if n, err := s.mirror.Ledger.MarkProcessed(ctx); err != nil {
		s.log.Error("帳目 MarkProcessed 失敗", zap.Error(err))
	} else {
		s.log.Debug("租用帳目已同步", zap.Int64("筆數", n))
	}
}
