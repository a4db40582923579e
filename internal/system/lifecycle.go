package system

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/codec"
	"github.com/l1jgo/worldcore/internal/core/arena"
	"github.com/l1jgo/worldcore/internal/core/event"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/persist"
	"github.com/l1jgo/worldcore/internal/persist/pg"
	"github.com/l1jgo/worldcore/internal/session"
	"github.com/l1jgo/worldcore/internal/world"
)

var (
	ErrNotPlaying     = errors.New("system: session is not playing")
	ErrAlreadyPlaying = errors.New("system: session is already playing")
	ErrCannotAfford   = errors.New("system: cannot afford the rent")
)

// Lifecycle moves players between their sessions, the world and the player
// and rent files: entering the game, renting, cryo and idling out.
type Lifecycle struct {
	w        *world.World
	players  *persist.PlayerFile
	rent     *persist.RentStore
	sessions *session.Registry
	ledger   *Ledger
	bus      *event.Bus // optional
	log      *zap.Logger

	immortalLevel int
}

func NewLifecycle(w *world.World, players *persist.PlayerFile, rent *persist.RentStore, sessions *session.Registry, ledger *Ledger, bus *event.Bus, immortalLevel int, log *zap.Logger) *Lifecycle {
	return &Lifecycle{
		w:             w,
		players:       players,
		rent:          rent,
		sessions:      sessions,
		ledger:        ledger,
		bus:           bus,
		log:           log,
		immortalLevel: immortalLevel,
	}
}

// Enter reads sess's player record and rent file and puts the character in
// its entry room. Players whose things could not be restored from a rent
// arrive in the mortal start room. A rent charge is written to the player
// record before the character enters.
func (l *Lifecycle) Enter(sess *session.Session) (persist.LoadResult, error) {
	if sess.State == session.StatePlaying {
		return persist.LoadResult{}, ErrAlreadyPlaying
	}
	h, err := l.players.Enter(l.w, sess.Name)
	if err != nil {
		return persist.LoadResult{}, err
	}
	c := l.w.Chars.MustGet(h)
	c.Player.Host = sess.Host

	res, err := l.rent.Load(l.w, h)
	if err != nil {
		l.log.Error("載入角色物品失敗", zap.String("name", c.Name), zap.Error(err))
		if xerr := l.w.ExtractChar(h); xerr != nil {
			l.log.Error("移除角色失敗", zap.String("name", c.Name), zap.Error(xerr))
		}
		return res, err
	}
	c.Act &^= data.PlrCryo
	if res.Cost > 0 {
		if err := l.players.Save(l.w, h); err != nil {
			l.log.Error("儲存租金扣款失敗", zap.String("name", c.Name), zap.Int32("cost", res.Cost), zap.Error(err))
			if xerr := l.w.ExtractChar(h); xerr != nil {
				l.log.Error("移除角色失敗", zap.String("name", c.Name), zap.Error(xerr))
			}
			return res, err
		}
	}

	room := l.w.EntryRoom(c, l.immortalLevel)
	if res.UseStartRoom() && c.Act&data.PlrFrozen == 0 && int(c.Level) < l.immortalLevel {
		room = l.w.Start.Mortal
	}
	if err := l.w.CharToRoom(h, room); err != nil {
		return res, fmt.Errorf("enter %s: %w", c.Name, err)
	}
	sess.Char = h
	sess.State = session.StatePlaying
	sess.Idle = 0

	l.ledger.Add(pg.LedgerEntry{
		PlayerName: codec.FoldName(c.Name),
		RentCode:   int16(res.Code),
		Cost:       res.Cost,
		Items:      int32(res.Items),
		Outcome:    res.Outcome.String(),
	})
	if l.bus != nil {
		event.Emit(l.bus, event.RentLoaded{Name: c.Name, Outcome: int(res.Outcome)})
	}
	l.log.Info("玩家進入遊戲",
		zap.String("name", c.Name),
		zap.Int32("room", l.w.Room(room).Vnum),
		zap.String("outcome", res.Outcome.String()))
	return res, nil
}

func (l *Lifecycle) playing(sess *session.Session) (arena.Handle, *world.Character, error) {
	if sess.State != session.StatePlaying {
		return 0, nil, ErrNotPlaying
	}
	c, err := l.w.Char(sess.Char)
	if err != nil {
		return 0, nil, err
	}
	return sess.Char, c, nil
}

// Rent stores the character's things at the offered daily price, remembers
// the room for the next login and takes the character out of the world.
func (l *Lifecycle) Rent(sess *session.Session) (int32, error) {
	h, c, err := l.playing(sess)
	if err != nil {
		return 0, err
	}
	cost, err := l.rent.Offer(l.w, h, persist.RentFactor)
	if err != nil {
		return cost, err
	}
	if cost > c.Points.Gold+c.Points.Bank {
		return cost, ErrCannotAfford
	}
	if r := l.w.Room(c.InRoom); r != nil {
		c.Player.LoadRoom = r.Vnum
		c.Act |= data.PlrLoadRoom
	}
	n := l.itemCount(h)
	if err := l.rent.RentSave(l.w, h, cost); err != nil {
		return cost, err
	}
	l.record(c, persist.RentRented, cost, n)
	l.log.Info("玩家寄放物品離開", zap.String("name", c.Name), zap.Int32("cost", cost))
	return cost, l.leave(sess, h, c)
}

// Cryo stores the character's things with no daily charge. The one-off fee
// comes out of gold.
func (l *Lifecycle) Cryo(sess *session.Session) (int32, error) {
	h, c, err := l.playing(sess)
	if err != nil {
		return 0, err
	}
	fee, err := l.rent.Offer(l.w, h, persist.CryoFactor)
	if err != nil {
		return fee, err
	}
	if fee > c.Points.Gold {
		return fee, ErrCannotAfford
	}
	n := l.itemCount(h)
	if err := l.rent.CryoSave(l.w, h, fee); err != nil {
		return fee, err
	}
	l.record(c, persist.RentCryo, fee, n)
	l.log.Info("玩家冷凍保存離開", zap.String("name", c.Name), zap.Int32("fee", fee))
	return fee, l.leave(sess, h, c)
}

// IdleOut force-rents a player who has been idle too long and drops the
// session. The doubled daily charge is collected when the player returns.
func (l *Lifecycle) IdleOut(sess *session.Session) error {
	h, c, err := l.playing(sess)
	if err != nil {
		return err
	}
	cost, err := l.rent.IdleSave(l.w, h)
	if err != nil {
		return err
	}
	var n int
	if sum, err := persist.ListRent(l.rent.Path(c.Name)); err == nil {
		n = len(sum.Items)
	}
	l.record(c, persist.RentTimedOut, cost, n)
	l.log.Info("閒置過久，強制存檔離線",
		zap.String("name", c.Name), zap.Int("idle", sess.Idle), zap.Int32("cost", cost))
	err = l.leave(sess, h, c)
	sess.State = session.StateClosed
	l.sessions.Remove(sess.ID)
	return err
}

// leave writes the player record and removes the character from the world.
// The character is extracted even when the record could not be written.
func (l *Lifecycle) leave(sess *session.Session, h arena.Handle, c *world.Character) error {
	saveErr := l.players.Save(l.w, h)
	if saveErr != nil {
		l.log.Error("儲存角色失敗", zap.String("name", c.Name), zap.Error(saveErr))
	}
	if err := l.w.ExtractChar(h); err != nil {
		return err
	}
	sess.Char = 0
	sess.State = session.StateMenu
	return saveErr
}

// itemCount is the number of objects ch wears and carries, nested ones
// included.
func (l *Lifecycle) itemCount(h arena.Handle) int {
	items, err := persist.Flatten(l.w, h)
	if err != nil {
		return 0
	}
	return len(items)
}

func (l *Lifecycle) record(c *world.Character, code, cost int32, n int) {
	l.ledger.Add(pg.LedgerEntry{
		PlayerName: codec.FoldName(c.Name),
		RentCode:   int16(code),
		Cost:       cost,
		Items:      int32(n),
	})
}
