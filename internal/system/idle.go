package system

import (
	"go.uber.org/zap"

	coresys "github.com/l1jgo/worldcore/internal/core/system"
	"github.com/l1jgo/worldcore/internal/session"
	"github.com/l1jgo/worldcore/internal/world"
)

// IdleSystem counts idle pulses for playing sessions and rents out players
// idle longer than the limit. The network layer resets Session.Idle on
// input. Phase Cleanup, so a player is never removed mid-update. A player
// whose idle save fails starts a fresh idle count before the next attempt.
type IdleSystem struct {
	sessions *session.Registry
	life     *Lifecycle
	limit    int // pulses, 0 disables
	log      *zap.Logger
}

func NewIdleSystem(sessions *session.Registry, life *Lifecycle, limitPulses int, log *zap.Logger) *IdleSystem {
	return &IdleSystem{sessions: sessions, life: life, limit: limitPulses, log: log}
}

func (s *IdleSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *IdleSystem) Tick(_ uint64) {
	if s.limit <= 0 {
		return
	}
	var out []*session.Session
	s.sessions.Playing(func(sess *session.Session, _ *world.Character) {
		sess.Idle++
		if sess.Idle >= s.limit {
			out = append(out, sess)
		}
	})
	for _, sess := range out {
		if err := s.life.IdleOut(sess); err != nil {
			s.log.Error("閒置玩家存檔失敗", zap.String("name", sess.Name), zap.Error(err))
			sess.Idle = 0
		}
	}
}
