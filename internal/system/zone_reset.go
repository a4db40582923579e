package system

import (
	coresys "github.com/l1jgo/worldcore/internal/core/system"
	"github.com/l1jgo/worldcore/internal/zone"
)

// ZoneSystem ages zones and works the reset queue. Ageing runs once per age
// interval, the queue once per check interval. Phase Update.
type ZoneSystem struct {
	engine     *zone.Engine
	ageEvery   uint64
	checkEvery uint64
}

func NewZoneSystem(engine *zone.Engine, ageEvery, checkEvery uint64) *ZoneSystem {
	return &ZoneSystem{engine: engine, ageEvery: max(ageEvery, 1), checkEvery: max(checkEvery, 1)}
}

func (s *ZoneSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ZoneSystem) Tick(pulse uint64) {
	if pulse%s.ageEvery == 0 {
		s.engine.Age()
	}
	if pulse%s.checkEvery == 0 {
		s.engine.ProcessQueue()
	}
}
