package system

import (
	"github.com/l1jgo/worldcore/internal/core/event"
	coresys "github.com/l1jgo/worldcore/internal/core/system"
)

// DispatchSystem delivers the events emitted during the pulse. Phase
// Dispatch, after all updates.
type DispatchSystem struct {
	bus *event.Bus
}

func NewDispatchSystem(bus *event.Bus) *DispatchSystem {
	return &DispatchSystem{bus: bus}
}

func (s *DispatchSystem) Phase() coresys.Phase { return coresys.PhaseDispatch }

func (s *DispatchSystem) Tick(_ uint64) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
