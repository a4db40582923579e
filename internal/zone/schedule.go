package zone

import (
	"slices"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/world"
)

// Age advances every resettable zone by one age step and queues the ones
// whose lifespan ran out.
func (e *Engine) Age() {
	for i, z := range e.w.Zones {
		if z.ResetMode == data.ResetNever {
			continue
		}
		if z.Age < z.Lifespan {
			z.Age++
		}
		if z.Age >= z.Lifespan && z.Age < Dead {
			e.queue = append(e.queue, i)
			z.Age = Dead
		}
	}
}

// ProcessQueue resets the first queued zone that may reset now: an
// always-reset zone, or an only-when-empty zone with no mortal in it. At
// most one zone resets per call. It returns the zone reset, or -1.
func (e *Engine) ProcessQueue() int {
	for qi, zi := range e.queue {
		z := e.w.Zones[zi]
		if z.ResetMode == data.ResetAlways || e.IsEmpty(zi) {
			e.Reset(zi)
			e.queue = slices.Delete(e.queue, qi, qi+1)
			e.log.Info("區域自動重置", zap.Int32("zone", z.Vnum), zap.String("name", z.Name))
			return zi
		}
	}
	return -1
}

// Queued returns the zones waiting for a reset, oldest first.
func (e *Engine) Queued() []int {
	return slices.Clone(e.queue)
}

// IsEmpty reports whether no playing mortal stands in any room of zone.
func (e *Engine) IsEmpty(zone int) bool {
	if e.occ == nil {
		return true
	}
	for _, o := range e.occ.Occupants() {
		if !o.Playing || o.Room == world.Nowhere || o.Level >= e.immortalLevel {
			continue
		}
		if r := e.w.Room(o.Room); r != nil && r.Zone == zone {
			return false
		}
	}
	return true
}
