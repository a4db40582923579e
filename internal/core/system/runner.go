package system

import "sort"

// Runner executes systems in phase order each pulse.
type Runner struct {
	systems []System
	sorted  bool
	pulse   uint64
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick advances the pulse counter and runs every system once.
func (r *Runner) Tick() {
	r.ensureSorted()
	r.pulse++
	for _, s := range r.systems {
		s.Tick(r.pulse)
	}
}

// TickPhase 只執行指定 Phase 的 System，不推進 pulse。
// 關機時用來強制跑一次 PhasePersist。
func (r *Runner) TickPhase(phase Phase) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Tick(r.pulse)
		}
	}
}

// Pulse returns the number of completed pulses.
func (r *Runner) Pulse() uint64 { return r.pulse }

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
