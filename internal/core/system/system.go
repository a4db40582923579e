package system

// Phase defines execution ordering within a single pulse.
type Phase int

const (
	PhaseInput   Phase = iota // 0: drain queued commands from sessions
	PhaseUpdate               // 1: zone ageing and resets
	PhaseDispatch             // 2: deliver events emitted this pulse
	PhasePersist              // 3: crash-save and player record writes
	PhaseCleanup              // 4: extract queued entities
)

// System is driven once per pulse. Pulse counts from 1 at boot; systems that
// run less often test it against their own interval.
type System interface {
	Phase() Phase
	Tick(pulse uint64)
}
