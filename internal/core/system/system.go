package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain session queues, apply visibility
	PhasePreUpdate               // 1: dispatch last tick's lifecycle events
	PhaseUpdate                  // 2: engine audits
	PhasePostUpdate              // 3: reserved
	PhaseOutput                  // 4: flush outbound packets
	PhasePersist                 // 5: journal flush
	PhaseCleanup                 // 6: release departed viewers
)

var phaseNames = [...]string{"input", "pre-update", "update", "post-update", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// System is one unit of per-tick work.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
