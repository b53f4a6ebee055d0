package quota

import (
	"github.com/pawdiary/pawdiary/internal/event"
)

// Decision is the outcome of a reservation attempt.
type Decision int

const (
	Granted Decision = iota
	DeniedQuotaExhausted
	DeniedCategoryCompleted
	DeniedRandom
)

// Reason returns the external skip-reason code for a denial, or "" for a
// grant. A preselect-mode miss reports random_not_met: the pre-draw is the
// day's randomization.
func (d Decision) Reason() string {
	switch d {
	case DeniedQuotaExhausted:
		return "quota_exhausted"
	case DeniedCategoryCompleted:
		return "category_completed"
	case DeniedRandom:
		return "random_not_met"
	default:
		return ""
	}
}

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return d.Reason()
}

// Gate decides whether an event may produce a diary entry today and, on a
// grant, reserves one unit of quota. The whole check-and-reserve runs in a
// single critical section on the Scheduler's lock, so two concurrent
// events can never both pass on the last quota unit or on the same
// category.
type Gate struct {
	sched   *Scheduler
	claimed *event.ClaimedSet
}

// NewGate creates a Gate over the scheduler's quota state.
func NewGate(sched *Scheduler, claimed *event.ClaimedSet) *Gate {
	return &Gate{sched: sched, claimed: claimed}
}

// TryReserve applies the eligibility rules to one event.
//
// Claimed (category, name) pairs are always granted: they bypass both the
// quota and the completed-category rule. When quota is still available a
// claimed grant decrements it and marks the category completed
// (best-effort bookkeeping); when it is not, the grant stands anyway.
//
// A non-claimed grant atomically decrements remaining quota and marks the
// category completed for the day. Granted reservations are never refunded,
// even if downstream generation fails.
func (g *Gate) TryReserve(ev *event.Event) Decision {
	s := g.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureDayLocked(s.now())
	st := &s.st

	if g.claimed.Contains(ev.Category, ev.Name) {
		if st.remaining > 0 {
			st.remaining--
			st.reservations++
			st.completed[ev.Category] = struct{}{}
		}
		return Granted
	}

	if st.remaining == 0 {
		return DeniedQuotaExhausted
	}
	if _, done := st.completed[ev.Category]; done {
		return DeniedCategoryCompleted
	}

	if s.cfg.Mode == ModePreselect {
		if _, ok := st.preselected[ev.Category]; !ok {
			return DeniedRandom
		}
	} else {
		if s.rng == nil || s.rng.Float64() >= s.passProbabilityFor(ev.Category) {
			return DeniedRandom
		}
	}

	st.remaining--
	st.reservations++
	st.completed[ev.Category] = struct{}{}
	return Granted
}
