package schedule

// Reconcile folds a live observation into a route's scheduled status. The
// schedule is the gate: live data never turns a route on outside its window,
// and never turns off a route inside it.
func Reconcile(static Status, liveObserved bool) Status {
	if static != Running {
		return NotRunning
	}
	return Running
}

// Assessment is a reconciled status plus whether live data corroborates it.
type Assessment struct {
	Status    Status `json:"status"`
	Confirmed bool   `json:"confirmed"`
}

func Assess(static Status, liveObserved bool) Assessment {
	st := Reconcile(static, liveObserved)
	return Assessment{Status: st, Confirmed: st == Running && liveObserved}
}
