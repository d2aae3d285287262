package domain

import (
	"sort"
	"time"
)

// statePrecedence orders the in-progress states from least to most
// advanced. Aggregation reports the least-advanced unfinished run.
var statePrecedence = map[State]int{
	StatePending: 0,
	StateClaimed: 1,
	StateStarted: 2,
}

// AggregateRuns derives the work-order state from the latest attempt's
// full run set.
//
// If any run is unfinished the result is the least-advanced in-progress
// state. Once every run is terminal the result is success only when all
// runs succeeded; otherwise it is the failure kind of the first failing
// run ordered by finish time, then start time, then lowest run id.
// Recomputing over an unchanged run set always yields the same state.
func AggregateRuns(runs []Run) State {
	if len(runs) == 0 {
		return StatePending
	}

	unfinished := false
	least := StateStarted
	for _, r := range runs {
		if r.State.Terminal() {
			continue
		}
		unfinished = true
		if statePrecedence[r.State] < statePrecedence[least] {
			least = r.State
		}
	}
	if unfinished {
		return least
	}

	failing := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.State != StateSuccess {
			failing = append(failing, r)
		}
	}
	if len(failing) == 0 {
		return StateSuccess
	}

	sort.Slice(failing, func(i, j int) bool {
		fi, fj := timeOrZero(failing[i].FinishedAt), timeOrZero(failing[j].FinishedAt)
		if !fi.Equal(fj) {
			return fi.Before(fj)
		}
		si, sj := timeOrZero(failing[i].StartedAt), timeOrZero(failing[j].StartedAt)
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return failing[i].ID < failing[j].ID
	})

	return failing[0].State
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
