package workorders

import (
	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
	"github.com/eleven-am/foreman/internal/xjson"
)

// Record accessors over a storage transaction. Every write is a
// version CAS, so racing aggregation updates on the same record fail
// the transaction instead of silently losing one write.

func getWorkOrder(tx ports.Transaction, id string) (*domain.WorkOrder, int64, error) {
	value, version, exists, err := tx.Get(domain.WorkOrderKey(id))
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, domain.NewNotFoundError("work order", id)
	}

	var wo domain.WorkOrder
	if err := xjson.Unmarshal(value, &wo); err != nil {
		return nil, 0, err
	}
	return &wo, version, nil
}

func putWorkOrder(tx ports.Transaction, wo *domain.WorkOrder, version int64) error {
	value, err := xjson.Marshal(wo)
	if err != nil {
		return err
	}
	return tx.Put(domain.WorkOrderKey(wo.ID), value, version)
}

func getAttempt(tx ports.Transaction, id string) (*domain.Attempt, int64, error) {
	value, version, exists, err := tx.Get(domain.AttemptKey(id))
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, domain.NewNotFoundError("attempt", id)
	}

	var attempt domain.Attempt
	if err := xjson.Unmarshal(value, &attempt); err != nil {
		return nil, 0, err
	}
	return &attempt, version, nil
}

func putAttempt(tx ports.Transaction, attempt *domain.Attempt, version int64) error {
	value, err := xjson.Marshal(attempt)
	if err != nil {
		return err
	}
	return tx.Put(domain.AttemptKey(attempt.ID), value, version)
}

func getRun(tx ports.Transaction, id string) (*domain.Run, int64, error) {
	value, version, exists, err := tx.Get(domain.RunKey(id))
	if err != nil {
		return nil, 0, err
	}
	if !exists {
		return nil, 0, domain.NewNotFoundError("run", id)
	}

	var run domain.Run
	if err := xjson.Unmarshal(value, &run); err != nil {
		return nil, 0, err
	}
	return &run, version, nil
}

func putRun(tx ports.Transaction, run *domain.Run, version int64) error {
	value, err := xjson.Marshal(run)
	if err != nil {
		return err
	}
	return tx.Put(domain.RunKey(run.ID), value, version)
}

// attemptRuns loads the attempt's full run set: owned plus carried.
func attemptRuns(tx ports.Transaction, attempt *domain.Attempt) ([]domain.Run, error) {
	ids := attempt.AllRunIDs()
	runs := make([]domain.Run, 0, len(ids))
	for _, id := range ids {
		run, _, err := getRun(tx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func putUnqueuedMarker(tx ports.Transaction, payload domain.AttemptPayload) error {
	value, err := xjson.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Put(domain.UnqueuedKey(payload.AttemptID), value, 0)
}
