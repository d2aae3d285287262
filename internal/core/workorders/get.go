package workorders

import (
	"context"

	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/ports"
)

// Include selects which associations Get expands.
type Include struct {
	Attempts bool
	Runs     bool
}

type AttemptDetail struct {
	domain.Attempt
	Runs []domain.Run `json:"runs,omitempty"`
}

type WorkOrderDetail struct {
	domain.WorkOrder
	Attempts []AttemptDetail `json:"attempts,omitempty"`
}

// Get loads a work order with its requested associations. A missing id
// yields (nil, nil); other failures are returned as errors.
func (s *Service) Get(ctx context.Context, workOrderID string, include Include) (*WorkOrderDetail, error) {
	var detail *WorkOrderDetail

	err := s.store.RunInTransaction(func(tx ports.Transaction) error {
		wo, _, err := getWorkOrder(tx, workOrderID)
		if err != nil {
			if domain.IsNotFound(err) {
				return nil
			}
			return err
		}

		detail = &WorkOrderDetail{WorkOrder: *wo}
		if !include.Attempts && !include.Runs {
			return nil
		}

		for _, attemptID := range wo.AttemptIDs {
			attempt, _, err := getAttempt(tx, attemptID)
			if err != nil {
				return err
			}

			ad := AttemptDetail{Attempt: *attempt}
			if include.Runs {
				runs, err := attemptRuns(tx, attempt)
				if err != nil {
					return err
				}
				ad.Runs = runs
			}
			detail.Attempts = append(detail.Attempts, ad)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}
