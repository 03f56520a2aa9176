// internal/lending/cycle/validator.go
package cycle

import (
	"context"
	stderrors "errors"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

// Statuses under which a record still blocks a new loan cycle.
var (
	openScreening = statusSet("new", "inprogress", "submitted", "declined_under_review")
	openLoan      = statusSet("new", "submitted", "inprogress", "declined_under_review")
	openACAT      = statusSet("new", "submitted", "resubmitted", "inprogress", "declined_under_review")
)

func statusSet(statuses ...string) map[string]bool {
	m := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// Result is what a passed check learned about the client.
type Result struct {
	// PriorLoan is the client's most recent loan, if any.
	PriorLoan *models.LoanApplication
	// History is nil for group applications.
	History *models.CycleHistory
	// Current indexes History.Cycles.
	Current int
}

// Validator decides whether a client may start a new loan application.
type Validator struct {
	store store.Store
}

func NewValidator(s store.Store) *Validator {
	return &Validator{store: s}
}

// Validate runs the eligibility checks in order and stops at the first failure.
func (v *Validator) Validate(ctx context.Context, clientID string, forGroup bool) (*Result, error) {
	screenings, err := store.ListAs[models.Screening](ctx, v.store, store.KindScreening, store.Filter{"client": clientID})
	if err != nil {
		return nil, errors.WrapStore("list screenings", err)
	}
	if len(screenings) == 0 {
		return nil, errors.NewScreeningMissingError(clientID)
	}
	for _, s := range screenings {
		if openScreening[s.Status] {
			return nil, errors.NewScreeningInProgressError(clientID, s.Status)
		}
	}

	loans, err := store.ListAs[models.LoanApplication](ctx, v.store, store.KindLoan, store.Filter{"client": clientID})
	if err != nil {
		return nil, errors.WrapStore("list loans", err)
	}
	for _, l := range loans {
		if openLoan[string(l.Status)] {
			return nil, errors.NewLoanInProgressError(clientID, string(l.Status))
		}
	}

	acats, err := store.ListAs[models.ACAT](ctx, v.store, store.KindACAT, store.Filter{"client": clientID})
	if err != nil {
		return nil, errors.WrapStore("list acats", err)
	}
	for _, a := range acats {
		if openACAT[a.Status] {
			return nil, errors.NewACATInProgressError(clientID, a.Status)
		}
	}

	res := &Result{Current: -1}
	if len(loans) > 0 {
		res.PriorLoan = &loans[0]
	}
	if forGroup {
		return res, nil
	}

	history, err := store.GetAs[models.CycleHistory](ctx, v.store, store.KindHistory, store.Filter{"client": clientID})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewCycleHistoryMissingError(clientID)
	}
	if err != nil {
		return nil, errors.WrapStore("load cycle history", err)
	}

	idx := history.Current()
	if idx < 0 {
		return nil, errors.NewCycleStageIncompleteError(history.CycleNumber, "Screening")
	}
	current := history.Cycles[idx]
	if err := v.checkScreening(ctx, current, history.CycleNumber); err != nil {
		return nil, err
	}
	if current.Loan != "" {
		return nil, errors.NewCycleLoanExistsError(history.CycleNumber, current.Loan)
	}

	res.History = history
	res.Current = idx
	return res, nil
}

// checkScreening requires the cycle's screening to exist and be approved.
func (v *Validator) checkScreening(ctx context.Context, c models.Cycle, number int) error {
	if c.Screening == "" {
		return errors.NewCycleStageIncompleteError(number, "Screening")
	}
	s, err := store.GetAs[models.Screening](ctx, v.store, store.KindScreening, store.ByID(c.Screening))
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewCycleStageIncompleteError(number, "Screening")
	}
	if err != nil {
		return errors.WrapStore("load cycle screening", err)
	}
	if s.Status != models.ScreeningStatusApproved {
		return errors.NewCycleStageIncompleteError(number, "Screening")
	}
	return nil
}
