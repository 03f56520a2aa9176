// internal/lending/service/update.go
package service

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel/attribute"

	"loan-workers/internal/audit"
	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/lending/transition"
	"loan-workers/internal/models"
	"loan-workers/internal/permission"
	"loan-workers/internal/store"
)

type UpdateStatusRequest struct {
	LoanID  string
	Status  models.LoanStatus
	Comment string
	Actor   string
}

// UpdateResult is the loan after an update together with what the
// transition, if any, did.
type UpdateResult struct {
	Loan          *models.LoanApplication
	Transitioned  bool
	CreatedTask   *models.Task
	CompletedTask *models.Task
	Notifications []models.Notification
	// Written counts nested question and section records saved.
	Written int
}

// UpdateLoanStatus moves a loan through the status workflow.
func (s *Service) UpdateLoanStatus(ctx context.Context, req UpdateStatusRequest) (res *UpdateResult, err error) {
	ctx, done := s.begin(ctx, "update_status",
		attribute.String("loan", req.LoanID),
		attribute.String("status", string(req.Status)))
	defer func() { done(err) }()

	// Baseline check before the lookup; the engine adds AUTHORIZE for decisions.
	if err := s.require(ctx, req.Actor, permission.Update); err != nil {
		return nil, err
	}

	res = &UpdateResult{}
	var from models.LoanStatus
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		loan, err := loadLoan(ctx, tx, req.LoanID)
		if err != nil {
			return err
		}
		out, err := s.engine.Apply(ctx, tx, transition.Request{
			Loan: loan, Target: req.Status, Comment: req.Comment, Actor: req.Actor,
		})
		if err != nil {
			return err
		}
		from = out.From
		res.fromOutcome(out)
		return nil
	})
	if err != nil {
		return nil, normalize(err)
	}

	if res.Transitioned {
		metrics.LoanTransitions.WithLabelValues(string(from), string(req.Status)).Inc()
	}
	s.afterCommit(ctx, res.Notifications, models.AuditEntry{
		Event:      audit.EventLoanStatusUpdate,
		Actor:      req.Actor,
		Message:    "Update Status for " + res.Loan.Title,
		EntityType: "loan",
		EntityRef:  res.Loan.ID,
		Diff:       map[string]interface{}{"from": string(from), "status": string(req.Status), "comment": req.Comment},
	})
	return res, nil
}

// UpdateLoanRequest edits a loan. Status is optional; Questions and Sections
// are nested edit payloads keyed by record id.
type UpdateLoanRequest struct {
	LoanID    string
	Actor     string
	Status    models.LoanStatus
	Comment   string
	Questions []store.Document
	Sections  []store.Document
}

// UpdateLoan saves nested answers and, when Status differs from the current
// one, applies the transition. UPDATE is required even without a status change.
func (s *Service) UpdateLoan(ctx context.Context, req UpdateLoanRequest) (res *UpdateResult, err error) {
	ctx, done := s.begin(ctx, "update", attribute.String("loan", req.LoanID))
	defer func() { done(err) }()

	if err := s.require(ctx, req.Actor, permission.Update); err != nil {
		return nil, err
	}

	res = &UpdateResult{}
	var from models.LoanStatus
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		loan, err := loadLoan(ctx, tx, req.LoanID)
		if err != nil {
			return err
		}
		from = loan.Status

		if len(req.Questions) > 0 || len(req.Sections) > 0 {
			detail, err := loadDetail(ctx, tx, loan)
			if err != nil {
				return err
			}
			w := transition.NewNestedWriter(tx)
			w.Questions = idSet(detail.QuestionIDs())
			w.Sections = idSet(loan.Sections)
			if err := w.SaveSections(ctx, req.Sections); err != nil {
				return err
			}
			if err := w.SaveQuestions(ctx, req.Questions); err != nil {
				return err
			}
			res.Written = w.Written()
		}

		if req.Status != "" && req.Status != loan.Status {
			out, err := s.engine.Apply(ctx, tx, transition.Request{
				Loan: loan, Target: req.Status, Comment: req.Comment, Actor: req.Actor,
			})
			if err != nil {
				return err
			}
			res.fromOutcome(out)
			return nil
		}

		if req.Comment != "" {
			loan, err = store.UpdateAs[models.LoanApplication](ctx, tx, store.KindLoan, store.ByID(loan.ID), store.Document{"comment": req.Comment})
			if err != nil {
				return errors.WrapStore("update loan", err)
			}
		}
		res.Loan = loan
		return nil
	})
	if err != nil {
		return nil, normalize(err)
	}

	if res.Transitioned {
		metrics.LoanTransitions.WithLabelValues(string(from), string(res.Loan.Status)).Inc()
	}
	diff := map[string]interface{}{
		"questions": len(req.Questions),
		"sections":  len(req.Sections),
		"written":   res.Written,
	}
	if req.Status != "" {
		diff["status"] = string(req.Status)
	}
	if req.Comment != "" {
		diff["comment"] = req.Comment
	}
	s.afterCommit(ctx, res.Notifications, models.AuditEntry{
		Event:      audit.EventLoanUpdate,
		Actor:      req.Actor,
		Message:    "Update Info for " + res.Loan.Title,
		EntityType: "loan",
		EntityRef:  res.Loan.ID,
		Diff:       diff,
	})
	return res, nil
}

func (r *UpdateResult) fromOutcome(out *transition.Outcome) {
	r.Loan = out.Loan
	r.Transitioned = out.Applied
	r.CreatedTask = out.CreatedTask
	r.CompletedTask = out.CompletedTask
	r.Notifications = out.Notifications
}

func loadLoan(ctx context.Context, s store.Store, id string) (*models.LoanApplication, error) {
	if id == "" {
		return nil, errors.NewValidationError([]errors.Violation{{Field: "loanId", Message: "is required"}})
	}
	loan, err := store.GetAs[models.LoanApplication](ctx, s, store.KindLoan, store.ByID(id))
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewLoanNotFoundError(id)
	}
	if err != nil {
		return nil, errors.WrapStore("load loan", err)
	}
	return loan, nil
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
