// internal/lending/service/fetch.go
package service

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel/attribute"

	"loan-workers/internal/audit"
	"loan-workers/internal/common/errors"
	"loan-workers/internal/models"
	"loan-workers/internal/permission"
	"loan-workers/internal/store"
)

// GetLoan returns a loan with its client, sections and question trees.
func (s *Service) GetLoan(ctx context.Context, loanID, actor string) (detail *models.LoanDetail, err error) {
	ctx, done := s.begin(ctx, "fetch", attribute.String("loan", loanID))
	defer func() { done(err) }()

	if err := s.require(ctx, actor, permission.View); err != nil {
		return nil, err
	}

	loan, err := loadLoan(ctx, s.store, loanID)
	if err != nil {
		return nil, err
	}
	detail, err = loadDetail(ctx, s.store, loan)
	if err != nil {
		return nil, err
	}

	client, err := store.GetAs[models.Client](ctx, s.store, store.KindClient, store.ByID(loan.Client))
	switch {
	case err == nil:
		detail.Client = client
	case !stderrors.Is(err, store.ErrNotFound):
		return nil, errors.WrapStore("load client", err)
	}

	s.track(ctx, models.AuditEntry{
		Event:      audit.EventLoanView,
		Actor:      actor,
		Message:    "View loan - " + loan.Title,
		EntityType: "loan",
		EntityRef:  loan.ID,
	})
	return detail, nil
}

// loadDetail populates the sections and question trees of loan. Records that
// no longer exist are left out.
func loadDetail(ctx context.Context, s store.Store, loan *models.LoanApplication) (*models.LoanDetail, error) {
	detail := &models.LoanDetail{Loan: *loan}
	t := &treeLoader{store: s, path: map[string]bool{}}

	var err error
	if detail.Questions, err = t.nodes(ctx, loan.Questions); err != nil {
		return nil, err
	}
	for _, id := range loan.Sections {
		sec, err := store.GetAs[models.Section](ctx, s, store.KindSection, store.ByID(id))
		if stderrors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.WrapStore("load section", err)
		}
		nodes, err := t.nodes(ctx, sec.Questions)
		if err != nil {
			return nil, err
		}
		detail.Sections = append(detail.Sections, models.SectionDetail{Section: *sec, Questions: nodes})
	}
	return detail, nil
}

type treeLoader struct {
	store store.Store
	path  map[string]bool
}

func (t *treeLoader) nodes(ctx context.Context, ids []string) ([]models.QuestionNode, error) {
	var out []models.QuestionNode
	for _, id := range ids {
		if t.path[id] {
			return nil, errors.NewQuestionTreeCycleError(id)
		}
		q, err := store.GetAs[models.Question](ctx, t.store, store.KindQuestion, store.ByID(id))
		if stderrors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.WrapStore("load question", err)
		}

		t.path[id] = true
		subs, err := t.nodes(ctx, q.SubQuestions)
		delete(t.path, id)
		if err != nil {
			return nil, err
		}
		out = append(out, models.QuestionNode{Question: *q, SubQuestions: subs})
	}
	return out, nil
}
