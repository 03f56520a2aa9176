// internal/lending/service/delete.go
package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"loan-workers/internal/audit"
	"loan-workers/internal/common/errors"
	"loan-workers/internal/models"
	"loan-workers/internal/permission"
	"loan-workers/internal/store"
)

type DeleteResult struct {
	Loan *models.LoanApplication
	// Deleted counts the sections and questions removed with the loan.
	Deleted int
}

// DeleteLoan removes a loan together with its sections and question trees.
func (s *Service) DeleteLoan(ctx context.Context, loanID, actor string) (res *DeleteResult, err error) {
	ctx, done := s.begin(ctx, "delete", attribute.String("loan", loanID))
	defer func() { done(err) }()

	if err := s.require(ctx, actor, permission.Delete); err != nil {
		return nil, err
	}

	res = &DeleteResult{}
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		loan, err := loadLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		detail, err := loadDetail(ctx, tx, loan)
		if err != nil {
			return err
		}

		for _, id := range detail.QuestionIDs() {
			n, err := tx.Delete(ctx, store.KindQuestion, store.ByID(id))
			if err != nil {
				return errors.WrapStore("delete question", err)
			}
			res.Deleted += n
		}
		for _, sec := range detail.Sections {
			n, err := tx.Delete(ctx, store.KindSection, store.ByID(sec.Section.ID))
			if err != nil {
				return errors.WrapStore("delete section", err)
			}
			res.Deleted += n
		}
		if _, err := tx.Delete(ctx, store.KindLoan, store.ByID(loan.ID)); err != nil {
			return errors.WrapStore("delete loan", err)
		}
		res.Loan = loan
		return nil
	})
	if err != nil {
		return nil, normalize(err)
	}

	s.logger.Info("loan deleted", map[string]interface{}{"loan": loanID, "records": res.Deleted})
	s.track(ctx, models.AuditEntry{
		Event:      audit.EventLoanDelete,
		Actor:      actor,
		Message:    "Delete Info for " + loanID,
		EntityType: "loan",
		EntityRef:  loanID,
	})
	return res, nil
}
