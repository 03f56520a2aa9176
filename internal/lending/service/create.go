// internal/lending/service/create.go
package service

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel/attribute"

	"loan-workers/internal/audit"
	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/lending/cycle"
	"loan-workers/internal/lending/instantiate"
	"loan-workers/internal/models"
	"loan-workers/internal/permission"
	"loan-workers/internal/store"
)

type CreateLoanRequest struct {
	ClientID string
	ForGroup bool
	Actor    string
}

type CreateLoanResult struct {
	Loan *models.LoanApplication
	// PriorLoan is the client's previous loan, if any.
	PriorLoan *models.LoanApplication
	Cloned    int
}

// CreateLoan instantiates the loan form template for an eligible client.
func (s *Service) CreateLoan(ctx context.Context, req CreateLoanRequest) (res *CreateLoanResult, err error) {
	ctx, done := s.begin(ctx, "create",
		attribute.String("client", req.ClientID),
		attribute.Bool("forGroup", req.ForGroup))
	defer func() { done(err) }()

	if req.ClientID == "" {
		return nil, errors.NewValidationError([]errors.Violation{{Field: "clientId", Message: "Loan Client is Empty"}})
	}
	if err := s.require(ctx, req.Actor, permission.Create); err != nil {
		return nil, err
	}

	res = &CreateLoanResult{}
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		// The client row lock serializes creations for one client, so the
		// eligibility reads below see any loan committed before us.
		client, err := lockClient(ctx, tx, req.ClientID)
		if err != nil {
			return err
		}

		form, err := store.GetAs[models.FormTemplate](ctx, tx, store.KindForm, store.Filter{"type": s.cfg.FormType})
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewFormTemplateMissingError(s.cfg.FormType)
		}
		if err != nil {
			return errors.WrapStore("load form template", err)
		}

		eligibility, err := cycle.NewValidator(tx).Validate(ctx, client.ID, req.ForGroup)
		if err != nil {
			return err
		}
		res.PriorLoan = eligibility.PriorLoan

		tree, err := instantiate.New(tx, s.cfg.PrerequisiteMatching, s.logger).Instantiate(ctx, form)
		if err != nil {
			return err
		}
		res.Cloned = tree.Cloned

		createdBy, err := s.resolveCreator(ctx, tx, req.Actor)
		if err != nil {
			return err
		}

		loan := &models.LoanApplication{
			Client:      client.ID,
			CreatedBy:   createdBy,
			Branch:      client.Branch,
			Title:       form.Title,
			Subtitle:    form.Subtitle,
			Purpose:     form.Purpose,
			Description: "Loan Process For " + client.FullName(),
			Status:      models.LoanStatusNew,
			HasSections: form.HasSections,
			Layout:      form.Layout,
			Disclaimer:  form.Disclaimer,
			Signatures:  form.Signatures,
			Questions:   nonNil(tree.Questions),
			Sections:    nonNil(tree.Sections),
		}
		if res.Loan, err = store.CreateAs(ctx, tx, store.KindLoan, loan); err != nil {
			return errors.WrapStore("create loan", err)
		}

		if _, err := tx.Update(ctx, store.KindClient, store.ByID(client.ID), store.Document{"status": models.ClientStatusLoanNew}); err != nil {
			return errors.WrapStore("update client status", err)
		}

		if eligibility.History != nil {
			return recordCycleLoan(ctx, tx, eligibility, res.Loan.ID)
		}
		return nil
	})
	if err != nil {
		return nil, normalize(err)
	}

	metrics.QuestionsCloned.Add(float64(res.Cloned))
	s.logger.Info("loan created", map[string]interface{}{
		"loan":   res.Loan.ID,
		"client": res.Loan.Client,
		"cloned": res.Cloned,
	})
	s.track(ctx, models.AuditEntry{
		Event:      audit.EventLoanCreate,
		Actor:      req.Actor,
		Message:    "Create loan - " + res.Loan.Title,
		EntityType: "loan",
		EntityRef:  res.Loan.ID,
	})
	return res, nil
}

// resolveCreator returns the actor's account id, or the actor itself when
// the user has no account.
func (s *Service) resolveCreator(ctx context.Context, tx store.Store, actor string) (string, error) {
	account, err := store.GetAs[models.Account](ctx, tx, store.KindAccount, store.Filter{"user": actor})
	if stderrors.Is(err, store.ErrNotFound) {
		return actor, nil
	}
	if err != nil {
		return "", errors.WrapStore("load account", err)
	}
	return account.ID, nil
}

func lockClient(ctx context.Context, tx store.Store, clientID string) (*models.Client, error) {
	doc, err := tx.GetForUpdate(ctx, store.KindClient, store.ByID(clientID))
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewClientNotFoundError(clientID)
	}
	if err != nil {
		return nil, errors.WrapStore("lock client", err)
	}
	var client models.Client
	if err := store.Decode(doc, &client); err != nil {
		return nil, errors.NewInternalError(err)
	}
	return &client, nil
}

// recordCycleLoan stores loanID on the current cycle of the client's ledger.
func recordCycleLoan(ctx context.Context, tx store.Store, eligibility *cycle.Result, loanID string) error {
	history := eligibility.History
	history.Cycles[eligibility.Current].Loan = loanID
	cycles, err := store.Encode(struct {
		Cycles []models.Cycle `json:"cycles"`
	}{history.Cycles})
	if err != nil {
		return errors.NewInternalError(err)
	}
	if _, err := tx.Update(ctx, store.KindHistory, store.ByID(history.ID), cycles); err != nil {
		return errors.WrapStore("update cycle history", err)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
