// internal/lending/transition/engine.go
package transition

import (
	"context"
	stderrors "errors"
	"fmt"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/notify"
	"loan-workers/internal/permission"
	"loan-workers/internal/store"
)

// Request asks for loan to move to Target on behalf of Actor.
type Request struct {
	Loan    *models.LoanApplication
	Target  models.LoanStatus
	Comment string
	Actor   string
}

// Outcome reports what a transition changed.
type Outcome struct {
	Loan *models.LoanApplication
	From models.LoanStatus
	// Applied is false when the request was a same-status no-op.
	Applied       bool
	CompletedTask *models.Task
	CreatedTask   *models.Task
	Notifications []models.Notification
}

// Engine applies loan status transitions and their side effects.
type Engine struct {
	permissions     permission.Checker
	module          string
	allowSameStatus bool
	logger          logger.Logger
}

func NewEngine(checker permission.Checker, module string, allowSameStatus bool, log logger.Logger) *Engine {
	return &Engine{
		permissions:     checker,
		module:          module,
		allowSameStatus: allowSameStatus,
		logger:          log.WithFields(map[string]interface{}{"component": "transition"}),
	}
}

// Apply authorizes and performs req using tx for every read and write. The
// caller owns the transaction. Nothing is written when an error is returned
// before the first side effect.
func (e *Engine) Apply(ctx context.Context, tx store.Store, req Request) (*Outcome, error) {
	loan := req.Loan
	if !req.Target.Valid() {
		return nil, errors.NewValidationError([]errors.Violation{
			{Field: "status", Message: fmt.Sprintf("unknown loan status %q", req.Target)},
		})
	}

	if err := permission.Require(ctx, e.permissions, req.Actor, e.module, RequiredCapability(req.Target)); err != nil {
		return nil, err
	}

	out := &Outcome{Loan: loan, From: loan.Status}
	if req.Target == loan.Status {
		if e.allowSameStatus {
			e.logger.Debug("same-status transition ignored", map[string]interface{}{"loan": loan.ID, "status": loan.Status})
			return out, nil
		}
		return nil, errors.NewAlreadyInStatusError(string(req.Target))
	}

	rule, ok := Lookup(loan.Status, req.Target)
	if !ok {
		return nil, errors.NewInvalidTransitionError(string(loan.Status), string(req.Target)).
			WithMetadata("allowed", Targets(loan.Status))
	}

	client, err := store.GetAs[models.Client](ctx, tx, store.KindClient, store.ByID(loan.Client))
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewClientNotFoundError(loan.Client)
	}
	if err != nil {
		return nil, errors.WrapStore("load client", err)
	}

	if err := e.applyEffects(ctx, tx, rule, req, client, out); err != nil {
		return nil, err
	}

	patch := store.Document{"status": string(req.Target)}
	if req.Comment != "" {
		patch["comment"] = req.Comment
	}
	updated, err := store.UpdateAs[models.LoanApplication](ctx, tx, store.KindLoan, store.ByID(loan.ID), patch)
	if err != nil {
		return nil, errors.WrapStore("update loan status", err)
	}
	out.Loan = updated
	out.Applied = true

	e.logger.Info("loan status changed", map[string]interface{}{
		"loan": loan.ID,
		"from": string(rule.From),
		"to":   string(rule.To),
	})
	return out, nil
}

func (e *Engine) applyEffects(ctx context.Context, tx store.Store, rule Rule, req Request, client *models.Client, out *Outcome) error {
	fx := rule.Effects
	loan := req.Loan

	if fx.ClientStatus != "" {
		if _, err := tx.Update(ctx, store.KindClient, store.ByID(client.ID), store.Document{"status": fx.ClientStatus}); err != nil {
			return errors.WrapStore("sync client status", err)
		}
	}

	if fx.CompleteTask {
		task, err := completeOpenTask(ctx, tx, loan.ID, req.Comment)
		if err != nil {
			return err
		}
		out.CompletedTask = task
	}

	if fx.CreateTask != "" {
		task := models.Task{
			TaskType:   fx.CreateTask,
			EntityRef:  loan.ID,
			EntityType: "loan",
			CreatedBy:  req.Actor,
			Status:     models.TaskStatusPending,
		}
		switch fx.CreateTask {
		case models.TaskTypeReview:
			task.Task = "Review Loan Application of " + client.FullName()
			task.User = loan.CreatedBy
			if out.CompletedTask != nil && out.CompletedTask.CreatedBy != "" {
				task.User = out.CompletedTask.CreatedBy
			}
		case models.TaskTypeApprove:
			task.Task = "Approve Loan Application of " + client.FullName()
			task.Branch = loan.Branch
			if task.Branch == "" {
				task.Branch = client.Branch
			}
		}
		created, err := store.CreateAs(ctx, tx, store.KindTask, &task)
		if err != nil {
			return errors.WrapStore("create task", err)
		}
		out.CreatedTask = created
	}

	recipient, taskRef := "", ""
	switch fx.Notify {
	case NotifyTaskCreator:
		if out.CompletedTask != nil {
			recipient, taskRef = out.CompletedTask.CreatedBy, out.CompletedTask.ID
		}
	case NotifyActor:
		recipient = req.Actor
		if out.CreatedTask != nil {
			taskRef = out.CreatedTask.ID
		}
	}
	if recipient != "" {
		n, err := notify.Create(ctx, tx, models.Notification{
			For:     recipient,
			Message: fmt.Sprintf(fx.Message, client.FullName()),
			TaskRef: taskRef,
		})
		if err != nil {
			return errors.WrapStore("create notification", err)
		}
		out.Notifications = append(out.Notifications, *n)
	}
	return nil
}

// completeOpenTask closes the newest pending task on loanID. It returns nil
// when there is none.
func completeOpenTask(ctx context.Context, tx store.Store, loanID, comment string) (*models.Task, error) {
	filter := store.Filter{"entityRef": loanID, "status": string(models.TaskStatusPending)}
	patch := store.Document{"status": string(models.TaskStatusCompleted)}
	if comment != "" {
		patch["comment"] = comment
	}
	task, err := store.UpdateAs[models.Task](ctx, tx, store.KindTask, filter, patch)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapStore("complete task", err)
	}
	return task, nil
}
