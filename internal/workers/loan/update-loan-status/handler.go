// internal/workers/loan/update-loan-status/handler.go
package updateloanstatus

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/lending/service"
	"loan-workers/internal/models"
	"loan-workers/internal/workers/loan/loanjob"
	"loan-workers/pkg/registry"
)

const TaskType = registry.TaskLoanUpdateStatus

type StatusUpdater interface {
	UpdateLoanStatus(ctx context.Context, req service.UpdateStatusRequest) (*service.UpdateResult, error)
}

type Handler struct {
	config  *loanjob.Config
	service StatusUpdater
	schema  map[string]interface{}
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *loanjob.Config, svc StatusUpdater, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		service: svc,
		schema:  config.Schema,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	var input Input
	if err := loanjob.Decode(job, h.schema, &input); err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	if err := loanjob.Complete(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// Execute applies the requested status to the loan.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.service.UpdateLoanStatus(ctx, service.UpdateStatusRequest{
		LoanID:  input.LoanID,
		Status:  models.LoanStatus(input.Status),
		Comment: input.Comment,
		Actor:   input.ActorID,
	})
	if err != nil {
		return nil, err
	}
	return outputFrom(res), nil
}

func outputFrom(res *service.UpdateResult) *Output {
	out := &Output{
		LoanID:       res.Loan.ID,
		Status:       string(res.Loan.Status),
		Transitioned: res.Transitioned,
		Notified:     len(res.Notifications),
	}
	if res.CreatedTask != nil {
		out.CreatedTaskID = res.CreatedTask.ID
	}
	if res.CompletedTask != nil {
		out.CompletedTaskID = res.CompletedTask.ID
	}
	return out
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, loanjob.ErrorCode(err)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
