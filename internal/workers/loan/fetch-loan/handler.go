// internal/workers/loan/fetch-loan/handler.go
package fetchloan

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/models"
	"loan-workers/internal/workers/loan/loanjob"
	"loan-workers/pkg/registry"
)

const TaskType = registry.TaskLoanFetch

type LoanReader interface {
	GetLoan(ctx context.Context, loanID, actor string) (*models.LoanDetail, error)
}

type Handler struct {
	config  *loanjob.Config
	service LoanReader
	schema  map[string]interface{}
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *loanjob.Config, svc LoanReader, log logger.Logger) *Handler {
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	detail, err := h.service.GetLoan(ctx, input.LoanID, input.ActorID)
	if err != nil {
		return nil, err
	}
	return &Output{
		LoanID: detail.Loan.ID,
		Status: string(detail.Loan.Status),
		Loan:   detail,
	}, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, loanjob.ErrorCode(err)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
