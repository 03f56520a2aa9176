// internal/workers/loan/create-loan/handler.go
package createloan

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/lending/service"
	"loan-workers/internal/workers/loan/loanjob"
	"loan-workers/pkg/registry"
)

const TaskType = registry.TaskLoanCreate

// LoanCreator is the part of the loan service this worker drives.
type LoanCreator interface {
	CreateLoan(ctx context.Context, req service.CreateLoanRequest) (*service.CreateLoanResult, error)
}

type Handler struct {
	config  *loanjob.Config
	service LoanCreator
	schema  map[string]interface{}
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *loanjob.Config, svc LoanCreator, log logger.Logger) *Handler {
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

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
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
	h.logger.Info("loan created", map[string]interface{}{
		"jobKey": job.GetKey(),
		"loanId": output.LoanID,
		"cloned": output.Cloned,
	})
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := loanjob.Decode(job, h.schema, &input); err != nil {
		return nil, err
	}
	return &input, nil
}

// Execute instantiates the loan form for the client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()
	res, err := h.service.CreateLoan(ctx, service.CreateLoanRequest{
		ClientID: input.ClientID,
		ForGroup: input.ForGroup,
		Actor:    input.ActorID,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		LoanID:   res.Loan.ID,
		Status:   string(res.Loan.Status),
		ClientID: res.Loan.Client,
		Cloned:   res.Cloned,
	}
	if res.PriorLoan != nil {
		out.PriorLoanID = res.PriorLoan.ID
	}
	h.logger.Debug("create loan executed", map[string]interface{}{
		"clientId":   input.ClientID,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, loanjob.ErrorCode(err)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
