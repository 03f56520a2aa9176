// internal/workers/loan/loanjob/job.go
package loanjob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-workers/internal/common/config"
	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/validation"
	"loan-workers/pkg/registry"
)

const defaultTimeout = 30 * time.Second

// Config is the per-worker runtime configuration.
type Config struct {
	Timeout time.Duration
	// Schema validates the job variables before they are decoded.
	Schema map[string]interface{}
}

// LoadConfig reads the worker entry for taskType and its input schema from
// reg. Either may be nil, in which case defaults and the built-in registry apply.
func LoadConfig(app *config.Config, reg *registry.ActivityRegistry, taskType string) *Config {
	if reg == nil {
		reg = registry.Builtin()
	}
	cfg := &Config{Timeout: defaultTimeout, Schema: reg.InputSchema(taskType)}
	if app == nil {
		return cfg
	}
	if timeout := config.GetDuration(config.GetWorkerConfig(app, taskType).Timeout); timeout > 0 {
		cfg.Timeout = timeout
	}
	return cfg
}

// Decode validates the job variables against schema and unmarshals them into out.
func Decode(job entities.Job, schema map[string]interface{}, out interface{}) error {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return errors.NewValidationError([]errors.Violation{
			{Field: "variables", Message: fmt.Sprintf("unreadable job variables: %v", err)},
		})
	}

	result, err := validation.ValidateInput(variables, schema)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if err := result.AsError(); err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(job.GetVariables()), out); err != nil {
		return errors.NewValidationError([]errors.Violation{
			{Field: "variables", Message: err.Error()},
		})
	}
	return nil
}

// Complete sends the complete command carrying output as job variables.
func Complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return fmt.Errorf("complete job %d: %w", job.GetKey(), err)
	}
	return nil
}

// ErrorCode labels err for the failure metric.
func ErrorCode(err error) string {
	return string(errors.Normalize(err).Code)
}
