// pkg/registry/loan.go
package registry

// Task types served by the loan workers.
const (
	TaskLoanCreate       = "loan-create"
	TaskLoanUpdateStatus = "loan-update-status"
	TaskLoanUpdate       = "loan-update"
	TaskLoanFetch        = "loan-fetch"
	TaskLoanDelete       = "loan-delete"
)

var loanStatusEnum = []interface{}{
	"new", "inprogress", "submitted", "accepted", "rejected", "declined_under_review", "loan_paid",
}

func str() map[string]interface{} {
	return map[string]interface{}{"type": "string", "minLength": 1}
}

func object(required []interface{}, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"required":   required,
		"properties": props,
	}
}

var questionEditSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"id"},
	"properties": map[string]interface{}{
		"id":           str(),
		"subQuestions": map[string]interface{}{"type": "array"},
		"values":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
}

// Builtin returns the registry of loan activities.
func Builtin() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2024-06-01",
		Activities: []Activity{
			{
				ID:          "loan.create",
				DisplayName: "Create Loan Application",
				Description: "Checks cycle eligibility and instantiates the loan form template for a client",
				Category:    "loan",
				Version:     "1.0.0",
				TaskType:    TaskLoanCreate,
				InputSchema: object([]interface{}{"clientId", "actorId"}, map[string]interface{}{
					"clientId": str(),
					"actorId":  str(),
					"forGroup": map[string]interface{}{"type": "boolean"},
				}),
				OutputSchema: object([]interface{}{"loanId", "status"}, map[string]interface{}{
					"loanId": str(),
					"status": str(),
				}),
				ErrorCodes: []string{"VALIDATION_FAILED", "FORM_TEMPLATE_MISSING", "CLIENT_NOT_FOUND", "SCREENING_MISSING", "LOAN_IN_PROGRESS", "CYCLE_STAGE_INCOMPLETE"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"loan", "cycle"},
			},
			{
				ID:          "loan.update-status",
				DisplayName: "Update Loan Status",
				Description: "Moves a loan through its status workflow and applies the transition side effects",
				Category:    "loan",
				Version:     "1.0.0",
				TaskType:    TaskLoanUpdateStatus,
				InputSchema: object([]interface{}{"loanId", "status", "actorId"}, map[string]interface{}{
					"loanId":  str(),
					"actorId": str(),
					"status":  map[string]interface{}{"type": "string", "enum": loanStatusEnum},
					"comment": map[string]interface{}{"type": "string"},
				}),
				OutputSchema: object([]interface{}{"loanId", "status"}, map[string]interface{}{
					"loanId": str(),
					"status": str(),
				}),
				ErrorCodes: []string{"VALIDATION_FAILED", "LOAN_NOT_FOUND", "PERMISSION_DENIED", "INVALID_TRANSITION", "ALREADY_IN_STATUS"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"loan", "workflow"},
			},
			{
				ID:          "loan.update",
				DisplayName: "Update Loan Application",
				Description: "Saves answers on a loan form and optionally changes its status",
				Category:    "loan",
				Version:     "1.0.0",
				TaskType:    TaskLoanUpdate,
				InputSchema: object([]interface{}{"loanId", "actorId"}, map[string]interface{}{
					"loanId":    str(),
					"actorId":   str(),
					"status":    map[string]interface{}{"type": "string", "enum": loanStatusEnum},
					"comment":   map[string]interface{}{"type": "string"},
					"questions": map[string]interface{}{"type": "array", "items": questionEditSchema},
					"sections": map[string]interface{}{
						"type": "array",
						"items": object([]interface{}{"id"}, map[string]interface{}{
							"id":        str(),
							"questions": map[string]interface{}{"type": "array", "items": questionEditSchema},
						}),
					},
				}),
				OutputSchema: object([]interface{}{"loanId", "status"}, map[string]interface{}{
					"loanId": str(),
					"status": str(),
				}),
				ErrorCodes: []string{"VALIDATION_FAILED", "LOAN_NOT_FOUND", "QUESTION_NOT_FOUND", "PERMISSION_DENIED", "INVALID_TRANSITION"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"loan", "form"},
			},
			{
				ID:          "loan.fetch",
				DisplayName: "Fetch Loan Application",
				Description: "Returns a loan with its sections and question trees",
				Category:    "loan",
				Version:     "1.0.0",
				TaskType:    TaskLoanFetch,
				InputSchema: object([]interface{}{"loanId", "actorId"}, map[string]interface{}{
					"loanId":  str(),
					"actorId": str(),
				}),
				ErrorCodes: []string{"LOAN_NOT_FOUND", "PERMISSION_DENIED"},
				Timeout:    "10s",
				Retries:    3,
				Tags:       []string{"loan"},
			},
			{
				ID:          "loan.delete",
				DisplayName: "Delete Loan Application",
				Description: "Removes a loan together with its sections and questions",
				Category:    "loan",
				Version:     "1.0.0",
				TaskType:    TaskLoanDelete,
				InputSchema: object([]interface{}{"loanId", "actorId"}, map[string]interface{}{
					"loanId":  str(),
					"actorId": str(),
				}),
				OutputSchema: object([]interface{}{"loanId", "deleted"}, map[string]interface{}{
					"loanId":  str(),
					"deleted": map[string]interface{}{"type": "integer"},
				}),
				ErrorCodes: []string{"LOAN_NOT_FOUND", "PERMISSION_DENIED"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"loan"},
			},
		},
	}
}
