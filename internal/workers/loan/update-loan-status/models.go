// internal/workers/loan/update-loan-status/models.go
package updateloanstatus

type Input struct {
	LoanID  string `json:"loanId"`
	ActorID string `json:"actorId"`
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

type Output struct {
	LoanID       string `json:"loanId"`
	Status       string `json:"status"`
	Transitioned bool   `json:"transitioned"`
	// CreatedTaskID is the approval or review task opened by the transition.
	CreatedTaskID   string `json:"createdTaskId,omitempty"`
	CompletedTaskID string `json:"completedTaskId,omitempty"`
	Notified        int    `json:"notified"`
}
