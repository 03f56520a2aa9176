// internal/workers/loan/update-loan/models.go
package updateloan

import "loan-workers/internal/store"

type Input struct {
	LoanID    string           `json:"loanId"`
	ActorID   string           `json:"actorId"`
	Status    string           `json:"status,omitempty"`
	Comment   string           `json:"comment,omitempty"`
	Questions []store.Document `json:"questions,omitempty"`
	Sections  []store.Document `json:"sections,omitempty"`
}

type Output struct {
	LoanID       string `json:"loanId"`
	Status       string `json:"status"`
	Transitioned bool   `json:"transitioned"`
	// Written counts the question and section records saved.
	Written       int    `json:"written"`
	CreatedTaskID string `json:"createdTaskId,omitempty"`
}
