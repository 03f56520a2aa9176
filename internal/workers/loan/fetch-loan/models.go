// internal/workers/loan/fetch-loan/models.go
package fetchloan

import "loan-workers/internal/models"

type Input struct {
	LoanID  string `json:"loanId"`
	ActorID string `json:"actorId"`
}

type Output struct {
	LoanID string             `json:"loanId"`
	Status string             `json:"status"`
	Loan   *models.LoanDetail `json:"loanDetail"`
}
