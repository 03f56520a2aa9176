// internal/workers/loan/create-loan/models.go
package createloan

type Input struct {
	ClientID string `json:"clientId"`
	ActorID  string `json:"actorId"`
	ForGroup bool   `json:"forGroup,omitempty"`
}

type Output struct {
	LoanID      string `json:"loanId"`
	Status      string `json:"status"`
	ClientID    string `json:"clientId"`
	Cloned      int    `json:"cloned"`
	PriorLoanID string `json:"priorLoanId,omitempty"`
}
