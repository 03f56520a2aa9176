// internal/workers/loan/delete-loan/models.go
package deleteloan

type Input struct {
	LoanID  string `json:"loanId"`
	ActorID string `json:"actorId"`
}

type Output struct {
	LoanID   string `json:"loanId"`
	ClientID string `json:"clientId"`
	Deleted  int    `json:"deleted"`
}
