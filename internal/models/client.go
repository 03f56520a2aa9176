// internal/models/client.go
package models

import "time"

// Client status values written by the loan workflow.
const (
	ClientStatusLoanNew        = "loan_application_new"
	ClientStatusLoanInProgress = "loan_application_inprogress"
	ClientStatusLoanAccepted   = "loan_application_accepted"
	ClientStatusLoanRejected   = "loan_application_rejected"
	ClientStatusLoanPaid       = "loan_paid"
)

type Client struct {
	ID        string    `json:"id,omitempty"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Branch    string    `json:"branch,omitempty"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName is "<first> <last>".
func (c Client) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Screening is the eligibility interview that opens a loan cycle.
type Screening struct {
	ID        string    `json:"id,omitempty"`
	Client    string    `json:"client"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ScreeningStatusApproved marks a completed screening.
const ScreeningStatusApproved = "approved"

// ACAT is an asset capture and assessment record.
type ACAT struct {
	ID        string    `json:"id,omitempty"`
	Client    string    `json:"client"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Cycle is one numbered pass through screening, loan and A-CAT.
type Cycle struct {
	CycleNumber int       `json:"cycleNumber"`
	Screening   string    `json:"screening,omitempty"`
	Loan        string    `json:"loan,omitempty"`
	ACAT        string    `json:"acat,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
}

// CycleHistory is the per-client cycle ledger. CycleNumber names the current cycle.
type CycleHistory struct {
	ID          string    `json:"id,omitempty"`
	Client      string    `json:"client"`
	CycleNumber int       `json:"cycleNumber"`
	Cycles      []Cycle   `json:"cycles"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Current returns the index of the current cycle, or -1.
func (h *CycleHistory) Current() int {
	for i, c := range h.Cycles {
		if c.CycleNumber == h.CycleNumber {
			return i
		}
	}
	return -1
}
