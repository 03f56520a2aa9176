// internal/models/loan.go
package models

import "time"

// LoanStatus is a state of the loan application workflow.
type LoanStatus string

const (
	LoanStatusNew                 LoanStatus = "new"
	LoanStatusInProgress          LoanStatus = "inprogress"
	LoanStatusSubmitted           LoanStatus = "submitted"
	LoanStatusAccepted            LoanStatus = "accepted"
	LoanStatusRejected            LoanStatus = "rejected"
	LoanStatusDeclinedUnderReview LoanStatus = "declined_under_review"
	LoanStatusLoanPaid            LoanStatus = "loan_paid"
)

// LoanStatuses lists every known loan status.
var LoanStatuses = []LoanStatus{
	LoanStatusNew,
	LoanStatusInProgress,
	LoanStatusSubmitted,
	LoanStatusAccepted,
	LoanStatusRejected,
	LoanStatusDeclinedUnderReview,
	LoanStatusLoanPaid,
}

// Valid reports whether s is a known loan status.
func (s LoanStatus) Valid() bool {
	for _, known := range LoanStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// LoanApplication is one client's loan form instantiated from a template.
// Questions and Sections are mutually exclusive, selected by HasSections.
type LoanApplication struct {
	ID          string     `json:"id,omitempty"`
	Client      string     `json:"client"`
	CreatedBy   string     `json:"createdBy"`
	Branch      string     `json:"branch,omitempty"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle,omitempty"`
	Purpose     string     `json:"purpose,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      LoanStatus `json:"status"`
	HasSections bool       `json:"hasSections"`
	Layout      string     `json:"layout,omitempty"`
	Disclaimer  string     `json:"disclaimer,omitempty"`
	Signatures  []string   `json:"signatures,omitempty"`
	Questions   []string   `json:"questions"`
	Sections    []string   `json:"sections"`
	Comment     string     `json:"comment,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// QuestionNode is a question with its sub-questions resolved.
type QuestionNode struct {
	Question     Question       `json:"question"`
	SubQuestions []QuestionNode `json:"subQuestions,omitempty"`
}

// SectionDetail is a section with its question trees resolved.
type SectionDetail struct {
	Section   Section        `json:"section"`
	Questions []QuestionNode `json:"questions"`
}

// LoanDetail is a loan application with its whole form resolved.
type LoanDetail struct {
	Loan      LoanApplication `json:"loan"`
	Client    *Client         `json:"client,omitempty"`
	Sections  []SectionDetail `json:"sections,omitempty"`
	Questions []QuestionNode  `json:"questions,omitempty"`
}

// QuestionIDs returns every question identity in the detail, depth first.
func (d *LoanDetail) QuestionIDs() []string {
	var ids []string
	var walk func(nodes []QuestionNode)
	walk = func(nodes []QuestionNode) {
		for _, n := range nodes {
			ids = append(ids, n.Question.ID)
			walk(n.SubQuestions)
		}
	}
	walk(d.Questions)
	for _, s := range d.Sections {
		walk(s.Questions)
	}
	return ids
}
