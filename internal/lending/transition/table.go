// internal/lending/transition/table.go
package transition

import (
	"loan-workers/internal/models"
	"loan-workers/internal/permission"
)

// Recipient selects who is notified after a transition.
type Recipient int

const (
	NotifyNobody Recipient = iota
	// NotifyTaskCreator targets whoever created the open task on the loan.
	NotifyTaskCreator
	// NotifyActor targets the user performing the transition.
	NotifyActor
)

// Effects are the side effects of one transition, applied in field order.
type Effects struct {
	ClientStatus string
	CompleteTask bool
	CreateTask   models.TaskType
	Notify       Recipient
	// Message is formatted with the client's full name.
	Message string
}

// Rule is one allowed edge of the loan workflow.
type Rule struct {
	From       models.LoanStatus
	To         models.LoanStatus
	Capability permission.Capability
	Effects    Effects
}

type edge struct {
	from, to models.LoanStatus
}

var authorizeTargets = map[models.LoanStatus]bool{
	models.LoanStatusAccepted:            true,
	models.LoanStatusRejected:            true,
	models.LoanStatusDeclinedUnderReview: true,
	models.LoanStatusLoanPaid:            true,
}

// RequiredCapability is AUTHORIZE for decision targets and UPDATE otherwise.
func RequiredCapability(to models.LoanStatus) permission.Capability {
	if authorizeTargets[to] {
		return permission.Authorize
	}
	return permission.Update
}

var toInProgress = Effects{ClientStatus: models.ClientStatusLoanInProgress}

var decisions = map[models.LoanStatus]Effects{
	models.LoanStatusAccepted: {
		ClientStatus: models.ClientStatusLoanAccepted,
		CompleteTask: true,
		Notify:       NotifyTaskCreator,
		Message:      "Loan Application of %s has been accepted",
	},
	models.LoanStatusRejected: {
		ClientStatus: models.ClientStatusLoanRejected,
		CompleteTask: true,
		Notify:       NotifyTaskCreator,
		Message:      "Loan Application of %s has been rejected",
	},
	models.LoanStatusLoanPaid: {
		ClientStatus: models.ClientStatusLoanPaid,
		CompleteTask: true,
		Notify:       NotifyTaskCreator,
		Message:      "Loan of %s has been paid",
	},
	models.LoanStatusDeclinedUnderReview: {
		ClientStatus: models.ClientStatusLoanInProgress,
		CompleteTask: true,
		CreateTask:   models.TaskTypeReview,
		Notify:       NotifyActor,
		Message:      "Loan Application of %s has been declined For Further Review",
	},
}

var rules = buildRules()

func buildRules() map[edge]Rule {
	out := map[edge]Rule{}
	add := func(from, to models.LoanStatus, fx Effects) {
		out[edge{from, to}] = Rule{From: from, To: to, Capability: RequiredCapability(to), Effects: fx}
	}

	add(models.LoanStatusNew, models.LoanStatusInProgress, toInProgress)
	add(models.LoanStatusDeclinedUnderReview, models.LoanStatusInProgress, toInProgress)
	add(models.LoanStatusInProgress, models.LoanStatusSubmitted, Effects{
		ClientStatus: models.ClientStatusLoanInProgress,
		CreateTask:   models.TaskTypeApprove,
	})
	for to, fx := range decisions {
		add(models.LoanStatusSubmitted, to, fx)
	}
	return out
}

// Lookup returns the rule for from → to.
func Lookup(from, to models.LoanStatus) (Rule, bool) {
	r, ok := rules[edge{from, to}]
	return r, ok
}

// Targets lists the statuses reachable from from.
func Targets(from models.LoanStatus) []models.LoanStatus {
	var out []models.LoanStatus
	for _, s := range models.LoanStatuses {
		if _, ok := rules[edge{from, s}]; ok {
			out = append(out, s)
		}
	}
	return out
}
