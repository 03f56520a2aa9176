// internal/common/errors/errors.go

// Package errors provides the typed error model shared by the loan service and
// the BPMN job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Kinds and Codes
// ==========================

// Kind classifies a failure independently of its specific code.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindPrecondition  Kind = "PRECONDITION"
	KindAuthorization Kind = "AUTHORIZATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindState         Kind = "STATE"
	KindInternal      Kind = "INTERNAL"
)

// ErrorCode is the machine-readable error identifier surfaced to callers and BPMN.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeFormTemplateMissing  ErrorCode = "FORM_TEMPLATE_MISSING"
	ErrCodeScreeningMissing     ErrorCode = "SCREENING_MISSING"
	ErrCodeScreeningInProgress  ErrorCode = "SCREENING_IN_PROGRESS"
	ErrCodeLoanInProgress       ErrorCode = "LOAN_IN_PROGRESS"
	ErrCodeACATInProgress       ErrorCode = "ACAT_IN_PROGRESS"
	ErrCodeCycleHistoryMissing  ErrorCode = "CYCLE_HISTORY_MISSING"
	ErrCodeCycleStageIncomplete ErrorCode = "CYCLE_STAGE_INCOMPLETE"
	ErrCodeCycleLoanExists      ErrorCode = "CYCLE_LOAN_EXISTS"

	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	ErrCodeClientNotFound   ErrorCode = "CLIENT_NOT_FOUND"
	ErrCodeLoanNotFound     ErrorCode = "LOAN_NOT_FOUND"
	ErrCodeQuestionNotFound ErrorCode = "QUESTION_NOT_FOUND"
	ErrCodeSectionNotFound  ErrorCode = "SECTION_NOT_FOUND"

	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeAlreadyInStatus   ErrorCode = "ALREADY_IN_STATUS"
	ErrCodeQuestionTreeCycle ErrorCode = "QUESTION_TREE_CYCLE"

	ErrCodeStoreFailure    ErrorCode = "STORE_FAILURE"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
)

var codeKinds = map[ErrorCode]Kind{
	ErrCodeValidationFailed:     KindValidation,
	ErrCodeFormTemplateMissing:  KindPrecondition,
	ErrCodeScreeningMissing:     KindPrecondition,
	ErrCodeScreeningInProgress:  KindPrecondition,
	ErrCodeLoanInProgress:       KindPrecondition,
	ErrCodeACATInProgress:       KindPrecondition,
	ErrCodeCycleHistoryMissing:  KindPrecondition,
	ErrCodeCycleStageIncomplete: KindPrecondition,
	ErrCodeCycleLoanExists:      KindPrecondition,
	ErrCodePermissionDenied:     KindAuthorization,
	ErrCodeClientNotFound:       KindNotFound,
	ErrCodeLoanNotFound:         KindNotFound,
	ErrCodeQuestionNotFound:     KindNotFound,
	ErrCodeSectionNotFound:      KindNotFound,
	ErrCodeInvalidTransition:    KindState,
	ErrCodeAlreadyInStatus:      KindState,
	ErrCodeQuestionTreeCycle:    KindState,
	ErrCodeStoreFailure:         KindInternal,
	ErrCodeInternal:             KindInternal,
	ErrCodeExternalService:      KindInternal,
	ErrCodeTimeout:              KindInternal,
}

// KindForCode returns the kind a code belongs to.
func KindForCode(code ErrorCode) Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return KindInternal
}

// Violation is one failed field rule inside a validation error.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Kind       Kind                   `json:"kind"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Violations []Violation            `json:"violations,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so sentinel comparisons work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Kind:      KindForCode(code),
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, or INTERNAL_ERROR for untyped errors.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError aggregates every violated field rule into one error.
func NewValidationError(violations []Violation) *StandardError {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	e := newError(ErrCodeValidationFailed, "Request validation failed", strings.Join(parts, "; "), false)
	e.Violations = violations
	return e
}

func NewFormTemplateMissingError(formType string) *StandardError {
	return newError(ErrCodeFormTemplateMissing,
		fmt.Sprintf("%s form is needed to be created", formType),
		fmt.Sprintf("formType: %s", formType), false)
}

func NewScreeningMissingError(clientID string) *StandardError {
	return newError(ErrCodeScreeningMissing,
		"Screening form for client is not available",
		fmt.Sprintf("clientId: %s", clientID), false)
}

func NewScreeningInProgressError(clientID, status string) *StandardError {
	return newError(ErrCodeScreeningInProgress,
		"Client has a screening in progress",
		fmt.Sprintf("clientId: %s, status: %s", clientID, status), false)
}

func NewLoanInProgressError(clientID, status string) *StandardError {
	return newError(ErrCodeLoanInProgress,
		"Client has a loan in progress",
		fmt.Sprintf("clientId: %s, status: %s", clientID, status), false)
}

func NewACATInProgressError(clientID, status string) *StandardError {
	return newError(ErrCodeACATInProgress,
		"Client has an A-CAT in progress",
		fmt.Sprintf("clientId: %s, status: %s", clientID, status), false)
}

func NewCycleHistoryMissingError(clientID string) *StandardError {
	return newError(ErrCodeCycleHistoryMissing,
		"Client loan cycle history is missing",
		fmt.Sprintf("clientId: %s", clientID), false)
}

// NewCycleStageIncompleteError names the stage the current cycle is missing.
func NewCycleStageIncompleteError(cycle int, stage string) *StandardError {
	return newError(ErrCodeCycleStageIncomplete,
		fmt.Sprintf("%s for cycle %d is not completed", stage, cycle),
		fmt.Sprintf("cycle: %d, stage: %s", cycle, stage), false).
		WithMetadata("stage", stage)
}

func NewCycleLoanExistsError(cycle int, loanID string) *StandardError {
	return newError(ErrCodeCycleLoanExists,
		fmt.Sprintf("Loan application already created for cycle %d, use the existing application for the client", cycle),
		fmt.Sprintf("cycle: %d, loanId: %s", cycle, loanID), false)
}

func NewPermissionDeniedError(user, capability string) *StandardError {
	return newError(ErrCodePermissionDenied,
		"You Don't have enough permissions to complete this action",
		fmt.Sprintf("user: %s, capability: %s", user, capability), false).
		WithMetadata("capability", capability)
}

func NewClientNotFoundError(clientID string) *StandardError {
	return newError(ErrCodeClientNotFound, "Client does not exist",
		fmt.Sprintf("clientId: %s", clientID), false)
}

func NewLoanNotFoundError(loanID string) *StandardError {
	return newError(ErrCodeLoanNotFound, "Loan application does not exist",
		fmt.Sprintf("loanId: %s", loanID), false)
}

func NewQuestionNotFoundError(questionID string) *StandardError {
	return newError(ErrCodeQuestionNotFound, "Question does not exist",
		fmt.Sprintf("questionId: %s", questionID), false)
}

func NewSectionNotFoundError(sectionID string) *StandardError {
	return newError(ErrCodeSectionNotFound, "Section does not exist",
		fmt.Sprintf("sectionId: %s", sectionID), false)
}

func NewInvalidTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidTransition,
		fmt.Sprintf("Loan cannot move from %s to %s", from, to),
		fmt.Sprintf("from: %s, to: %s", from, to), false)
}

func NewAlreadyInStatusError(status string) *StandardError {
	return newError(ErrCodeAlreadyInStatus,
		fmt.Sprintf("Loan Is Already %s", status),
		fmt.Sprintf("status: %s", status), false)
}

func NewQuestionTreeCycleError(questionID string) *StandardError {
	return newError(ErrCodeQuestionTreeCycle,
		"Question tree contains a cycle",
		fmt.Sprintf("questionId: %s", questionID), false)
}

// NewStoreFailureError wraps a persistence failure. These are retryable.
func NewStoreFailureError(op string, err error) *StandardError {
	e := newError(ErrCodeStoreFailure, "Entity store operation failed",
		fmt.Sprintf("op: %s, error: %v", op, err), true)
	e.cause = err
	return e
}

// WrapStore returns err unchanged when it already is a StandardError and a
// STORE_FAILURE otherwise.
func WrapStore(op string, err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return NewStoreFailureError(op, err)
}

func NewInternalError(err error) *StandardError {
	e := newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
	e.cause = err
	return e
}

func NewExternalServiceError(service string, err error) *StandardError {
	e := newError(ErrCodeExternalService,
		fmt.Sprintf("External service '%s' error", service), err.Error(), true)
	e.cause = err
	return e
}

func NewTimeoutError(service string, err error) *StandardError {
	e := newError(ErrCodeTimeout,
		fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
	e.cause = err
	return e
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping overrides the BPMN code for internal codes that the process
// models catch under a broader name. Unlisted codes are thrown as-is.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeScreeningMissing:     "CYCLE_NOT_ELIGIBLE",
	ErrCodeScreeningInProgress:  "CYCLE_NOT_ELIGIBLE",
	ErrCodeLoanInProgress:       "CYCLE_NOT_ELIGIBLE",
	ErrCodeACATInProgress:       "CYCLE_NOT_ELIGIBLE",
	ErrCodeCycleHistoryMissing:  "CYCLE_NOT_ELIGIBLE",
	ErrCodeCycleStageIncomplete: "CYCLE_NOT_ELIGIBLE",
	ErrCodeCycleLoanExists:      "CYCLE_NOT_ELIGIBLE",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreFailure, ErrCodeExternalService:
		return 3
	case ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorKind":         string(stdErr.Kind),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if len(stdErr.Violations) > 0 {
		vars["violations"] = stdErr.Violations
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory returns a coarse category used in log lines and dashboards.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CYCLE") || strings.Contains(codeStr, "SCREENING") ||
		strings.Contains(codeStr, "ACAT") || strings.Contains(codeStr, "IN_PROGRESS"):
		return "ELIGIBILITY"
	case strings.Contains(codeStr, "PERMISSION"):
		return "AUTHORIZATION"
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "STATUS"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "STORE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOT_FOUND") || strings.Contains(codeStr, "MISSING"):
		return "LOOKUP"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
