// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_AssignKinds(t *testing.T) {
	tests := []struct {
		name string
		err  *StandardError
		kind Kind
	}{
		{"validation", NewValidationError([]Violation{{Field: "clientId", Message: "required"}}), KindValidation},
		{"form missing", NewFormTemplateMissingError("Loan Application"), KindPrecondition},
		{"loan in progress", NewLoanInProgressError("c1", "submitted"), KindPrecondition},
		{"permission", NewPermissionDeniedError("u1", "AUTHORIZE"), KindAuthorization},
		{"loan not found", NewLoanNotFoundError("l1"), KindNotFound},
		{"transition", NewInvalidTransitionError("new", "accepted"), KindState},
		{"same status", NewAlreadyInStatusError("submitted"), KindState},
		{"store", NewStoreFailureError("get", stderrors.New("conn reset")), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestNewValidationError_AggregatesViolations(t *testing.T) {
	err := NewValidationError([]Violation{
		{Field: "loanId", Message: "is required"},
		{Field: "status", Message: "unknown status"},
	})

	assert.Len(t, err.Violations, 2)
	assert.Equal(t, "loanId: is required; status: unknown status", err.Details)
}

func TestKindOf_WrappedAndUntyped(t *testing.T) {
	wrapped := fmt.Errorf("create loan: %w", NewClientNotFoundError("c9"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, ErrCodeClientNotFound, CodeOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))

	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("ctx: %w", NewAlreadyInStatusError("accepted"))
	assert.True(t, stderrors.Is(err, NewAlreadyInStatusError("")))
	assert.False(t, stderrors.Is(err, NewInvalidTransitionError("", "")))
}

func TestStoreFailure_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("deadlock detected")
	err := NewStoreFailureError("update", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("eligibility codes collapse to one BPMN code", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewACATInProgressError("c1", "new"))
		assert.Equal(t, "CYCLE_NOT_ELIGIBLE", bpmn.Code)
		assert.Equal(t, 0, bpmn.Retries)
		assert.Equal(t, "ACAT_IN_PROGRESS", bpmn.ErrorVariables["originalErrorCode"])
	})

	t.Run("unmapped codes pass through", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewPermissionDeniedError("u1", "UPDATE"))
		assert.Equal(t, "PERMISSION_DENIED", bpmn.Code)
		assert.Equal(t, "AUTHORIZATION", bpmn.ErrorVariables["errorKind"])
	})

	t.Run("store failures keep retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewStoreFailureError("create", stderrors.New("timeout")))
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
	})

	t.Run("violations become variables", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewValidationError([]Violation{{Field: "status", Message: "required"}}))
		vars := bpmn.ToErrorVariables()
		require.Contains(t, vars, "violations")
		assert.Equal(t, "VALIDATION_FAILED", vars["errorCode"])
	})
}

func TestNormalize(t *testing.T) {
	std := NewLoanNotFoundError("l1")
	assert.Same(t, std, Normalize(fmt.Errorf("wrap: %w", std)))

	n := Normalize(stderrors.New("surprise"))
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.Equal(t, "surprise", n.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "ELIGIBILITY", GetErrorCategory(ErrCodeCycleHistoryMissing))
	assert.Equal(t, "AUTHORIZATION", GetErrorCategory(ErrCodePermissionDenied))
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeInvalidTransition))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeStoreFailure))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeFormTemplateMissing))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
}

func TestWrapStore(t *testing.T) {
	typed := NewLoanNotFoundError("l1")
	assert.Same(t, typed, WrapStore("load loan", typed))

	wrapped := WrapStore("load loan", stderrors.New("connection refused"))
	assert.Equal(t, ErrCodeStoreFailure, wrapped.Code)
	assert.True(t, wrapped.Retryable)
	assert.EqualError(t, wrapped.Unwrap(), "connection refused")
}
