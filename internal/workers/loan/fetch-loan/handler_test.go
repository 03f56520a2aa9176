// internal/workers/loan/fetch-loan/handler_test.go
package fetchloan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/workers/loan/loanjob"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetLoan(ctx context.Context, loanID, actor string) (*models.LoanDetail, error) {
	args := m.Called(ctx, loanID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LoanDetail), args.Error(1)
}

func newTestHandler(t *testing.T) (*Handler, *MockService) {
	svc := new(MockService)
	return NewHandler(loanjob.LoadConfig(nil, nil, TaskType), svc, logger.NewTestLogger(t)), svc
}

func TestHandler_ExecuteReturnsDetail(t *testing.T) {
	h, svc := newTestHandler(t)

	detail := &models.LoanDetail{
		Loan:   models.LoanApplication{ID: "loan-1", Status: models.LoanStatusInProgress, Questions: []string{"q-1"}},
		Client: &models.Client{ID: "client-1"},
		Questions: []models.QuestionNode{
			{Question: models.Question{ID: "q-1", QuestionText: "Are you employed?"}},
		},
	}
	svc.On("GetLoan", mock.Anything, "loan-1", "user-officer").Return(detail, nil)

	out, err := h.Execute(context.Background(), &Input{LoanID: "loan-1", ActorID: "user-officer"})
	require.NoError(t, err)
	assert.Equal(t, "loan-1", out.LoanID)
	assert.Equal(t, "inprogress", out.Status)
	assert.Same(t, detail, out.Loan)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"questionText":"Are you employed?"`)
}

func TestHandler_ExecuteDenied(t *testing.T) {
	h, svc := newTestHandler(t)

	svc.On("GetLoan", mock.Anything, "loan-1", "stranger").
		Return(nil, errors.NewPermissionDeniedError("stranger", "VIEW"))

	_, err := h.Execute(context.Background(), &Input{LoanID: "loan-1", ActorID: "stranger"})
	assert.True(t, errors.IsKind(err, errors.KindAuthorization))
}
