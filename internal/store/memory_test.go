// internal/store/memory_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

// ==========================
// CRUD Tests
// ==========================

func TestMemoryStore_CreateAssignsIdentityAndTimestamps(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	doc, err := s.Create(ctx, KindClient, Document{"firstName": "Abebe", "status": "new"})
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID())
	assert.Equal(t, "2024-03-01T09:00:01Z", doc[FieldCreatedAt])
	assert.Equal(t, doc[FieldCreatedAt], doc[FieldUpdatedAt])

	got, err := s.Get(ctx, KindClient, ByID(doc.ID()))
	require.NoError(t, err)
	assert.Equal(t, "Abebe", got["firstName"])
}

func TestMemoryStore_CreateRejectsDuplicateID(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, KindLoan, Document{"id": "loan-1"})
	require.NoError(t, err)
	_, err = s.Create(ctx, KindLoan, Document{"id": "loan-1"})
	assert.Error(t, err)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	s := newTestMemoryStore()
	_, err := s.Get(context.Background(), KindLoan, ByID("missing"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_ListNewestFirstWithFilter(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	for _, status := range []string{"rejected", "accepted", "loan_paid"} {
		_, err := s.Create(ctx, KindLoan, Document{"client": "c1", "status": status})
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, KindLoan, Document{"client": "c2", "status": "new"})
	require.NoError(t, err)

	docs, err := s.List(ctx, KindLoan, Filter{"client": "c1"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "loan_paid", docs[0]["status"])
	assert.Equal(t, "rejected", docs[2]["status"])

	newest, err := s.Get(ctx, KindLoan, Filter{"client": "c1"})
	require.NoError(t, err)
	assert.Equal(t, "loan_paid", newest["status"])
}

func TestMemoryStore_FilterNormalizesNumbers(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, KindSection, Document{"number": 2})
	require.NoError(t, err)

	got, err := s.Get(ctx, KindSection, Filter{"number": 2})
	require.NoError(t, err)
	assert.Equal(t, float64(2), got["number"])
}

func TestMemoryStore_UpdateMergesPatchAndKeepsReservedFields(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	created, err := s.Create(ctx, KindTask, Document{"status": "pending", "task": "Approve"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, KindTask, ByID(created.ID()), Document{
		"status":    "completed",
		"id":        "hijack",
		"createdAt": "1999-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID(), updated.ID())
	assert.Equal(t, "completed", updated["status"])
	assert.Equal(t, "Approve", updated["task"])
	assert.Equal(t, created[FieldCreatedAt], updated[FieldCreatedAt])
	assert.NotEqual(t, created[FieldUpdatedAt], updated[FieldUpdatedAt])

	_, err = s.Update(ctx, KindTask, ByID("nope"), Document{"status": "x"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_ReturnedDocumentsAreCopies(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	created, err := s.Create(ctx, KindQuestion, Document{"subQuestions": []string{"a"}})
	require.NoError(t, err)

	got, err := s.Get(ctx, KindQuestion, ByID(created.ID()))
	require.NoError(t, err)
	got["subQuestions"].([]interface{})[0] = "mutated"

	again, err := s.Get(ctx, KindQuestion, ByID(created.ID()))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a"}, again["subQuestions"])
}

func TestMemoryStore_Delete(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, KindQuestion, Document{"owner": "loan-1"})
		require.NoError(t, err)
	}
	n, err := s.Delete(ctx, KindQuestion, Filter{"owner": "loan-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, s.Count(KindQuestion))
}

// ==========================
// Transaction Tests
// ==========================

func TestMemoryStore_RunInTxCommitsOnSuccess(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(tx Store) error {
		loan, err := tx.Create(ctx, KindLoan, Document{"status": "new"})
		if err != nil {
			return err
		}
		_, err = tx.Update(ctx, KindLoan, ByID(loan.ID()), Document{"status": "inprogress"})
		return err
	})
	require.NoError(t, err)

	docs, err := s.List(ctx, KindLoan, Filter{"status": "inprogress"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemoryStore_RunInTxDiscardsOnError(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	existing, err := s.Create(ctx, KindClient, Document{"status": "screening_approved"})
	require.NoError(t, err)

	boom := errors.New("notification failed")
	err = s.RunInTx(ctx, func(tx Store) error {
		if _, err := tx.Update(ctx, KindClient, ByID(existing.ID()), Document{"status": "loan_application_new"}); err != nil {
			return err
		}
		if _, err := tx.Create(ctx, KindLoan, Document{"client": existing.ID()}); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	client, err := s.Get(ctx, KindClient, ByID(existing.ID()))
	require.NoError(t, err)
	assert.Equal(t, "screening_approved", client["status"])
	assert.Equal(t, 0, s.Count(KindLoan))
}

func TestMemoryStore_NestedRunInTxJoinsOuter(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(tx Store) error {
		if err := tx.RunInTx(ctx, func(inner Store) error {
			_, err := inner.Create(ctx, KindTask, Document{"task": "inner"})
			return err
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Count(KindTask))
}

// ==========================
// Typed Helper Tests
// ==========================

func TestTypedHelpers_RoundTripModels(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	q, err := CreateAs(ctx, s, KindQuestion, &models.Question{
		QuestionText: "Do you own livestock?",
		Type:         models.QuestionYesNo,
		Options:      []string{"Yes", "No"},
		SubQuestions: []string{},
		Prerequisites: []models.Prerequisite{
			{Question: "q-template", Answer: "Yes"},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.False(t, q.CreatedAt.IsZero())

	updated, err := UpdateAs[models.Question](ctx, s, KindQuestion, ByID(q.ID), Document{"values": []string{"Yes"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes"}, updated.Values)

	list, err := ListAs[models.Question](ctx, s, KindQuestion, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "q-template", list[0].Prerequisites[0].Question)

	_, err = GetAs[models.Question](ctx, s, KindQuestion, ByID("missing"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_OuterReadsInsideTxSeeCommittedState(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	acct, err := s.Create(ctx, KindAccount, Document{"user": "u1", "role": "officer"})
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(tx Store) error {
		if _, err := tx.Update(ctx, KindAccount, ByID(acct.ID()), Document{"role": "manager"}); err != nil {
			return err
		}
		outer, err := s.Get(ctx, KindAccount, ByID(acct.ID()))
		require.NoError(t, err)
		assert.Equal(t, "officer", outer["role"])
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, KindAccount, ByID(acct.ID()))
	require.NoError(t, err)
	assert.Equal(t, "manager", got["role"])
}
