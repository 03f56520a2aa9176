// internal/lending/instantiate/instantiate_test.go
package instantiate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/config"
	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

// ==========================
// Test Helper Functions
// ==========================

func seedQuestion(t *testing.T, s store.Store, q models.Question) {
	t.Helper()
	if q.SubQuestions == nil {
		q.SubQuestions = []string{}
	}
	if q.Prerequisites == nil {
		q.Prerequisites = []models.Prerequisite{}
	}
	_, err := store.CreateAs(context.Background(), s, store.KindQuestion, &q)
	require.NoError(t, err)
}

// seedTemplate creates three top-level template questions, two of which own
// sub-questions (three nested in total). t-income depends on t-employed.
func seedTemplate(t *testing.T, s store.Store) []string {
	seedQuestion(t, s, models.Question{ID: "t-employed-since", QuestionText: "Employed since", Type: models.QuestionFillInBlank})
	seedQuestion(t, s, models.Question{ID: "t-employer", QuestionText: "Employer name", Type: models.QuestionFillInBlank})
	seedQuestion(t, s, models.Question{
		ID:           "t-employed",
		QuestionText: "Are you employed?",
		Type:         models.QuestionYesNo,
		Options:      []string{"Yes", "No"},
		SubQuestions: []string{"t-employer", "t-employed-since"},
	})
	seedQuestion(t, s, models.Question{ID: "t-income-amount", QuestionText: "Monthly amount", Type: models.QuestionFillInBlank})
	seedQuestion(t, s, models.Question{
		ID:            "t-income",
		QuestionText:  "Monthly income",
		Type:          models.QuestionGrouped,
		SubQuestions:  []string{"t-income-amount"},
		Prerequisites: []models.Prerequisite{{Question: "t-employed", Answer: "Yes"}},
	})
	seedQuestion(t, s, models.Question{ID: "t-purpose", QuestionText: "Loan purpose", Type: models.QuestionSingleChoice})
	return []string{"t-employed", "t-income", "t-purpose"}
}

func getQuestion(t *testing.T, s store.Store, id string) *models.Question {
	t.Helper()
	q, err := store.GetAs[models.Question](context.Background(), s, store.KindQuestion, store.ByID(id))
	require.NoError(t, err)
	return q
}

func newTestInstantiator(t *testing.T, s store.Store, matching string) *Instantiator {
	return New(s, matching, logger.NewTestLogger(t))
}

// ==========================
// Cloning Tests
// ==========================

func TestInstantiateQuestions_ClonesEveryNodeOnce(t *testing.T) {
	s := store.NewMemoryStore()
	templateIDs := seedTemplate(t, s)
	templateCount := s.Count(store.KindQuestion)

	ids, cloned, err := newTestInstantiator(t, s, config.MatchIdentity).InstantiateQuestions(context.Background(), templateIDs)
	require.NoError(t, err)

	// 3 top-level + 3 nested.
	assert.Equal(t, 6, cloned)
	assert.Len(t, ids, 3)
	assert.Equal(t, templateCount+6, s.Count(store.KindQuestion))

	templateSet := map[string]bool{}
	for _, id := range []string{"t-employed", "t-employer", "t-employed-since", "t-income", "t-income-amount", "t-purpose"} {
		templateSet[id] = true
	}

	seen := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		assert.False(t, templateSet[id], "clone reuses template id %s", id)
		assert.False(t, seen[id], "clone id %s appears twice", id)
		seen[id] = true
		q := getQuestion(t, s, id)
		for _, p := range q.Prerequisites {
			assert.False(t, templateSet[p.Question], "prerequisite still points at template %s", p.Question)
		}
		for _, sub := range q.SubQuestions {
			walk(sub)
		}
	}
	for _, id := range ids {
		walk(id)
	}
	assert.Len(t, seen, 6)

	employed := getQuestion(t, s, ids[0])
	assert.Equal(t, "Are you employed?", employed.QuestionText)
	assert.Equal(t, []string{"Yes", "No"}, employed.Options)
	require.Len(t, employed.SubQuestions, 2)
	assert.Equal(t, "Employer name", getQuestion(t, s, employed.SubQuestions[0]).QuestionText)
}

func TestInstantiateQuestions_RelinksPrerequisites(t *testing.T) {
	for _, mode := range []string{config.MatchIdentity, config.MatchText} {
		t.Run(mode, func(t *testing.T) {
			s := store.NewMemoryStore()
			ids, _, err := newTestInstantiator(t, s, mode).InstantiateQuestions(context.Background(), seedTemplate(t, s))
			require.NoError(t, err)

			income := getQuestion(t, s, ids[1])
			require.Len(t, income.Prerequisites, 1)
			assert.Equal(t, ids[0], income.Prerequisites[0].Question)
			assert.Equal(t, "Yes", income.Prerequisites[0].Answer)

			// The template is left untouched.
			assert.Equal(t, "t-employed", getQuestion(t, s, "t-income").Prerequisites[0].Question)
		})
	}
}

func TestInstantiateQuestions_DropsPrerequisitesOutsideBatch(t *testing.T) {
	s := store.NewMemoryStore()
	seedTemplate(t, s)

	// t-employed is not part of this batch.
	ids, cloned, err := newTestInstantiator(t, s, config.MatchIdentity).InstantiateQuestions(context.Background(), []string{"t-income"})
	require.NoError(t, err)
	assert.Equal(t, 2, cloned)
	assert.Empty(t, getQuestion(t, s, ids[0]).Prerequisites)
}

func TestInstantiateQuestions_SkipsMissingTemplate(t *testing.T) {
	s := store.NewMemoryStore()
	seedTemplate(t, s)

	ids, cloned, err := newTestInstantiator(t, s, config.MatchIdentity).InstantiateQuestions(context.Background(), []string{"t-purpose", "deleted"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, cloned)
}

func TestInstantiateQuestions_DuplicateTextModes(t *testing.T) {
	setup := func(t *testing.T, s store.Store) []string {
		seedQuestion(t, s, models.Question{ID: "t-a1", QuestionText: "Amount"})
		seedQuestion(t, s, models.Question{ID: "t-a2", QuestionText: "Amount"})
		seedQuestion(t, s, models.Question{
			ID:            "t-dep",
			QuestionText:  "Collateral",
			Prerequisites: []models.Prerequisite{{Question: "t-a2", Answer: "1000"}},
		})
		return []string{"t-a1", "t-a2", "t-dep"}
	}

	t.Run("identity resolves the exact clone", func(t *testing.T) {
		s := store.NewMemoryStore()
		ids, _, err := newTestInstantiator(t, s, config.MatchIdentity).InstantiateQuestions(context.Background(), setup(t, s))
		require.NoError(t, err)
		assert.Equal(t, ids[1], getQuestion(t, s, ids[2]).Prerequisites[0].Question)
	})

	t.Run("text resolves the first clone with equal text", func(t *testing.T) {
		s := store.NewMemoryStore()
		ids, _, err := newTestInstantiator(t, s, config.MatchText).InstantiateQuestions(context.Background(), setup(t, s))
		require.NoError(t, err)
		assert.Equal(t, ids[0], getQuestion(t, s, ids[2]).Prerequisites[0].Question)
	})
}

func TestClone_RejectsCyclicTree(t *testing.T) {
	s := store.NewMemoryStore()
	seedQuestion(t, s, models.Question{ID: "t-a", QuestionText: "A", SubQuestions: []string{"t-b"}})
	seedQuestion(t, s, models.Question{ID: "t-b", QuestionText: "B", SubQuestions: []string{"t-a"}})

	_, err := NewCloner(s).Clone(context.Background(), "t-a", NewAccumulator())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQuestionTreeCycle, errors.CodeOf(err))
}

func TestClone_SharedSubQuestionIsNotACycle(t *testing.T) {
	s := store.NewMemoryStore()
	seedQuestion(t, s, models.Question{ID: "t-leaf", QuestionText: "Leaf"})
	seedQuestion(t, s, models.Question{ID: "t-root", QuestionText: "Root", SubQuestions: []string{"t-leaf", "t-leaf"}})

	acc := NewAccumulator()
	root, err := NewCloner(s).Clone(context.Background(), "t-root", acc)
	require.NoError(t, err)
	require.Len(t, root.SubQuestions, 2)
	assert.NotEqual(t, root.SubQuestions[0], root.SubQuestions[1])
	assert.Equal(t, 3, acc.Len())
}

// ==========================
// Section Tests
// ==========================

func TestInstantiateSections_UsesOneBatchPerSection(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	seedQuestion(t, s, models.Question{ID: "t-s1-q", QuestionText: "Owns land?"})
	seedQuestion(t, s, models.Question{
		ID:            "t-s2-q",
		QuestionText:  "Land size",
		Prerequisites: []models.Prerequisite{{Question: "t-s1-q", Answer: "Yes"}},
	})
	for _, sec := range []models.Section{
		{ID: "t-sec-1", Title: "Assets", Number: 1, Questions: []string{"t-s1-q"}},
		{ID: "t-sec-2", Title: "Land", Number: 2, Questions: []string{"t-s2-q"}},
	} {
		sec := sec
		_, err := store.CreateAs(ctx, s, store.KindSection, &sec)
		require.NoError(t, err)
	}

	ids, cloned, err := newTestInstantiator(t, s, config.MatchIdentity).InstantiateSections(ctx, []string{"t-sec-1", "t-sec-2", "t-sec-missing"})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, 2, cloned)

	second, err := store.GetAs[models.Section](ctx, s, store.KindSection, store.ByID(ids[1]))
	require.NoError(t, err)
	assert.Equal(t, "Land", second.Title)
	assert.Equal(t, 2, second.Number)
	require.Len(t, second.Questions, 1)

	// The prerequisite targets a question of the first section, so it is dropped.
	assert.Empty(t, getQuestion(t, s, second.Questions[0]).Prerequisites)
}

func TestInstantiate_SelectsLayoutByHasSections(t *testing.T) {
	s := store.NewMemoryStore()
	form := &models.FormTemplate{ID: "form-1", Questions: seedTemplate(t, s)}

	res, err := newTestInstantiator(t, s, config.MatchIdentity).Instantiate(context.Background(), form)
	require.NoError(t, err)
	assert.Len(t, res.Questions, 3)
	assert.Empty(t, res.Sections)
	assert.Equal(t, 6, res.Cloned)
}

// ==========================
// Accumulator Tests
// ==========================

func TestAccumulator_FirstCloneWinsIdentityMap(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(PendingLink{CloneID: "c1", OriginalID: "o1", Text: "Amount"})
	acc.Add(PendingLink{CloneID: "c2", OriginalID: "o1", Text: "Amount"})

	id, ok := acc.CloneOf("o1")
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	_, ok = acc.CloneOf("o2")
	assert.False(t, ok)

	id, ok = acc.FirstByText("Amount")
	assert.True(t, ok)
	assert.Equal(t, "c1", id)
	assert.Equal(t, 2, acc.Len())
}
