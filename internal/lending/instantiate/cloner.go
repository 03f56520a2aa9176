// internal/lending/instantiate/cloner.go
package instantiate

import (
	"context"
	stderrors "errors"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

// Cloner copies template question trees into new question records.
type Cloner struct {
	store store.Store
}

func NewCloner(s store.Store) *Cloner {
	return &Cloner{store: s}
}

// Clone deep-copies the template question templateID and its sub-questions,
// children first, and records every clone in acc. The clone starts with no
// prerequisites. A missing template question yields (nil, nil).
func (c *Cloner) Clone(ctx context.Context, templateID string, acc *Accumulator) (*models.Question, error) {
	return c.clone(ctx, templateID, map[string]bool{}, acc)
}

func (c *Cloner) clone(ctx context.Context, id string, path map[string]bool, acc *Accumulator) (*models.Question, error) {
	if path[id] {
		return nil, errors.NewQuestionTreeCycleError(id)
	}

	tmpl, err := store.GetAs[models.Question](ctx, c.store, store.KindQuestion, store.ByID(id))
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreFailureError("load template question", err)
	}

	path[id] = true
	defer delete(path, id)

	subs := make([]string, 0, len(tmpl.SubQuestions))
	for _, subID := range tmpl.SubQuestions {
		sub, err := c.clone(ctx, subID, path, acc)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			subs = append(subs, sub.ID)
		}
	}

	q := *tmpl
	q.ID = ""
	q.SubQuestions = subs
	q.Prerequisites = []models.Prerequisite{}

	created, err := store.CreateAs(ctx, c.store, store.KindQuestion, &q)
	if err != nil {
		return nil, errors.NewStoreFailureError("create question", err)
	}

	acc.Add(PendingLink{
		CloneID:       created.ID,
		OriginalID:    id,
		Text:          tmpl.QuestionText,
		Prerequisites: tmpl.Prerequisites,
	})
	return created, nil
}
