// internal/lending/instantiate/linker.go
package instantiate

import (
	"context"
	stderrors "errors"

	"loan-workers/internal/common/config"
	"loan-workers/internal/common/errors"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

// Linker points the prerequisites of a batch's clones at clones of the same batch.
type Linker struct {
	store    store.Store
	matching string
}

// NewLinker selects identity matching unless matching is config.MatchText.
func NewLinker(s store.Store, matching string) *Linker {
	if matching != config.MatchText {
		matching = config.MatchIdentity
	}
	return &Linker{store: s, matching: matching}
}

// Link resolves and persists prerequisites for every clone in acc that had
// any. Prerequisites with no clone in the batch are dropped.
func (l *Linker) Link(ctx context.Context, acc *Accumulator) error {
	for _, link := range acc.Links() {
		if len(link.Prerequisites) == 0 {
			continue
		}

		resolved := make([]models.Prerequisite, 0, len(link.Prerequisites))
		for _, p := range link.Prerequisites {
			target, ok, err := l.resolve(ctx, acc, p.Question)
			if err != nil {
				return err
			}
			if ok {
				resolved = append(resolved, models.Prerequisite{Question: target, Answer: p.Answer})
			}
		}

		if _, err := l.store.Update(ctx, store.KindQuestion, store.ByID(link.CloneID), store.Document{
			"prerequisites": resolved,
		}); err != nil {
			return errors.NewStoreFailureError("link prerequisites", err)
		}
	}
	return nil
}

func (l *Linker) resolve(ctx context.Context, acc *Accumulator, originalID string) (string, bool, error) {
	if l.matching == config.MatchIdentity {
		id, ok := acc.CloneOf(originalID)
		return id, ok, nil
	}

	// Text matching picks the first clone with the same text, so duplicate
	// texts in one batch resolve to the earliest of them.
	ref, err := store.GetAs[models.Question](ctx, l.store, store.KindQuestion, store.ByID(originalID))
	if stderrors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewStoreFailureError("load prerequisite question", err)
	}
	id, ok := acc.FirstByText(ref.QuestionText)
	return id, ok, nil
}
