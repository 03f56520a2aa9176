// internal/lending/instantiate/instantiate.go
package instantiate

import (
	"context"
	stderrors "errors"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

// Result lists what one form instantiation created.
type Result struct {
	Questions []string
	Sections  []string
	Cloned    int
}

// Instantiator turns a form template into loan-owned sections and questions.
// It should be built on the transactional store of the calling operation.
type Instantiator struct {
	store  store.Store
	cloner *Cloner
	linker *Linker
	logger logger.Logger
}

func New(s store.Store, matching string, log logger.Logger) *Instantiator {
	return &Instantiator{
		store:  s,
		cloner: NewCloner(s),
		linker: NewLinker(s, matching),
		logger: log,
	}
}

// Instantiate clones the sections or the flat question list of form,
// whichever HasSections selects.
func (i *Instantiator) Instantiate(ctx context.Context, form *models.FormTemplate) (*Result, error) {
	res := &Result{}
	var err error
	if form.HasSections {
		res.Sections, res.Cloned, err = i.InstantiateSections(ctx, form.Sections)
	} else {
		res.Questions, res.Cloned, err = i.InstantiateQuestions(ctx, form.Questions)
	}
	if err != nil {
		return nil, err
	}

	i.logger.Debug("form instantiated", map[string]interface{}{
		"form":      form.ID,
		"sections":  len(res.Sections),
		"questions": len(res.Questions),
		"cloned":    res.Cloned,
	})
	return res, nil
}

// InstantiateQuestions clones templateIDs as one batch and links their
// prerequisites. It returns the top-level clone ids and the number of
// questions created.
func (i *Instantiator) InstantiateQuestions(ctx context.Context, templateIDs []string) ([]string, int, error) {
	acc := NewAccumulator()
	ids := make([]string, 0, len(templateIDs))
	for _, id := range templateIDs {
		q, err := i.cloner.Clone(ctx, id, acc)
		if err != nil {
			return nil, 0, err
		}
		if q != nil {
			ids = append(ids, q.ID)
		}
	}
	if err := i.linker.Link(ctx, acc); err != nil {
		return nil, 0, err
	}
	return ids, acc.Len(), nil
}

// InstantiateSections clones each template section with its own batch.
// Missing sections are skipped.
func (i *Instantiator) InstantiateSections(ctx context.Context, sectionIDs []string) ([]string, int, error) {
	ids := make([]string, 0, len(sectionIDs))
	total := 0
	for _, sectionID := range sectionIDs {
		tmpl, err := store.GetAs[models.Section](ctx, i.store, store.KindSection, store.ByID(sectionID))
		if stderrors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, errors.NewStoreFailureError("load template section", err)
		}

		questions, n, err := i.InstantiateQuestions(ctx, tmpl.Questions)
		if err != nil {
			return nil, 0, err
		}
		total += n

		created, err := store.CreateAs(ctx, i.store, store.KindSection, &models.Section{
			Title:     tmpl.Title,
			Number:    tmpl.Number,
			Questions: questions,
		})
		if err != nil {
			return nil, 0, errors.NewStoreFailureError("create section", err)
		}
		ids = append(ids, created.ID)
	}
	return ids, total, nil
}
