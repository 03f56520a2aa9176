// internal/lending/transition/nested.go
package transition

import (
	"context"
	stderrors "errors"
	"fmt"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

// Keys never copied from an edit payload into a stored record.
var strippedKeys = []string{
	store.FieldID, store.FieldCreatedAt, store.FieldUpdatedAt,
	"_id", "_v", "__v", "date_created", "last_modified",
}

// NestedWriter persists edited question trees one record at a time.
type NestedWriter struct {
	store store.Store
	// Questions and Sections, when set, restrict writes to these ids.
	Questions map[string]bool
	Sections  map[string]bool

	seen    map[string]bool
	written int
}

func NewNestedWriter(s store.Store) *NestedWriter {
	return &NestedWriter{store: s, seen: map[string]bool{}}
}

// Written returns how many records have been persisted.
func (w *NestedWriter) Written() int {
	return w.written
}

// SaveQuestions persists every question in edits and, recursively, every
// sub-question given as an object. Sub-question lists are stored as ids.
func (w *NestedWriter) SaveQuestions(ctx context.Context, edits []store.Document) error {
	for i, edit := range edits {
		if _, err := w.saveQuestion(ctx, edit, fmt.Sprintf("questions[%d]", i), nil); err != nil {
			return err
		}
	}
	return nil
}

// SaveSections persists section fields and the question trees under them.
func (w *NestedWriter) SaveSections(ctx context.Context, edits []store.Document) error {
	for i, edit := range edits {
		path := fmt.Sprintf("sections[%d]", i)
		id, err := w.identity(edit, path, store.KindSection, w.Sections)
		if err != nil {
			return err
		}

		patch := stripped(edit)
		if raw, ok := edit["questions"]; ok {
			ids, err := w.saveChildren(ctx, raw, path+".questions", nil)
			if err != nil {
				return err
			}
			patch["questions"] = ids
		}
		if err := w.update(ctx, store.KindSection, id, patch); err != nil {
			return err
		}
	}
	return nil
}

// saveQuestion writes edit and its children. ancestors holds the ids of the
// questions above edit in the payload.
func (w *NestedWriter) saveQuestion(ctx context.Context, edit store.Document, path string, ancestors map[string]bool) (string, error) {
	id, err := w.identity(edit, path, store.KindQuestion, w.Questions)
	if err != nil {
		return "", err
	}

	patch := stripped(edit)
	if raw, ok := edit["subQuestions"]; ok {
		below := make(map[string]bool, len(ancestors)+1)
		for a := range ancestors {
			below[a] = true
		}
		below[id] = true
		ids, err := w.saveChildren(ctx, raw, path+".subQuestions", below)
		if err != nil {
			return "", err
		}
		patch["subQuestions"] = ids
	}
	if err := w.update(ctx, store.KindQuestion, id, patch); err != nil {
		return "", err
	}
	return id, nil
}

// saveChildren accepts a list mixing question objects and bare ids. No child
// may lead back to one of ancestors, either directly or through the stored
// sub-question lists.
func (w *NestedWriter) saveChildren(ctx context.Context, raw interface{}, path string, ancestors map[string]bool) ([]string, error) {
	items, ok := raw.([]interface{})
	if !ok && raw != nil {
		return nil, errors.NewValidationError([]errors.Violation{{Field: path, Message: "must be a list"}})
	}
	ids := make([]string, 0, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		switch v := item.(type) {
		case string:
			if w.Questions != nil && !w.Questions[v] {
				return nil, errors.NewQuestionNotFoundError(v)
			}
			if ancestors[v] {
				return nil, errors.NewQuestionTreeCycleError(v)
			}
			ids = append(ids, v)
		case map[string]interface{}:
			id, err := w.saveQuestion(ctx, store.Document(v), itemPath, ancestors)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		case store.Document:
			id, err := w.saveQuestion(ctx, v, itemPath, ancestors)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		default:
			return nil, errors.NewValidationError([]errors.Violation{{Field: itemPath, Message: "must be a question or an id"}})
		}
	}
	for _, id := range ids {
		if err := w.checkReach(ctx, id, ancestors); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// checkReach walks the stored tree under root and fails when it reaches one
// of ancestors. Children written earlier in this walk are already stored.
func (w *NestedWriter) checkReach(ctx context.Context, root string, ancestors map[string]bool) error {
	if len(ancestors) == 0 {
		return nil
	}
	visited := map[string]bool{root: true}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		q, err := store.GetAs[models.Question](ctx, w.store, store.KindQuestion, store.ByID(id))
		if stderrors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return errors.WrapStore("load question", err)
		}
		for _, sub := range q.SubQuestions {
			if ancestors[sub] {
				return errors.NewQuestionTreeCycleError(sub)
			}
			if !visited[sub] {
				visited[sub] = true
				stack = append(stack, sub)
			}
		}
	}
	return nil
}

func (w *NestedWriter) identity(edit store.Document, path string, kind store.Kind, allowed map[string]bool) (string, error) {
	id := edit.ID()
	if id == "" {
		id, _ = edit["_id"].(string)
	}
	if id == "" {
		return "", errors.NewValidationError([]errors.Violation{{Field: path + ".id", Message: "is required"}})
	}
	key := string(kind) + ":" + id
	if w.seen[key] {
		return "", errors.NewValidationError([]errors.Violation{{Field: path + ".id", Message: fmt.Sprintf("%s appears more than once", id)}})
	}
	w.seen[key] = true
	if allowed != nil && !allowed[id] {
		return "", notFound(kind, id)
	}
	return id, nil
}

func (w *NestedWriter) update(ctx context.Context, kind store.Kind, id string, patch store.Document) error {
	_, err := w.store.Update(ctx, kind, store.ByID(id), patch)
	if stderrors.Is(err, store.ErrNotFound) {
		return notFound(kind, id)
	}
	if err != nil {
		return errors.WrapStore("save "+string(kind), err)
	}
	w.written++
	return nil
}

func notFound(kind store.Kind, id string) error {
	if kind == store.KindSection {
		return errors.NewSectionNotFoundError(id)
	}
	return errors.NewQuestionNotFoundError(id)
}

func stripped(edit store.Document) store.Document {
	out := make(store.Document, len(edit))
	for k, v := range edit {
		out[k] = v
	}
	for _, k := range strippedKeys {
		delete(out, k)
	}
	return out
}
