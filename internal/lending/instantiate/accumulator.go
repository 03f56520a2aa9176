// internal/lending/instantiate/accumulator.go
package instantiate

import "loan-workers/internal/models"

// PendingLink is a clone whose prerequisites still point at template questions.
type PendingLink struct {
	CloneID       string
	OriginalID    string
	Text          string
	Prerequisites []models.Prerequisite
}

// Accumulator collects the clones of one batch. A batch is one section, or
// the flat top-level question list. It is never shared across batches.
type Accumulator struct {
	links      []PendingLink
	byOriginal map[string]string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{byOriginal: make(map[string]string)}
}

// Add records a clone. The first clone of an original wins the identity map.
func (a *Accumulator) Add(link PendingLink) {
	a.links = append(a.links, link)
	if _, seen := a.byOriginal[link.OriginalID]; !seen {
		a.byOriginal[link.OriginalID] = link.CloneID
	}
}

func (a *Accumulator) Len() int {
	return len(a.links)
}

// Links returns the recorded clones in creation order.
func (a *Accumulator) Links() []PendingLink {
	return a.links
}

// CloneOf maps a template question identity to its clone in this batch.
func (a *Accumulator) CloneOf(originalID string) (string, bool) {
	id, ok := a.byOriginal[originalID]
	return id, ok
}

// FirstByText returns the earliest clone whose text equals text.
func (a *Accumulator) FirstByText(text string) (string, bool) {
	for _, l := range a.links {
		if l.Text == text {
			return l.CloneID, true
		}
	}
	return "", false
}
