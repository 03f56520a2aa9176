// internal/lending/template/template.go
package template

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

// Template is the authoring form of a FormTemplate. Questions are addressed
// by local keys, which prerequisites refer to.
type Template struct {
	Type       string     `yaml:"type"`
	Title      string     `yaml:"title"`
	Subtitle   string     `yaml:"subtitle"`
	Purpose    string     `yaml:"purpose"`
	Layout     string     `yaml:"layout"`
	Disclaimer string     `yaml:"disclaimer"`
	Signatures []string   `yaml:"signatures"`
	Questions  []Question `yaml:"questions"`
	Sections   []Section  `yaml:"sections"`
}

type Section struct {
	Title     string     `yaml:"title"`
	Questions []Question `yaml:"questions"`
}

type Question struct {
	Key              string         `yaml:"key"`
	Text             string         `yaml:"text"`
	Remark           string         `yaml:"remark"`
	Type             string         `yaml:"type"`
	Required         bool           `yaml:"required"`
	Show             *bool          `yaml:"show"`
	Options          []string       `yaml:"options"`
	Measurement      string         `yaml:"measurement_unit"`
	ValidationFactor string         `yaml:"validation_factor"`
	SubQuestions     []Question     `yaml:"sub_questions"`
	Prerequisites    []Prerequisite `yaml:"prerequisites"`
}

type Prerequisite struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Load reads and validates a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML and validates the result.
func Parse(data []byte) (*Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("template: parse: %w", err)
	}
	if tpl.Type == "" {
		tpl.Type = "Loan Application"
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return &tpl, nil
}

var questionTypes = map[string]bool{
	string(models.QuestionYesNo):          true,
	string(models.QuestionFillInBlank):    true,
	string(models.QuestionMultipleChoice): true,
	string(models.QuestionSingleChoice):   true,
	string(models.QuestionGrouped):        true,
}

// Validate checks keys are unique and every prerequisite names a known key.
func (t *Template) Validate() error {
	var violations []errors.Violation
	add := func(field, msg string) {
		violations = append(violations, errors.Violation{Field: field, Message: msg})
	}

	if t.Title == "" {
		add("title", "is required")
	}
	if len(t.Questions) > 0 && len(t.Sections) > 0 {
		add("sections", "cannot be combined with top-level questions")
	}

	keys := map[string]bool{}
	var prereqs []struct{ path, key string }
	var walk func(qs []Question, path string)
	walk = func(qs []Question, path string) {
		for i, q := range qs {
			p := fmt.Sprintf("%s[%d]", path, i)
			switch {
			case q.Key == "":
				add(p+".key", "is required")
			case keys[q.Key]:
				add(p+".key", fmt.Sprintf("%s is used more than once", q.Key))
			default:
				keys[q.Key] = true
			}
			if q.Text == "" {
				add(p+".text", "is required")
			}
			if q.Type != "" && !questionTypes[q.Type] {
				add(p+".type", fmt.Sprintf("unknown question type %q", q.Type))
			}
			for j, pr := range q.Prerequisites {
				prereqs = append(prereqs, struct{ path, key string }{fmt.Sprintf("%s.prerequisites[%d]", p, j), pr.Question})
			}
			walk(q.SubQuestions, p+".sub_questions")
		}
	}
	walk(t.Questions, "questions")
	for i, s := range t.Sections {
		if s.Title == "" {
			add(fmt.Sprintf("sections[%d].title", i), "is required")
		}
		walk(s.Questions, fmt.Sprintf("sections[%d].questions", i))
	}

	for _, pr := range prereqs {
		if !keys[pr.key] {
			add(pr.path+".question", fmt.Sprintf("unknown question key %q", pr.key))
		}
	}

	if len(violations) > 0 {
		return errors.NewValidationError(violations)
	}
	return nil
}

// Import stores the template as a FormTemplate with its questions and
// sections. Everything is written in one transaction.
func Import(ctx context.Context, s store.Store, t *Template, createdBy string) (*models.FormTemplate, error) {
	var form *models.FormTemplate
	err := s.RunInTx(ctx, func(tx store.Store) error {
		imp := &importer{tx: tx, ids: map[string]string{}}

		f := &models.FormTemplate{
			Type:        t.Type,
			Title:       t.Title,
			Subtitle:    t.Subtitle,
			Purpose:     t.Purpose,
			Layout:      t.Layout,
			Disclaimer:  t.Disclaimer,
			Signatures:  t.Signatures,
			HasSections: len(t.Sections) > 0,
			Questions:   []string{},
			Sections:    []string{},
			CreatedBy:   createdBy,
		}

		var err error
		if f.Questions, err = imp.questions(ctx, t.Questions); err != nil {
			return err
		}
		for i, sec := range t.Sections {
			ids, err := imp.questions(ctx, sec.Questions)
			if err != nil {
				return err
			}
			created, err := store.CreateAs(ctx, tx, store.KindSection, &models.Section{
				Title: sec.Title, Number: i + 1, Questions: ids,
			})
			if err != nil {
				return errors.WrapStore("create section", err)
			}
			f.Sections = append(f.Sections, created.ID)
		}
		if err := imp.link(ctx); err != nil {
			return err
		}

		form, err = store.CreateAs(ctx, tx, store.KindForm, f)
		if err != nil {
			return errors.WrapStore("create form", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return form, nil
}

type importer struct {
	tx      store.Store
	ids     map[string]string
	pending []pendingPrereq
}

type pendingPrereq struct {
	id      string
	prereqs []Prerequisite
}

func (imp *importer) questions(ctx context.Context, qs []Question) ([]string, error) {
	ids := make([]string, 0, len(qs))
	for i, q := range qs {
		subs, err := imp.questions(ctx, q.SubQuestions)
		if err != nil {
			return nil, err
		}
		show := true
		if q.Show != nil {
			show = *q.Show
		}
		qtype := models.QuestionType(q.Type)
		if qtype == "" {
			qtype = models.QuestionFillInBlank
		}
		created, err := store.CreateAs(ctx, imp.tx, store.KindQuestion, &models.Question{
			QuestionText:     q.Text,
			Remark:           q.Remark,
			Type:             qtype,
			Number:           i + 1,
			Required:         q.Required,
			Show:             show,
			Options:          q.Options,
			Measurement:      q.Measurement,
			ValidationFactor: q.ValidationFactor,
			SubQuestions:     subs,
			Prerequisites:    []models.Prerequisite{},
		})
		if err != nil {
			return nil, errors.WrapStore("create question", err)
		}
		imp.ids[q.Key] = created.ID
		if len(q.Prerequisites) > 0 {
			imp.pending = append(imp.pending, pendingPrereq{id: created.ID, prereqs: q.Prerequisites})
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

// link resolves prerequisite keys once every question has an id.
func (imp *importer) link(ctx context.Context) error {
	for _, p := range imp.pending {
		resolved := make([]interface{}, 0, len(p.prereqs))
		for _, pr := range p.prereqs {
			resolved = append(resolved, map[string]interface{}{"question": imp.ids[pr.Question], "answer": pr.Answer})
		}
		if _, err := imp.tx.Update(ctx, store.KindQuestion, store.ByID(p.id), store.Document{"prerequisites": resolved}); err != nil {
			return errors.WrapStore("link prerequisites", err)
		}
	}
	return nil
}
