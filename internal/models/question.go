// internal/models/question.go
package models

import "time"

// QuestionType is the answer widget of a question.
type QuestionType string

const (
	QuestionYesNo          QuestionType = "Yes/No"
	QuestionFillInBlank    QuestionType = "Fill In Blank"
	QuestionMultipleChoice QuestionType = "Multiple Choice"
	QuestionSingleChoice   QuestionType = "Single Choice"
	QuestionGrouped        QuestionType = "Grouped"
)

// Prerequisite makes a question visible only when another question holds Answer.
type Prerequisite struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Question is one node of a question tree. SubQuestions and Prerequisites
// hold identities of other Question records.
type Question struct {
	ID               string         `json:"id,omitempty"`
	QuestionText     string         `json:"questionText"`
	Remark           string         `json:"remark,omitempty"`
	Type             QuestionType   `json:"type"`
	Number           int            `json:"number,omitempty"`
	Required         bool           `json:"required"`
	Show             bool           `json:"show"`
	Options          []string       `json:"options,omitempty"`
	Values           []string       `json:"values,omitempty"`
	Measurement      string         `json:"measurementUnit,omitempty"`
	ValidationFactor string         `json:"validationFactor,omitempty"`
	SubQuestions     []string       `json:"subQuestions"`
	Prerequisites    []Prerequisite `json:"prerequisites"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Section groups an ordered list of questions under a title.
type Section struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Number    int       `json:"number"`
	Questions []string  `json:"questions"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FormTemplate is the published blueprint a loan application is instantiated from.
type FormTemplate struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Purpose     string    `json:"purpose,omitempty"`
	Layout      string    `json:"layout,omitempty"`
	HasSections bool      `json:"hasSections"`
	Disclaimer  string    `json:"disclaimer,omitempty"`
	Signatures  []string  `json:"signatures,omitempty"`
	Questions   []string  `json:"questions"`
	Sections    []string  `json:"sections"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
