package models

import "github.com/google/uuid"

// The type of question being asked.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionTextarea       QuestionType = "textarea"
	QuestionDropdown       QuestionType = "dropdown"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionCheckbox       QuestionType = "checkbox"
	QuestionDate           QuestionType = "date"
	QuestionEmail          QuestionType = "email"
	QuestionPhone          QuestionType = "phone"
	QuestionSignature      QuestionType = "signature"
	QuestionFileUpload     QuestionType = "file_upload"
	QuestionProfilePicture QuestionType = "profile_picture"
	QuestionMedicationList QuestionType = "medication_list"
	QuestionAllergyList    QuestionType = "allergy_list"
	QuestionTable          QuestionType = "table"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionTextarea, QuestionDropdown, QuestionMultipleChoice,
		QuestionCheckbox, QuestionDate, QuestionEmail, QuestionPhone, QuestionSignature,
		QuestionFileUpload, QuestionProfilePicture, QuestionMedicationList,
		QuestionAllergyList, QuestionTable:
		return true
	}
	return false
}

// AcceptsFile reports whether answers to this question type are file references
// instead of text.
func (t QuestionType) AcceptsFile() bool {
	return t == QuestionFileUpload || t == QuestionProfilePicture
}

// A rule checked against every text answer of a question.
//
// Expression is evaluated with `value` (the answer) and `length` (its rune count)
// in scope and must return a boolean.
type ValidationRule struct {
	Expression string `json:"expression"`
	Message    string `json:"message"`
}

// The Question object.
type Question struct {
	ID              uuid.UUID          `json:"id"`
	SectionID       uuid.UUID          `json:"section_id"`
	Text            string             `json:"question_text"`
	Type            QuestionType       `json:"question_type"`
	Options         []string           `json:"options,omitempty"`
	IsRequired      bool               `json:"is_required"`
	IsActive        bool               `json:"is_active"`
	OrderIndex      int                `json:"order_index"`
	HelpText        string             `json:"help_text,omitempty"`
	Placeholder     string             `json:"placeholder,omitempty"`
	ValidationRules []ValidationRule   `json:"validation_rules,omitempty"`
	ShowIfQuestion  *uuid.UUID         `json:"show_if_question_id,omitempty"`
	ShowIfAnswer    *string            `json:"show_if_answer,omitempty"`
	ShowWhenStatus  *ApplicationStatus `json:"show_when_status,omitempty"`
}

// HasTrigger reports whether the question is gated by another question's answer.
func (q Question) HasTrigger() bool {
	return q.ShowIfQuestion != nil
}

// The Section object. Questions are kept in display order.
type Section struct {
	ID                      uuid.UUID          `json:"id"`
	Title                   string             `json:"title"`
	Description             string             `json:"description,omitempty"`
	OrderIndex              int                `json:"order_index"`
	IsActive                bool               `json:"is_active"`
	VisibleBeforeAcceptance bool               `json:"visible_before_acceptance"`
	ShowWhenStatus          *ApplicationStatus `json:"show_when_status,omitempty"`
	Questions               []Question         `json:"questions"`
}

// A question as shown to one application.
type QuestionView struct {
	Question
	IsVisible bool `json:"is_visible"`
}

type SectionView struct {
	Section
	Questions []QuestionView `json:"questions"`
}
