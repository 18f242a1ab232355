package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// ResponseValue is either a TextValue or a FileRef.
type ResponseValue interface {
	isResponseValue()
}

type TextValue string

type FileRef struct {
	FileID uuid.UUID
}

func (TextValue) isResponseValue() {}
func (FileRef) isResponseValue()   {}

// Holds the answer of an application to a single question.
type Response struct {
	ApplicationID uuid.UUID
	QuestionID    uuid.UUID
	Value         ResponseValue
	UpdatedAt     time.Time
}

// Text returns the text answer, if the response carries one.
func (r Response) Text() (string, bool) {
	v, ok := r.Value.(TextValue)
	return string(v), ok
}

// FileID returns the referenced file, if the response carries one.
func (r Response) FileID() (uuid.UUID, bool) {
	v, ok := r.Value.(FileRef)
	return v.FileID, ok
}

// IsAnswered reports a non-empty text value or a present file reference.
func (r Response) IsAnswered() bool {
	switch v := r.Value.(type) {
	case TextValue:
		return v != ""
	case FileRef:
		return v.FileID != uuid.Nil
	default:
		return false
	}
}

type responseJSON struct {
	QuestionID    uuid.UUID  `json:"question_id"`
	ResponseValue *string    `json:"response_value"`
	FileID        *uuid.UUID `json:"file_id"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := responseJSON{QuestionID: r.QuestionID, UpdatedAt: r.UpdatedAt}
	switch v := r.Value.(type) {
	case TextValue:
		s := string(v)
		out.ResponseValue = &s
	case FileRef:
		id := v.FileID
		out.FileID = &id
	}
	return json.Marshal(out)
}

// One item of a PATCH responses body.
type ResponseInput struct {
	QuestionID    uuid.UUID  `json:"question_id"`
	ResponseValue *string    `json:"response_value"`
	FileID        *uuid.UUID `json:"file_id"`
}

// Value converts the input to its tagged value. A nil value with a nil error means
// the answer is being cleared.
func (in ResponseInput) Value() (ResponseValue, error) {
	hasText := in.ResponseValue != nil && *in.ResponseValue != ""
	hasFile := in.FileID != nil && *in.FileID != uuid.Nil

	switch {
	case hasText && hasFile:
		return nil, fault.NewValidationError("a response carries either response_value or file_id, not both", nil)
	case hasText:
		return TextValue(*in.ResponseValue), nil
	case hasFile:
		return FileRef{FileID: *in.FileID}, nil
	default:
		return nil, nil
	}
}
