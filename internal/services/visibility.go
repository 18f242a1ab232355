package services

import (
	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
)

// The set of questions currently shown to an applicant.
type VisibleSet map[uuid.UUID]struct{}

func (v VisibleSet) Has(id uuid.UUID) bool {
	_, ok := v[id]
	return ok
}

// ResolveVisibility decides which questions are visible for the given answers.
//
// An active question without a trigger is always visible. A triggered question is
// visible only while the trigger's raw response is a non-empty text equal to
// ShowIfAnswer, byte for byte. The trigger's own visibility is not consulted.
func ResolveVisibility(questions []models.Question, responses map[uuid.UUID]models.Response) VisibleSet {
	visible := make(VisibleSet, len(questions))

	for _, q := range questions {
		if !q.IsActive {
			continue
		}
		if !q.HasTrigger() || triggerMet(q, responses) {
			visible[q.ID] = struct{}{}
		}
	}

	return visible
}

func triggerMet(q models.Question, responses map[uuid.UUID]models.Response) bool {
	if q.ShowIfAnswer == nil {
		return false
	}

	r, ok := responses[*q.ShowIfQuestion]
	if !ok {
		return false
	}

	text, ok := r.Text()
	return ok && text != "" && text == *q.ShowIfAnswer
}

// CatalogQuestions flattens sections into their questions, in order.
func CatalogQuestions(sections []models.Section) []models.Question {
	var n int
	for _, s := range sections {
		n += len(s.Questions)
	}

	questions := make([]models.Question, 0, n)
	for _, s := range sections {
		questions = append(questions, s.Questions...)
	}
	return questions
}
