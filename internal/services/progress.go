package services

import (
	"math"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
)

// AggregateProgress computes per-section and overall completion.
//
// Only active, visible questions are counted. A section without visible required
// questions is complete at 100%.
func AggregateProgress(applicationID uuid.UUID, sections []models.Section, visible VisibleSet, responses map[uuid.UUID]models.Response) models.ApplicationProgress {
	progress := models.ApplicationProgress{
		ApplicationID:   applicationID,
		TotalSections:   len(sections),
		SectionProgress: make([]models.SectionProgress, 0, len(sections)),
	}

	var required, answeredRequired int

	for _, section := range sections {
		sp := sectionProgress(section, visible, responses)
		if sp.IsComplete {
			progress.CompletedSections++
		}
		required += sp.RequiredQuestions
		answeredRequired += sp.AnsweredRequired
		progress.SectionProgress = append(progress.SectionProgress, sp)
	}

	progress.OverallPercentage = percentage(answeredRequired, required)
	return progress
}

func sectionProgress(section models.Section, visible VisibleSet, responses map[uuid.UUID]models.Response) models.SectionProgress {
	sp := models.SectionProgress{
		SectionID:    section.ID,
		SectionTitle: section.Title,
	}

	for _, q := range section.Questions {
		if !q.IsActive || !visible.Has(q.ID) {
			continue
		}

		sp.TotalQuestions++
		if q.IsRequired {
			sp.RequiredQuestions++
		}

		r, ok := responses[q.ID]
		if !ok || !r.IsAnswered() {
			continue
		}

		sp.AnsweredQuestions++
		if q.IsRequired {
			sp.AnsweredRequired++
		}
	}

	sp.CompletionPercentage = percentage(sp.AnsweredRequired, sp.RequiredQuestions)
	sp.IsComplete = sp.AnsweredRequired == sp.RequiredQuestions
	return sp
}

// percentage rounds 100*n/d to the nearest integer, with d == 0 counting as 100.
// It never reports 100 while n < d, so a rounded 99.5 cannot pass for complete.
// The cap is deliberate: the under_review transition fires on a reported 100, and
// an application with a required answer missing must not reach review.
func percentage(n, d int) int {
	if d == 0 {
		return 100
	}

	p := int(math.Round(100 * float64(n) / float64(d)))
	if p == 100 && n < d {
		return 99
	}
	return p
}
