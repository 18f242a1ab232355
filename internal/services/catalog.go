package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// Supplies the ordered sections and questions of the application form.
type CatalogProvider interface {
	Sections(ctx context.Context) ([]models.Section, error)
}

// GateSections returns the part of the catalog an application in status may see:
// active sections and questions only, post-acceptance sections only once accepted,
// and items with ShowWhenStatus only in that status. Order follows OrderIndex.
func GateSections(sections []models.Section, status models.ApplicationStatus) []models.Section {
	gated := make([]models.Section, 0, len(sections))

	for _, s := range sections {
		if !s.IsActive || !statusAllows(s.ShowWhenStatus, status) {
			continue
		}
		if !s.VisibleBeforeAcceptance && !status.PostAcceptance() {
			continue
		}

		questions := make([]models.Question, 0, len(s.Questions))
		for _, q := range s.Questions {
			if q.IsActive && statusAllows(q.ShowWhenStatus, status) {
				questions = append(questions, q)
			}
		}
		slices.SortStableFunc(questions, func(a, b models.Question) int { return a.OrderIndex - b.OrderIndex })

		s.Questions = questions
		gated = append(gated, s)
	}

	slices.SortStableFunc(gated, func(a, b models.Section) int { return a.OrderIndex - b.OrderIndex })
	return gated
}

// SectionViews marks each question of the gated sections with its visibility.
func SectionViews(gated []models.Section, visible VisibleSet) []models.SectionView {
	views := make([]models.SectionView, 0, len(gated))
	for _, s := range gated {
		view := models.SectionView{Section: s, Questions: make([]models.QuestionView, 0, len(s.Questions))}
		for _, q := range s.Questions {
			view.Questions = append(view.Questions, models.QuestionView{Question: q, IsVisible: visible.Has(q.ID)})
		}
		view.Section.Questions = nil
		views = append(views, view)
	}
	return views
}

func statusAllows(want *models.ApplicationStatus, status models.ApplicationStatus) bool {
	return want == nil || *want == status
}

// PostAcceptanceQuestions returns the questions that only unlock after acceptance.
func PostAcceptanceQuestions(sections []models.Section) map[uuid.UUID]struct{} {
	ids := map[uuid.UUID]struct{}{}
	for _, s := range sections {
		if s.VisibleBeforeAcceptance {
			continue
		}
		for _, q := range s.Questions {
			ids[q.ID] = struct{}{}
		}
	}
	return ids
}

// ValidateCatalog checks the invariants the resolver relies on: unique ids, known
// question types, triggers that exist, carry an answer and never lead back to the
// question itself, directly or through a chain.
func ValidateCatalog(sections []models.Section) error {
	var problems []error
	questions := map[uuid.UUID]models.Question{}
	sectionIDs := map[uuid.UUID]struct{}{}

	for _, s := range sections {
		if _, dup := sectionIDs[s.ID]; dup {
			problems = append(problems, fmt.Errorf("duplicate section id %s", s.ID))
		}
		sectionIDs[s.ID] = struct{}{}

		for _, q := range s.Questions {
			if _, dup := questions[q.ID]; dup {
				problems = append(problems, fmt.Errorf("duplicate question id %s", q.ID))
			}
			if q.SectionID != s.ID {
				problems = append(problems, fmt.Errorf("question %s is listed under section %s but belongs to %s", q.ID, s.ID, q.SectionID))
			}
			if !q.Type.Valid() {
				problems = append(problems, fmt.Errorf("question %s has unknown type %q", q.ID, q.Type))
			}
			questions[q.ID] = q
		}
	}

	for _, q := range questions {
		if !q.HasTrigger() {
			continue
		}
		trigger, ok := questions[*q.ShowIfQuestion]
		switch {
		case *q.ShowIfQuestion == q.ID:
			problems = append(problems, fmt.Errorf("question %s triggers itself", q.ID))
		case !ok:
			problems = append(problems, fmt.Errorf("question %s is triggered by unknown question %s", q.ID, *q.ShowIfQuestion))
		case q.ShowIfAnswer == nil || *q.ShowIfAnswer == "":
			problems = append(problems, fmt.Errorf("question %s has a trigger without an answer", q.ID))
		case trigger.Type.AcceptsFile():
			problems = append(problems, fmt.Errorf("question %s is triggered by file question %s", q.ID, trigger.ID))
		case len(trigger.Options) > 0 && !slices.Contains(trigger.Options, *q.ShowIfAnswer):
			problems = append(problems, fmt.Errorf("question %s expects answer %q which is not an option of %s", q.ID, *q.ShowIfAnswer, trigger.ID))
		}
	}

	for _, id := range sortedQuestionIDs(questions) {
		if cycle := triggerCycle(id, questions); cycle {
			problems = append(problems, fmt.Errorf("question %s is part of a trigger cycle", id))
		}
	}

	if len(problems) > 0 {
		return fault.NewValidationError("invalid catalog", errors.Join(problems...))
	}
	return nil
}

// triggerCycle follows the single trigger edge of each question from start and
// reports whether it comes back to start.
func triggerCycle(start uuid.UUID, questions map[uuid.UUID]models.Question) bool {
	seen := map[uuid.UUID]struct{}{}
	current := start

	for {
		q, ok := questions[current]
		if !ok || !q.HasTrigger() {
			return false
		}
		next := *q.ShowIfQuestion
		if next == start {
			return next != q.ID // self triggers are reported separately
		}
		if _, loop := seen[next]; loop {
			return false // a cycle further down the chain, reported for its members
		}
		seen[next] = struct{}{}
		current = next
	}
}

func sortedQuestionIDs(questions map[uuid.UUID]models.Question) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(questions))
	for id := range questions {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids
}
