package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		n, d int
		want int
	}{
		{0, 0, 100},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{199, 200, 99},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, percentage(tt.n, tt.d), "%d/%d", tt.n, tt.d)
	}
}

func progressOf(status models.ApplicationStatus, responses map[uuid.UUID]models.Response) models.ApplicationProgress {
	gated := GateSections(testSections(), status)
	visible := ResolveVisibility(CatalogQuestions(gated), responses)
	return AggregateProgress(uuid.Nil, gated, visible, responses)
}

func TestAggregateProgress_CamperInfo(t *testing.T) {
	p := progressOf(models.StatusInProgress, nil)
	require.Len(t, p.SectionProgress, 1)
	assert.Equal(t, 1, p.TotalSections)
	assert.Equal(t, 0, p.OverallPercentage)
	assert.Equal(t, 3, p.SectionProgress[0].TotalQuestions)
	assert.Equal(t, 2, p.SectionProgress[0].RequiredQuestions)

	p = progressOf(models.StatusInProgress, answers(qNickname, "Ada"))
	assert.Equal(t, 50, p.OverallPercentage)
	assert.Equal(t, 0, p.CompletedSections)

	// Answering Yes reveals one more required question.
	p = progressOf(models.StatusInProgress, answers(qNickname, "Ada", qHasAllergies, "Yes"))
	assert.Equal(t, 67, p.OverallPercentage)
	assert.Equal(t, 3, p.SectionProgress[0].RequiredQuestions)
	assert.False(t, p.SectionProgress[0].IsComplete)

	p = progressOf(models.StatusInProgress, answers(qNickname, "Ada", qHasAllergies, "No"))
	assert.Equal(t, 100, p.OverallPercentage)
	assert.Equal(t, 1, p.CompletedSections)
	assert.True(t, p.SectionProgress[0].IsComplete)
}

func TestAggregateProgress_HiddenAnswerDoesNotCount(t *testing.T) {
	// A stale answer under a hidden question is neither required nor answered.
	p := progressOf(models.StatusInProgress, answers(qNickname, "Ada", qHasAllergies, "No", qAllergyDetails, "peanuts"))

	assert.Equal(t, 100, p.OverallPercentage)
	assert.Equal(t, 2, p.SectionProgress[0].AnsweredQuestions)
	assert.Equal(t, 2, p.SectionProgress[0].AnsweredRequired)
}

func TestAggregateProgress_PostAcceptanceSection(t *testing.T) {
	p := progressOf(models.StatusAccepted, answers(qNickname, "Ada", qHasAllergies, "No"))

	require.Len(t, p.SectionProgress, 2)
	assert.Equal(t, "Before Camp", p.SectionProgress[1].SectionTitle)
	assert.Equal(t, 67, p.OverallPercentage)
	assert.Equal(t, 1, p.CompletedSections)
}

func TestAggregateProgress_SectionWithoutRequiredQuestions(t *testing.T) {
	section := models.Section{
		ID:       uuid.New(),
		Title:    "Optional",
		IsActive: true,
		Questions: []models.Question{
			{ID: uuid.New(), Type: models.QuestionText, IsActive: true},
		},
	}
	visible := ResolveVisibility(section.Questions, nil)

	p := AggregateProgress(uuid.Nil, []models.Section{section}, visible, nil)

	assert.Equal(t, 100, p.OverallPercentage)
	assert.Equal(t, 100, p.SectionProgress[0].CompletionPercentage)
	assert.True(t, p.SectionProgress[0].IsComplete)
}

func TestAggregateProgress_EmptyAnswerIsUnanswered(t *testing.T) {
	p := progressOf(models.StatusInProgress, answers(qNickname, "", qHasAllergies, "No"))

	assert.Equal(t, 50, p.OverallPercentage)
}

func TestAggregateProgress_Idempotent(t *testing.T) {
	tests := []struct {
		name      string
		status    models.ApplicationStatus
		responses map[uuid.UUID]models.Response
	}{
		{"empty", models.StatusInProgress, nil},
		{"partial", models.StatusInProgress, answers(qNickname, "Ada", qHasAllergies, "Yes")},
		{"complete", models.StatusInProgress, answers(qNickname, "Ada", qHasAllergies, "No")},
		{"accepted", models.StatusAccepted, answers(qNickname, "Ada", qShirtSize, "M")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gated := GateSections(testSections(), tt.status)
			visible := ResolveVisibility(CatalogQuestions(gated), tt.responses)

			first := AggregateProgress(uuid.Nil, gated, visible, tt.responses)
			second := AggregateProgress(uuid.Nil, gated, visible, tt.responses)
			assert.Equal(t, first, second)
			assert.Equal(t, first, progressOf(tt.status, tt.responses))
		})
	}
}
