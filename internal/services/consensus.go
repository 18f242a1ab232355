package services

import (
	"fmt"
	"time"

	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// Number of distinct teams whose approval accepts an application.
const ApprovalQuorum = 3

var transitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.StatusInProgress:  {models.StatusUnderReview},
	models.StatusUnderReview: {models.StatusAccepted, models.StatusDeclined},
	models.StatusAccepted:    {models.StatusPaid},
}

func CanTransition(from, to models.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves app to status to, stamping the matching lifecycle timestamp.
func Transition(app *models.Application, to models.ApplicationStatus, at time.Time) (models.StatusChange, error) {
	from := app.Status
	if !CanTransition(from, to) {
		return models.StatusChange{}, fault.NewInvalidStateError(
			fmt.Sprintf("cannot move application from %s to %s", from, to), nil)
	}

	app.Status = to
	app.UpdatedAt = at
	switch to {
	case models.StatusUnderReview:
		app.CompletedAt = &at
	case models.StatusAccepted:
		app.AcceptedAt = &at
	case models.StatusDeclined:
		app.DeclinedAt = &at
	case models.StatusPaid:
		app.PaidAt = &at
	}

	return models.StatusChange{
		ApplicationID: app.ID,
		From:          from,
		To:            to,
		OccurredAt:    at,
	}, nil
}

// Outcome of evaluating derived state against the current status.
type Decision struct {
	Transition bool
	To         models.ApplicationStatus
}

// Decides automatic status transitions.
type ConsensusEngine interface {
	// EvaluateProgress requests under_review once an in-progress application is complete.
	EvaluateProgress(status models.ApplicationStatus, progress models.ApplicationProgress) Decision
	// EvaluateVotes requests accepted once the quorum of distinct teams approves.
	// Declines never transition automatically.
	EvaluateVotes(status models.ApplicationStatus, tally Tally) Decision
	Quorum() int
}

type consensusEngineImpl struct {
	quorum int
}

func NewConsensusEngine() ConsensusEngine {
	return &consensusEngineImpl{quorum: ApprovalQuorum}
}

func (e *consensusEngineImpl) Quorum() int {
	return e.quorum
}

func (e *consensusEngineImpl) EvaluateProgress(status models.ApplicationStatus, progress models.ApplicationProgress) Decision {
	if status == models.StatusInProgress && progress.OverallPercentage == 100 {
		return Decision{Transition: true, To: models.StatusUnderReview}
	}
	return Decision{}
}

func (e *consensusEngineImpl) EvaluateVotes(status models.ApplicationStatus, tally Tally) Decision {
	if status == models.StatusUnderReview && tally.ApprovalCount >= e.quorum {
		return Decision{Transition: true, To: models.StatusAccepted}
	}
	return Decision{}
}
