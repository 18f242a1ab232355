package services

import (
	"context"
	"slices"
	"time"

	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/paulexconde/camperportal/pkg/fault"
)

// Distinct-team vote counts for one application.
type Tally struct {
	ApprovalCount int
	DeclineCount  int
	ApprovedTeams []string
	DeclinedTeams []string
}

// TallyVotes counts teams, not admins: two approvals from the same team count once.
func TallyVotes(votes []models.Vote) Tally {
	approved := map[string]struct{}{}
	declined := map[string]struct{}{}

	for _, v := range votes {
		switch v.Direction {
		case models.VoteApprove:
			approved[v.Team] = struct{}{}
		case models.VoteDecline:
			declined[v.Team] = struct{}{}
		}
	}

	t := Tally{
		ApprovedTeams: sortedKeys(approved),
		DeclinedTeams: sortedKeys(declined),
	}
	t.ApprovalCount = len(t.ApprovedTeams)
	t.DeclineCount = len(t.DeclinedTeams)
	return t
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Keeps the current stance of every admin on an application.
type ApprovalLedger interface {
	// RecordVote stores or overwrites the admin's vote and returns the new tally.
	// It must run inside the application's transaction.
	RecordVote(ctx context.Context, tx repository.Tx, vote models.Vote) (Tally, error)
}

type approvalLedgerImpl struct {
	now func() time.Time
}

func NewApprovalLedger(now func() time.Time) ApprovalLedger {
	if now == nil {
		now = time.Now
	}
	return &approvalLedgerImpl{now: now}
}

func (l *approvalLedgerImpl) RecordVote(ctx context.Context, tx repository.Tx, vote models.Vote) (Tally, error) {
	app := tx.Application()
	if app.Status != models.StatusUnderReview {
		return Tally{}, fault.NewInvalidStateError("votes are only accepted while the application is under review", nil)
	}

	if vote.Direction != models.VoteApprove && vote.Direction != models.VoteDecline {
		return Tally{}, fault.NewValidationError("unknown vote direction", nil)
	}

	now := l.now()
	vote.ApplicationID = app.ID
	vote.CreatedAt = now
	vote.UpdatedAt = now

	if err := tx.UpsertVote(ctx, vote); err != nil {
		return Tally{}, err
	}

	votes, err := tx.Votes(ctx)
	if err != nil {
		return Tally{}, err
	}

	return TallyVotes(votes), nil
}
