package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/paulexconde/camperportal/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyVotes_CountsTeams(t *testing.T) {
	votes := []models.Vote{
		{AdminID: uuid.New(), Team: "medical", Direction: models.VoteApprove},
		{AdminID: uuid.New(), Team: "medical", Direction: models.VoteApprove},
		{AdminID: uuid.New(), Team: "operations", Direction: models.VoteApprove},
		{AdminID: uuid.New(), Team: "operations", Direction: models.VoteDecline},
		{AdminID: uuid.New(), Team: "admissions", Direction: models.VoteDecline},
	}

	tally := TallyVotes(votes)

	assert.Equal(t, 2, tally.ApprovalCount)
	assert.Equal(t, []string{"medical", "operations"}, tally.ApprovedTeams)
	assert.Equal(t, 2, tally.DeclineCount)
	assert.Equal(t, []string{"admissions", "operations"}, tally.DeclinedTeams)
}

func TestTallyVotes_Empty(t *testing.T) {
	tally := TallyVotes(nil)

	assert.Zero(t, tally.ApprovalCount)
	assert.Empty(t, tally.ApprovedTeams)
}

func recordVote(t *testing.T, f *fixture, app models.Application, vote models.Vote) (Tally, error) {
	t.Helper()
	ledger := NewApprovalLedger(func() time.Time { return f.now })

	var tally Tally
	err := f.store.InApplicationTx(context.Background(), app.ID, func(ctx context.Context, tx repository.Tx) error {
		var err error
		tally, err = ledger.RecordVote(ctx, tx, vote)
		return err
	})
	return tally, err
}

func TestRecordVote_OverwritesPerAdmin(t *testing.T) {
	f := newFixture(t)
	app := f.seed(t, applicant(), models.StatusUnderReview)
	adminID := uuid.New()

	tally, err := recordVote(t, f, app, models.Vote{AdminID: adminID, Team: "medical", Direction: models.VoteApprove})
	require.NoError(t, err)
	assert.Equal(t, 1, tally.ApprovalCount)

	tally, err = recordVote(t, f, app, models.Vote{AdminID: adminID, Team: "medical", Direction: models.VoteDecline})
	require.NoError(t, err)
	assert.Equal(t, 0, tally.ApprovalCount)
	assert.Equal(t, 1, tally.DeclineCount)

	votes, err := f.store.ListVotes(context.Background(), app.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, models.VoteDecline, votes[0].Direction)
	assert.Equal(t, app.ID, votes[0].ApplicationID)
}

func TestRecordVote_RequiresUnderReview(t *testing.T) {
	f := newFixture(t)

	for _, status := range []models.ApplicationStatus{models.StatusInProgress, models.StatusAccepted, models.StatusDeclined, models.StatusPaid} {
		app := f.seed(t, applicant(), status)

		_, err := recordVote(t, f, app, models.Vote{AdminID: uuid.New(), Team: "medical", Direction: models.VoteApprove})
		assert.True(t, fault.IsInvalidState(err), "status %s", status)
	}
}

func TestRecordVote_UnknownDirection(t *testing.T) {
	f := newFixture(t)
	app := f.seed(t, applicant(), models.StatusUnderReview)

	_, err := recordVote(t, f, app, models.Vote{AdminID: uuid.New(), Team: "medical", Direction: "abstain"})

	assert.True(t, fault.IsValidation(err))
}
