package services

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/repository"
	"github.com/paulexconde/camperportal/pkg/fault"
)

type ApprovalService interface {
	// Approve and Decline record the caller's vote. The caller's team is taken from
	// its identity at the time of the vote.
	Approve(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.VoteResult, error)
	Decline(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.VoteResult, error)
	Status(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.ApprovalStatus, error)
	// Reevaluate reruns the quorum check. It is a no-op once the application has
	// left under_review.
	Reevaluate(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.VoteResult, error)
	// DeclineApplication is the manual decision that moves under_review to declined.
	DeclineApplication(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.Application, error)
}

type approvalServiceImpl struct {
	*core
}

func NewApprovalService(d Deps) ApprovalService {
	return &approvalServiceImpl{core: newCore(d)}
}

func (s *approvalServiceImpl) Approve(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.VoteResult, error) {
	return s.vote(ctx, caller, id, models.VoteApprove)
}

func (s *approvalServiceImpl) Decline(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.VoteResult, error) {
	return s.vote(ctx, caller, id, models.VoteDecline)
}

func (s *approvalServiceImpl) vote(ctx context.Context, caller models.Identity, id uuid.UUID, direction models.VoteDirection) (*models.VoteResult, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	team := strings.TrimSpace(caller.Team)
	if team == "" {
		return nil, fault.NewValidationError("the voting admin has no team", nil)
	}

	var (
		result  *models.VoteResult
		changes []models.StatusChange
	)
	err := s.Store.InApplicationTx(ctx, id, func(ctx context.Context, tx repository.Tx) error {
		result, changes = nil, nil

		tally, err := s.Ledger.RecordVote(ctx, tx, models.Vote{
			AdminID:   caller.UserID,
			AdminName: caller.Name,
			Team:      team,
			Direction: direction,
		})
		if err != nil {
			return err
		}

		result, changes, err = s.settle(ctx, tx, tally, caller.UserID)
		if err != nil {
			return err
		}
		d := direction
		result.CurrentUserVote = &d
		return nil
	})
	if err != nil {
		return nil, notFound(err, "application not found")
	}

	s.Log.Info("vote recorded",
		"application_id", id,
		"admin_id", caller.UserID,
		"team", team,
		"direction", direction,
		"approval_count", result.ApprovalCount,
	)
	s.publish(changes)
	return result, nil
}

// settle applies the quorum decision for tally to the locked application.
func (s *approvalServiceImpl) settle(ctx context.Context, tx repository.Tx, tally Tally, actor uuid.UUID) (*models.VoteResult, []models.StatusChange, error) {
	app := tx.Application()
	result := &models.VoteResult{
		ApplicationID: app.ID,
		Status:        app.Status,
		ApprovalCount: tally.ApprovalCount,
		DeclineCount:  tally.DeclineCount,
	}

	d := s.Engine.EvaluateVotes(app.Status, tally)
	if !d.Transition {
		return result, nil, nil
	}

	change, err := Transition(&app, d.To, s.Now())
	if err != nil {
		return nil, nil, err
	}
	change.ActorID = &actor
	if err := tx.SaveApplication(ctx, app); err != nil {
		return nil, nil, err
	}

	result.Status = app.Status
	result.AutoAccepted = true
	return result, []models.StatusChange{change}, nil
}

func (s *approvalServiceImpl) Reevaluate(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.VoteResult, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	var (
		result  *models.VoteResult
		changes []models.StatusChange
	)
	err := s.Store.InApplicationTx(ctx, id, func(ctx context.Context, tx repository.Tx) error {
		result, changes = nil, nil

		votes, err := tx.Votes(ctx)
		if err != nil {
			return err
		}

		result, changes, err = s.settle(ctx, tx, TallyVotes(votes), caller.UserID)
		if err != nil {
			return err
		}
		result.CurrentUserVote = voteOf(votes, caller.UserID)
		return nil
	})
	if err != nil {
		return nil, notFound(err, "application not found")
	}

	s.publish(changes)
	return result, nil
}

func (s *approvalServiceImpl) DeclineApplication(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.Application, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	var (
		app    models.Application
		change models.StatusChange
	)
	err := s.Store.InApplicationTx(ctx, id, func(ctx context.Context, tx repository.Tx) error {
		app = tx.Application()

		var err error
		change, err = Transition(&app, models.StatusDeclined, s.Now())
		if err != nil {
			return err
		}
		actor := caller.UserID
		change.ActorID = &actor
		return tx.SaveApplication(ctx, app)
	})
	if err != nil {
		return nil, notFound(err, "application not found")
	}

	s.publish([]models.StatusChange{change})
	return &app, nil
}

func (s *approvalServiceImpl) Status(ctx context.Context, caller models.Identity, id uuid.UUID) (*models.ApprovalStatus, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	app, err := s.Store.GetApplication(ctx, id)
	if err != nil {
		return nil, notFound(err, "application not found")
	}

	votes, err := s.Store.ListVotes(ctx, id)
	if err != nil {
		return nil, err
	}

	return buildApprovalStatus(*app, votes, caller.UserID, s.Engine.Quorum()), nil
}

func buildApprovalStatus(app models.Application, votes []models.Vote, viewer uuid.UUID, quorum int) *models.ApprovalStatus {
	tally := TallyVotes(votes)
	status := &models.ApprovalStatus{
		ApplicationID:   app.ID,
		Status:          app.Status,
		Quorum:          quorum,
		ApprovalCount:   tally.ApprovalCount,
		DeclineCount:    tally.DeclineCount,
		CurrentUserVote: voteOf(votes, viewer),
		ApprovedBy:      []models.Voter{},
		DeclinedBy:      []models.Voter{},
		Teams:           []models.TeamVotes{},
	}

	sorted := slices.Clone(votes)
	slices.SortFunc(sorted, func(a, b models.Vote) int {
		if c := strings.Compare(a.Team, b.Team); c != 0 {
			return c
		}
		if c := strings.Compare(a.AdminName, b.AdminName); c != 0 {
			return c
		}
		return strings.Compare(a.AdminID.String(), b.AdminID.String())
	})

	teams := map[string]int{}
	for _, v := range sorted {
		voter := models.Voter{AdminID: v.AdminID, Name: v.AdminName, Team: v.Team}

		i, ok := teams[v.Team]
		if !ok {
			i = len(status.Teams)
			teams[v.Team] = i
			status.Teams = append(status.Teams, models.TeamVotes{
				Team:     v.Team,
				Approved: []models.Voter{},
				Declined: []models.Voter{},
			})
		}

		switch v.Direction {
		case models.VoteApprove:
			status.ApprovedBy = append(status.ApprovedBy, voter)
			status.Teams[i].Approved = append(status.Teams[i].Approved, voter)
		case models.VoteDecline:
			status.DeclinedBy = append(status.DeclinedBy, voter)
			status.Teams[i].Declined = append(status.Teams[i].Declined, voter)
		}
	}
	return status
}

func voteOf(votes []models.Vote, adminID uuid.UUID) *models.VoteDirection {
	for _, v := range votes {
		if v.AdminID == adminID {
			d := v.Direction
			return &d
		}
	}
	return nil
}
