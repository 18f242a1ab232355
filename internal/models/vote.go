package models

import (
	"time"

	"github.com/google/uuid"
)

type VoteDirection string

const (
	VoteApprove VoteDirection = "approve"
	VoteDecline VoteDirection = "decline"
)

// One live vote per (application, admin). Team is captured when the vote is cast.
type Vote struct {
	ApplicationID uuid.UUID     `db:"application_id" json:"application_id"`
	AdminID       uuid.UUID     `db:"admin_id" json:"admin_id"`
	AdminName     string        `db:"admin_name" json:"admin_name"`
	Team          string        `db:"team" json:"team"`
	Direction     VoteDirection `db:"direction" json:"direction"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

type VoteResult struct {
	ApplicationID   uuid.UUID         `json:"application_id"`
	Status          ApplicationStatus `json:"status"`
	ApprovalCount   int               `json:"approval_count"`
	DeclineCount    int               `json:"decline_count"`
	CurrentUserVote *VoteDirection    `json:"current_user_vote"`
	AutoAccepted    bool              `json:"auto_accepted"`
}

type Voter struct {
	AdminID uuid.UUID `json:"admin_id"`
	Name    string    `json:"name"`
	Team    string    `json:"team"`
}

type TeamVotes struct {
	Team     string  `json:"team"`
	Approved []Voter `json:"approved"`
	Declined []Voter `json:"declined"`
}

type ApprovalStatus struct {
	ApplicationID   uuid.UUID         `json:"application_id"`
	Status          ApplicationStatus `json:"status"`
	Quorum          int               `json:"quorum"`
	ApprovalCount   int               `json:"approval_count"`
	DeclineCount    int               `json:"decline_count"`
	CurrentUserVote *VoteDirection    `json:"current_user_vote"`
	ApprovedBy      []Voter           `json:"approved_by"`
	DeclinedBy      []Voter           `json:"declined_by"`
	Teams           []TeamVotes       `json:"teams"`
}
