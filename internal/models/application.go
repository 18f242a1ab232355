package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Application struct {
	ID                   uuid.UUID         `db:"id" json:"id"`
	UserID               uuid.UUID         `db:"user_id" json:"user_id"`
	CamperFirstName      string            `db:"camper_first_name" json:"camper_first_name"`
	CamperLastName       string            `db:"camper_last_name" json:"camper_last_name"`
	Status               ApplicationStatus `db:"status" json:"status"`
	CompletionPercentage int               `db:"completion_percentage" json:"completion_percentage"`
	CreatedAt            time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time         `db:"updated_at" json:"updated_at"`
	CompletedAt          *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	AcceptedAt           *time.Time        `db:"accepted_at" json:"accepted_at,omitempty"`
	DeclinedAt           *time.Time        `db:"declined_at" json:"declined_at,omitempty"`
	PaidAt               *time.Time        `db:"paid_at" json:"paid_at,omitempty"`
}

type ApplicationWithResponses struct {
	Application
	Responses []Response `json:"responses"`
}

// Row of the admin application list.
type ApplicationSummary struct {
	ID                   uuid.UUID         `db:"id" json:"id"`
	UserID               uuid.UUID         `db:"user_id" json:"user_id"`
	CamperFirstName      string            `db:"camper_first_name" json:"camper_first_name"`
	CamperLastName       string            `db:"camper_last_name" json:"camper_last_name"`
	Status               ApplicationStatus `db:"status" json:"status"`
	CompletionPercentage int               `db:"completion_percentage" json:"completion_percentage"`
	UpdatedAt            time.Time         `db:"updated_at" json:"updated_at"`
	ApprovalCount        int               `db:"approval_count" json:"approval_count"`
	ApprovedByTeams      pq.StringArray    `db:"approved_by_teams" json:"approved_by_teams"`
}

type ApplicationFilter struct {
	Status *ApplicationStatus
	Search string
}

// Emitted once for every applied status transition.
type StatusChange struct {
	ApplicationID uuid.UUID         `json:"application_id"`
	From          ApplicationStatus `json:"from"`
	To            ApplicationStatus `json:"to"`
	ActorID       *uuid.UUID        `json:"actor_id,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
