package models

import (
	"time"

	"github.com/google/uuid"
)

type AdminNote struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ApplicationID uuid.UUID `db:"application_id" json:"application_id"`
	AdminID       uuid.UUID `db:"admin_id" json:"admin_id"`
	Note          string    `db:"note" json:"note"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
