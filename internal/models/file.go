package models

import (
	"time"

	"github.com/google/uuid"
)

type FileInfo struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ApplicationID uuid.UUID `db:"application_id" json:"application_id"`
	Filename      string    `db:"file_name" json:"filename"`
	Size          int64     `db:"file_size" json:"size"`
	ContentType   string    `db:"file_type" json:"content_type"`
	StoragePath   string    `db:"storage_path" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	URL           string    `db:"-" json:"url"`
}
