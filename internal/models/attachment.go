package models

import (
	"time"

	"github.com/google/uuid"
)

// Attachment описывает файл, приложенный к предложению.
type Attachment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ProposalID   uuid.UUID `db:"proposal_id" json:"proposal_id"`
	UploadedByID uuid.UUID `db:"uploaded_by_id" json:"uploaded_by_id"`
	FilePath     string    `db:"file_path" json:"file_path"`
	FileName     string    `db:"file_name" json:"file_name"`
	FileType     string    `db:"file_type" json:"file_type"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
