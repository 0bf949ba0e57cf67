package models

import (
	"time"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	SubmissionReceived SubmissionStatus = "RECEIVED"
	SubmissionAnalyzed SubmissionStatus = "ANALYZED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// Submission is one uploaded document of a group.
type Submission struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	GroupID          uuid.UUID        `gorm:"type:uuid;not null;index" json:"group_id"`
	OriginalFilename string           `gorm:"type:text" json:"original_filename"`
	StorageRef       string           `gorm:"type:text;not null" json:"storage_ref"`
	Status           SubmissionStatus `gorm:"type:varchar(20);not null;default:'RECEIVED'" json:"status"`
	UploadedAt       time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"uploaded_at"`
}

func (Submission) TableName() string {
	return "submissions"
}
