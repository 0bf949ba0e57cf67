package models

import (
	"time"

	"github.com/google/uuid"
)

type Group struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	EvaluationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_group_code" json:"evaluation_id"`
	Code         string    `gorm:"type:text;not null;uniqueIndex:idx_group_code" json:"code"`
	Name         string    `gorm:"type:text" json:"name"`
	StudentCount int       `gorm:"not null;default:0" json:"student_count"`
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Submissions are loaded newest first.
	Submissions []Submission `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"submissions,omitempty"`
}

func (Group) TableName() string {
	return "groups"
}

// LatestSubmission returns the most recently uploaded submission, or nil.
func (g *Group) LatestSubmission() *Submission {
	var latest *Submission
	for i := range g.Submissions {
		s := &g.Submissions[i]
		if latest == nil || s.UploadedAt.After(latest.UploadedAt) {
			latest = s
		}
	}
	return latest
}
