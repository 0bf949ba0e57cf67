package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AnalysisState string

const (
	AnalysisCreated   AnalysisState = "CREATED"
	AnalysisRunning   AnalysisState = "RUNNING"
	AnalysisCompleted AnalysisState = "COMPLETED"
)

type ResultStatus string

const (
	ResultPass    ResultStatus = "PASS"
	ResultFail    ResultStatus = "FAIL"
	ResultPartial ResultStatus = "PARTIAL"
)

type Analysis struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	EvaluationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"evaluation_id"`
	Engine       string     `gorm:"type:varchar(50);not null" json:"engine"`
	Notes        string     `gorm:"type:text" json:"notes"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`

	Results         []AnalysisResult `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
	Recommendations []Recommendation `gorm:"foreignKey:AnalysisID;constraint:OnDelete:CASCADE" json:"recommendations,omitempty"`
}

func (Analysis) TableName() string {
	return "analyses"
}

func (a *Analysis) State() AnalysisState {
	switch {
	case a.EndedAt != nil:
		return AnalysisCompleted
	case !a.StartedAt.IsZero():
		return AnalysisRunning
	default:
		return AnalysisCreated
	}
}

type AnalysisResult struct {
	ID         uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AnalysisID uuid.UUID    `gorm:"type:uuid;not null;index" json:"analysis_id"`
	RubricID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"rubric_id"`
	GroupID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"group_id"`
	Status     ResultStatus `gorm:"type:varchar(10);not null" json:"status"`
	Score      float64      `gorm:"type:decimal(8,2)" json:"score"`
	MaxScore   float64      `gorm:"type:decimal(8,2)" json:"max_score"`
	Percentage float64      `gorm:"type:decimal(5,2)" json:"percentage"`
	Feedback   string       `gorm:"type:text" json:"feedback"`
	// Criteria keeps the per-criterion breakdown returned by the model.
	Criteria  datatypes.JSON `gorm:"type:jsonb" json:"criteria"`
	CreatedAt time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AnalysisResult) TableName() string {
	return "analysis_results"
}

type Recommendation struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	AnalysisID uuid.UUID `gorm:"type:uuid;not null;index" json:"analysis_id"`
	GroupID    uuid.UUID `gorm:"type:uuid;not null;index" json:"group_id"`
	Priority   int       `gorm:"not null" json:"priority"`
	Summary    string    `gorm:"type:text" json:"summary"`
	Detail     string    `gorm:"type:text" json:"detail"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}
