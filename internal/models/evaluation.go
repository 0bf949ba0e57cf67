package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultRubricTitle = "Rúbrica principal"

const DefaultItemMaxScore = 1.0

type Evaluation struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title          string    `gorm:"type:text;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	ExpectedGroups int       `gorm:"not null;default:0" json:"expected_groups"`
	OwnerID        string    `gorm:"type:text;index" json:"owner_id"`
	Archived       bool      `gorm:"not null;default:false" json:"archived"`
	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Relations
	Rubrics  []Rubric   `gorm:"foreignKey:EvaluationID;constraint:OnDelete:CASCADE" json:"rubrics,omitempty"`
	Groups   []Group    `gorm:"foreignKey:EvaluationID;constraint:OnDelete:CASCADE" json:"groups,omitempty"`
	Analyses []Analysis `gorm:"foreignKey:EvaluationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

// PrimaryRubric is the rubric created together with the evaluation.
func (e *Evaluation) PrimaryRubric() *Rubric {
	if len(e.Rubrics) == 0 {
		return nil
	}
	return &e.Rubrics[0]
}

type Rubric struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	EvaluationID uuid.UUID `gorm:"type:uuid;not null;index" json:"evaluation_id"`
	Title        string    `gorm:"type:text;not null" json:"title"`
	// SourceRef points at the PDF the rubric was derived from, if any.
	SourceRef *string   `gorm:"type:text" json:"source_ref,omitempty"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	Items []RubricItem `gorm:"foreignKey:RubricID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Rubric) TableName() string {
	return "rubrics"
}

type RubricItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	RubricID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_rubric_item_order" json:"rubric_id"`
	OrderIndex int       `gorm:"not null;uniqueIndex:idx_rubric_item_order" json:"order_index"`
	Title      string    `gorm:"type:text;not null" json:"title"`
	Conditions string    `gorm:"type:text" json:"conditions"`
	MaxScore   float64   `gorm:"type:decimal(6,2);not null;default:1" json:"max_score"`
}

func (RubricItem) TableName() string {
	return "rubric_items"
}
