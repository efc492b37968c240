package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TopicStatus string

const (
	TopicStatusSubmitted         TopicStatus = "submitted"
	TopicStatusAnalyzing         TopicStatus = "analyzing"
	TopicStatusCompleted         TopicStatus = "completed"
	TopicStatusErrorPrecondition TopicStatus = "error_precondition"
	TopicStatusErrorModelCall    TopicStatus = "error_model_call"
	TopicStatusErrorModelOutput  TopicStatus = "error_model_output"
	TopicStatusErrorInternal     TopicStatus = "error_internal"
)

// IsTerminal reports whether no further transitions are allowed from s.
// Only submitted and analyzing are non-terminal.
func (s TopicStatus) IsTerminal() bool {
	return s != TopicStatusSubmitted && s != TopicStatusAnalyzing
}

// Topic is one named analysis over a dataset. Its Status walks
// submitted -> analyzing -> completed or exactly one error status.
type Topic struct {
	ID                    uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	DatasetID             uuid.UUID   `json:"datasetId" gorm:"type:uuid;not null;index"`
	Dataset               *Dataset    `json:"dataset,omitempty" gorm:"foreignKey:DatasetID"`
	DisplayName           string      `json:"displayName" gorm:"not null"`
	Status                TopicStatus `json:"status" gorm:"not null;default:'submitted';index"`
	InitialAnalysisResult JSONB       `json:"initialAnalysisResult,omitempty" gorm:"type:jsonb"`
	ErrorMessage          string      `json:"errorMessage,omitempty"`
	CreatedAt             time.Time   `json:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt"`
}

func (Topic) TableName() string {
	return "topics"
}

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
