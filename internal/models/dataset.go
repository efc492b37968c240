package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DatasetStatus string

const (
	DatasetStatusUploaded      DatasetStatus = "uploaded"
	DatasetStatusPreprocessing DatasetStatus = "preprocessing"
	DatasetStatusReady         DatasetStatus = "ready_for_topic_analysis"
	DatasetStatusError         DatasetStatus = "error_processing"
)

// Dataset is one uploaded CSV and everything ingestion derived from it.
// EmbeddedSample is NULL when the dataset was too large to embed; in that
// case consumers fall back to DatasetSummary for prompt context.
type Dataset struct {
	ID                uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID           uint          `json:"ownerId" gorm:"not null;index"`
	Owner             *User         `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Filename          string        `json:"filename" gorm:"not null"`
	Status            DatasetStatus `json:"status" gorm:"not null;default:'uploaded';index"`
	RowCount          int           `json:"rowCount"`
	ColumnCount       int           `json:"columnCount"`
	Headers           StringList    `json:"headers" gorm:"type:jsonb"`
	DatasetSummary    JSONB         `json:"datasetSummary,omitempty" gorm:"type:jsonb"`
	NatureDescription string        `json:"datasetNatureDescription,omitempty" gorm:"type:text"`
	EmbeddedSample    JSONBList     `json:"embeddedSample,omitempty" gorm:"type:jsonb"`
	SerializedSize    int           `json:"serializedSize"`
	RawBlobPath       string        `json:"rawBlobPath"`
	CleanBlobPath     string        `json:"cleanBlobPath,omitempty"`
	ErrorMessage      string        `json:"errorMessage,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

func (Dataset) TableName() string {
	return "datasets"
}

func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
