package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTopicCompleted NotificationType = "topic_completed"
	NotificationTopicFailed    NotificationType = "topic_failed"
	NotificationDatasetReady   NotificationType = "dataset_ready"
	NotificationDatasetFailed  NotificationType = "dataset_failed"
)

type Notification struct {
	ID        uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uint             `json:"userId" gorm:"not null;index"`
	DatasetID uuid.UUID        `json:"datasetId" gorm:"type:uuid;index"`
	TopicID   *uuid.UUID       `json:"topicId,omitempty" gorm:"type:uuid"`
	Type      NotificationType `json:"type" gorm:"not null"`
	Message   string           `json:"message" gorm:"not null"`
	Read      bool             `json:"read" gorm:"default:false"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
