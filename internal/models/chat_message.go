package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is one append-only turn in a topic's conversation.
// Timestamp is assigned by the store and is the only ordering key;
// messages are never updated or deleted.
type ChatMessage struct {
	ID                    uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TopicID               uuid.UUID  `json:"topicId" gorm:"type:uuid;not null;index"`
	Role                  ChatRole   `json:"role" gorm:"not null"`
	Parts                 StringList `json:"parts" gorm:"type:jsonb"`
	DetailedAnalysisBlock JSONB      `json:"detailedAnalysisBlock,omitempty" gorm:"type:jsonb"`
	Timestamp             time.Time  `json:"timestamp" gorm:"autoCreateTime;index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Text joins the message parts; legacy rows with no parts read as empty.
func (m *ChatMessage) Text() string {
	if len(m.Parts) == 0 {
		return ""
	}
	out := m.Parts[0]
	for _, p := range m.Parts[1:] {
		out += "\n" + p
	}
	return out
}
