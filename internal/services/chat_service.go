package services

import (
	"errors"
	"fmt"

	"github.com/datasight/backend/internal/logger"
	"github.com/datasight/backend/internal/models"
	"gorm.io/gorm"
)

// ErrChatPrecondition means the dataset artifacts a chat turn needs are
// not there yet. Callers map it to a 409-style rejection.
var ErrChatPrecondition = errors.New("dataset is not ready for chat")

// ChatTurnResult is what one chat call returns to the user.
type ChatTurnResult struct {
	ConciseReply  string                 `json:"conciseReply"`
	DetailedBlock map[string]interface{} `json:"detailedBlock"`
}

// ChatService runs follow-up conversation turns within a topic.
type ChatService struct {
	db      *gorm.DB
	llm     *LLMService
	prompts *PromptBuilder
}

func NewChatService(db *gorm.DB, llm *LLMService, prompts *PromptBuilder) *ChatService {
	return &ChatService{db: db, llm: llm, prompts: prompts}
}

// SendMessage appends the user's message, answers it with the model and
// appends the model's reply. The user message is written before the
// transcript is read back, so it is part of its own context window.
func (cs *ChatService) SendMessage(datasetID, topicID, messageText string) (*ChatTurnResult, error) {
	var topic models.Topic
	if err := cs.db.Where("id = ? AND dataset_id = ?", topicID, datasetID).First(&topic).Error; err != nil {
		return nil, fmt.Errorf("failed to load topic: %w", err)
	}

	var dataset models.Dataset
	if err := cs.db.Where("id = ?", datasetID).First(&dataset).Error; err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	if dataset.DatasetSummary == nil || dataset.NatureDescription == "" {
		return nil, ErrChatPrecondition
	}

	userMessage := models.ChatMessage{
		TopicID: topic.ID,
		Role:    models.ChatRoleUser,
		Parts:   models.StringList{messageText},
	}
	if err := cs.db.Create(&userMessage).Error; err != nil {
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}

	var messages []models.ChatMessage
	if err := cs.db.Where("topic_id = ?", topicID).
		Order("timestamp asc").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	transcript := RenderTranscript(AssembleChatContext(messages))

	dataContext, err := cs.prompts.BuildDataContext(dataset.EmbeddedSample, dataset.DatasetSummary)
	if err != nil {
		return nil, fmt.Errorf("failed to build data context: %w", err)
	}

	prompt := cs.prompts.BuildChatPrompt(dataContext, transcript, messageText)

	response, err := cs.llm.Generate(prompt, datasetID, "chat_turn")
	if err != nil {
		// Content blocks pass through unchanged so the caller can show
		// the reason code.
		return nil, err
	}

	var result ChatTurnResult
	if err := SanitizeModelJSON(response, &result); err != nil {
		return nil, err
	}
	if result.ConciseReply == "" {
		return nil, fmt.Errorf(`chat model output missing required field "conciseReply"`)
	}
	for _, field := range []string{"questionAsked", "findings", "reasoning"} {
		if _, ok := result.DetailedBlock[field]; !ok {
			return nil, fmt.Errorf("chat model output missing required field %q in detailedBlock", field)
		}
	}

	modelMessage := models.ChatMessage{
		TopicID:               topic.ID,
		Role:                  models.ChatRoleModel,
		Parts:                 models.StringList{result.ConciseReply},
		DetailedAnalysisBlock: models.JSONB(result.DetailedBlock),
	}
	if err := cs.db.Create(&modelMessage).Error; err != nil {
		return nil, fmt.Errorf("failed to append model message: %w", err)
	}

	logger.WithTopic(topicID, datasetID).Info("Chat turn completed")
	return &result, nil
}

// ListMessages returns the topic's transcript in timestamp order.
func (cs *ChatService) ListMessages(datasetID, topicID string) ([]models.ChatMessage, error) {
	var topic models.Topic
	if err := cs.db.Where("id = ? AND dataset_id = ?", topicID, datasetID).First(&topic).Error; err != nil {
		return nil, fmt.Errorf("failed to load topic: %w", err)
	}
	var messages []models.ChatMessage
	if err := cs.db.Where("topic_id = ?", topicID).
		Order("timestamp asc").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	return messages, nil
}
