package services

import (
	"strings"
	"testing"

	"github.com/datasight/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validChatJSON = `{
  "conciseReply": "Revenue is concentrated in the west.",
  "detailedBlock": {
    "questionAsked": "Where is revenue concentrated?",
    "findings": "<p>The <col>region</col> west dominates.</p>",
    "reasoning": "<ol><li>One</li><li>Two</li><li>Three</li></ol>",
    "followUps": ["Why does the west dominate?"]
  }
}`

func TestSendMessageHappyPath(t *testing.T) {
	db := newTestDB(t)
	llm := newFakeLLM(t, func(string) string { return validChatJSON })
	svc := NewChatService(db, llm.service(), NewPromptBuilder())

	dataset := createReadyDataset(t, db)
	topic := createSubmittedTopic(t, db, dataset)

	result, err := svc.SendMessage(dataset.ID.String(), topic.ID.String(), "Where is revenue concentrated?")
	require.NoError(t, err)
	assert.Equal(t, "Revenue is concentrated in the west.", result.ConciseReply)
	assert.Equal(t, "Where is revenue concentrated?", result.DetailedBlock["questionAsked"])

	// Both turns are persisted: the user message first, then the model's.
	var messages []models.ChatMessage
	require.NoError(t, db.Where("topic_id = ?", topic.ID).Order("timestamp asc").Find(&messages).Error)
	require.Len(t, messages, 2)
	assert.Equal(t, models.ChatRoleUser, messages[0].Role)
	assert.Equal(t, "Where is revenue concentrated?", messages[0].Parts[0])
	assert.Equal(t, models.ChatRoleModel, messages[1].Role)
	assert.NotNil(t, messages[1].DetailedAnalysisBlock)
}

func TestSendMessageIncludesOwnMessageInContext(t *testing.T) {
	db := newTestDB(t)

	var seenPrompt string
	llm := newFakeLLM(t, func(prompt string) string {
		seenPrompt = prompt
		return validChatJSON
	})
	svc := NewChatService(db, llm.service(), NewPromptBuilder())

	dataset := createReadyDataset(t, db)
	topic := createSubmittedTopic(t, db, dataset)

	_, err := svc.SendMessage(dataset.ID.String(), topic.ID.String(), "a very specific question")
	require.NoError(t, err)

	// The user message is appended before the transcript is read back, so
	// the prompt's transcript section contains it.
	require.NotEmpty(t, seenPrompt)
	assert.True(t, strings.Contains(seenPrompt, "user: a very specific question"),
		"transcript should contain the message that triggered this turn")
}

func TestSendMessagePrecondition(t *testing.T) {
	db := newTestDB(t)
	llm := newFakeLLM(t, func(string) string { return validChatJSON })
	svc := NewChatService(db, llm.service(), NewPromptBuilder())

	dataset := &models.Dataset{OwnerID: 1, Filename: "pending.csv", Status: models.DatasetStatusPreprocessing}
	require.NoError(t, db.Create(dataset).Error)
	topic := createSubmittedTopic(t, db, dataset)

	_, err := svc.SendMessage(dataset.ID.String(), topic.ID.String(), "hello")
	require.ErrorIs(t, err, ErrChatPrecondition)
	assert.Equal(t, 0, llm.callCount())
}

func TestSendMessageMalformedModelOutput(t *testing.T) {
	db := newTestDB(t)
	llm := newFakeLLM(t, func(string) string { return "not json at all" })
	svc := NewChatService(db, llm.service(), NewPromptBuilder())

	dataset := createReadyDataset(t, db)
	topic := createSubmittedTopic(t, db, dataset)

	_, err := svc.SendMessage(dataset.ID.String(), topic.ID.String(), "hello")
	require.Error(t, err)

	var malformed *MalformedOutputError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "not json at all", malformed.Raw)

	// The model message is never appended on failure; the user message
	// stays, since messages are append-only and never rolled back.
	var messages []models.ChatMessage
	require.NoError(t, db.Where("topic_id = ?", topic.ID).Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, models.ChatRoleUser, messages[0].Role)
}

func TestSendMessageContentBlocked(t *testing.T) {
	db := newTestDB(t)
	llm := newFakeLLM(t, func(string) string { return validChatJSON })
	llm.blocked = "PROHIBITED_CONTENT"
	svc := NewChatService(db, llm.service(), NewPromptBuilder())

	dataset := createReadyDataset(t, db)
	topic := createSubmittedTopic(t, db, dataset)

	_, err := svc.SendMessage(dataset.ID.String(), topic.ID.String(), "hello")
	var blocked *ContentBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "PROHIBITED_CONTENT", blocked.Reason)
}

func TestListMessagesOrdered(t *testing.T) {
	db := newTestDB(t)
	llm := newFakeLLM(t, func(string) string { return validChatJSON })
	svc := NewChatService(db, llm.service(), NewPromptBuilder())

	dataset := createReadyDataset(t, db)
	topic := createSubmittedTopic(t, db, dataset)

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(dataset.ID.String(), topic.ID.String(), "question")
		require.NoError(t, err)
	}

	messages, err := svc.ListMessages(dataset.ID.String(), topic.ID.String())
	require.NoError(t, err)
	require.Len(t, messages, 6)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].Timestamp.Before(messages[i-1].Timestamp),
			"messages must come back in ascending timestamp order")
	}
}
