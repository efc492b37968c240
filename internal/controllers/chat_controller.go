package controllers

import (
	"errors"
	"net/http"

	"github.com/datasight/backend/internal/models"
	"github.com/datasight/backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ChatController struct {
	db   *gorm.DB
	chat *services.ChatService
}

func NewChatController(db *gorm.DB, chat *services.ChatService) *ChatController {
	return &ChatController{db: db, chat: chat}
}

type ChatMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// PostMessage runs one chat turn within a topic.
func (cc *ChatController) PostMessage(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topic, ok := cc.loadOwnedTopic(c, userID.(uint))
	if !ok {
		return
	}

	result, err := cc.chat.SendMessage(topic.DatasetID.String(), topic.ID.String(), req.Message)
	if err != nil {
		var blocked *services.ContentBlockedError
		var malformed *services.MalformedOutputError
		switch {
		case errors.Is(err, services.ErrChatPrecondition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &blocked):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "The model declined to answer this message",
				"reason": blocked.Reason,
			})
		case errors.As(err, &malformed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "The model returned an unusable response"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetMessages returns a topic's transcript in timestamp order.
func (cc *ChatController) GetMessages(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	topic, ok := cc.loadOwnedTopic(c, userID.(uint))
	if !ok {
		return
	}

	messages, err := cc.chat.ListMessages(topic.DatasetID.String(), topic.ID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (cc *ChatController) loadOwnedTopic(c *gin.Context, userID uint) (*models.Topic, bool) {
	var topic models.Topic
	if err := cc.db.Where("id = ?", c.Param("topicId")).First(&topic).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return nil, false
	}

	var dataset models.Dataset
	if err := cc.db.Where("id = ? AND owner_id = ?", topic.DatasetID, userID).
		First(&dataset).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return nil, false
	}
	return &topic, true
}
