package controllers

import (
	"net/http"

	"github.com/datasight/backend/internal/models"
	"github.com/datasight/backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TopicController struct {
	db            *gorm.DB
	topicAnalysis *services.TopicAnalysisService
}

func NewTopicController(db *gorm.DB, topicAnalysis *services.TopicAnalysisService) *TopicController {
	return &TopicController{db: db, topicAnalysis: topicAnalysis}
}

type CreateTopicRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

// CreateTopic submits a named analysis over a dataset and runs it. The
// response carries either the completed result or the terminal error
// status the run ended in.
func (tc *TopicController) CreateTopic(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dataset models.Dataset
	if err := tc.db.Where("id = ? AND owner_id = ?", c.Param("id"), userID).
		First(&dataset).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}

	topic := models.Topic{
		DatasetID:   dataset.ID,
		DisplayName: req.DisplayName,
		Status:      models.TopicStatusSubmitted,
	}
	if err := tc.db.Create(&topic).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create topic"})
		return
	}

	// Run synchronously so the client gets a terminal answer; the status
	// guard inside keeps a concurrent trigger from double-running it.
	tc.topicAnalysis.RunAnalysis(dataset.ID.String(), topic.ID.String())

	if err := tc.db.Where("id = ?", topic.ID).First(&topic).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload topic"})
		return
	}

	switch topic.Status {
	case models.TopicStatusCompleted:
		c.JSON(http.StatusOK, gin.H{"topic": topic})
	case models.TopicStatusErrorPrecondition:
		c.JSON(http.StatusConflict, gin.H{
			"topic":  topic,
			"status": topic.Status,
			"error":  topic.ErrorMessage,
		})
	case models.TopicStatusErrorModelCall, models.TopicStatusErrorModelOutput:
		c.JSON(http.StatusBadGateway, gin.H{
			"topic":  topic,
			"status": topic.Status,
			"error":  topic.ErrorMessage,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"topic":  topic,
			"status": topic.Status,
			"error":  topic.ErrorMessage,
		})
	}
}

// GetTopics lists a dataset's topics, newest first.
func (tc *TopicController) GetTopics(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var dataset models.Dataset
	if err := tc.db.Where("id = ? AND owner_id = ?", c.Param("id"), userID).
		First(&dataset).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}

	var topics []models.Topic
	if err := tc.db.Where("dataset_id = ?", dataset.ID).
		Order("created_at DESC").
		Find(&topics).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch topics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// GetTopic returns one topic with its result or error state.
func (tc *TopicController) GetTopic(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	topic, ok := tc.loadOwnedTopic(c, userID.(uint))
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"topic": topic})
}

// loadOwnedTopic fetches the topic in :topicId and verifies the caller
// owns its dataset. Writes the error response itself when it fails.
func (tc *TopicController) loadOwnedTopic(c *gin.Context, userID uint) (*models.Topic, bool) {
	var topic models.Topic
	if err := tc.db.Where("id = ?", c.Param("topicId")).First(&topic).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return nil, false
	}

	var dataset models.Dataset
	if err := tc.db.Where("id = ? AND owner_id = ?", topic.DatasetID, userID).
		First(&dataset).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Topic not found"})
		return nil, false
	}
	return &topic, true
}
