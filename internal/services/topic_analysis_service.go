package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/datasight/backend/internal/logger"
	"github.com/datasight/backend/internal/models"
	"gorm.io/gorm"
)

// TopicTrigger is how storage-change events reach the state machine.
// Delivery is at-least-once; the status guard makes duplicates harmless.
type TopicTrigger interface {
	OnSubmitted(datasetID, topicID string)
}

type topicJob struct {
	DatasetID string
	TopicID   string
}

// TopicAnalysisService owns every Topic status transition. A topic walks
// submitted -> analyzing -> completed, or analyzing -> one error status;
// re-running a topic is an external re-submit, never a resume.
type TopicAnalysisService struct {
	db       *gorm.DB
	llm      *LLMService
	prompts  *PromptBuilder
	jobQueue chan topicJob
}

func NewTopicAnalysisService(db *gorm.DB, llm *LLMService, prompts *PromptBuilder) *TopicAnalysisService {
	return &TopicAnalysisService{
		db:       db,
		llm:      llm,
		prompts:  prompts,
		jobQueue: make(chan topicJob, 100),
	}
}

// StartWorkers launches the analysis worker pool. Workers drain the queue
// until stopChan closes.
func (ts *TopicAnalysisService) StartWorkers(count int, stopChan chan struct{}) {
	for i := 0; i < count; i++ {
		workerID := i + 1
		go func() {
			logger.Info("Topic analysis worker started", map[string]interface{}{
				"worker_id": workerID,
			})
			for {
				select {
				case job := <-ts.jobQueue:
					if err := ts.RunAnalysis(job.DatasetID, job.TopicID); err != nil {
						logger.WithTopic(job.TopicID, job.DatasetID).Errorf("Topic analysis run failed: %v", err)
					}
				case <-stopChan:
					logger.Info("Topic analysis worker stopping", map[string]interface{}{
						"worker_id": workerID,
					})
					return
				}
			}
		}()
	}
}

// OnSubmitted implements TopicTrigger by queueing the run.
func (ts *TopicAnalysisService) OnSubmitted(datasetID, topicID string) {
	ts.jobQueue <- topicJob{DatasetID: datasetID, TopicID: topicID}
}

// RunAnalysis executes one analysis run for a submitted topic. A topic in
// any other status is left untouched, which is what makes duplicate
// trigger delivery safe.
func (ts *TopicAnalysisService) RunAnalysis(datasetID, topicID string) error {
	log := logger.WithTopic(topicID, datasetID)

	var topic models.Topic
	if err := ts.db.Where("id = ?", topicID).First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("Trigger fired for unknown topic")
			return nil
		}
		return fmt.Errorf("failed to load topic: %w", err)
	}
	if topic.Status != models.TopicStatusSubmitted {
		log.Infof("Ignoring trigger for topic in status %s", topic.Status)
		return nil
	}

	// Atomic claim. The analyzing row is persisted before any model call
	// so a crash mid-run leaves the topic visibly stuck instead of
	// silently re-running.
	claim := ts.db.Model(&models.Topic{}).
		Where("id = ? AND status = ?", topicID, models.TopicStatusSubmitted).
		Updates(map[string]interface{}{
			"status":     models.TopicStatusAnalyzing,
			"updated_at": time.Now(),
		})
	if claim.Error != nil {
		return fmt.Errorf("failed to claim topic: %w", claim.Error)
	}
	if claim.RowsAffected == 0 {
		log.Info("Topic already claimed by a concurrent run")
		return nil
	}

	var dataset models.Dataset
	if err := ts.db.Where("id = ?", datasetID).First(&dataset).Error; err != nil {
		return ts.failTopic(&topic, &dataset, models.TopicStatusErrorInternal,
			fmt.Sprintf("failed to load dataset %s: %v", datasetID, err))
	}

	if dataset.DatasetSummary == nil || dataset.NatureDescription == "" {
		return ts.failTopic(&topic, &dataset, models.TopicStatusErrorPrecondition,
			"dataset summary or nature description missing; ingestion has not completed")
	}

	dataContext, err := ts.prompts.BuildDataContext(dataset.EmbeddedSample, dataset.DatasetSummary)
	if err != nil {
		return ts.failTopic(&topic, &dataset, models.TopicStatusErrorInternal,
			fmt.Sprintf("failed to build data context: %v", err))
	}

	prompt := ts.prompts.BuildTopicPrompt(topic.DisplayName, dataset.NatureDescription, dataContext)

	response, err := ts.llm.Generate(prompt, datasetID, "topic_analysis")
	if err != nil {
		var blocked *ContentBlockedError
		if errors.As(err, &blocked) {
			return ts.failTopic(&topic, &dataset, models.TopicStatusErrorModelCall,
				fmt.Sprintf("content blocked by generation service (reason: %s)", blocked.Reason))
		}
		return ts.failTopic(&topic, &dataset, models.TopicStatusErrorModelCall, err.Error())
	}

	result, errMsg := parseTopicAnalysisResult(response)
	if errMsg != "" {
		return ts.failTopic(&topic, &dataset, models.TopicStatusErrorModelOutput, errMsg)
	}

	if err := ts.db.Model(&models.Topic{}).
		Where("id = ?", topicID).
		Updates(map[string]interface{}{
			"initial_analysis_result": models.JSONB(result),
			"status":                  models.TopicStatusCompleted,
			"error_message":           "",
			"updated_at":              time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to persist analysis result: %w", err)
	}

	// The first model message of a topic mirrors the concise summary as
	// plain chat text.
	concise, _ := result["conciseSummary"].(string)
	message := models.ChatMessage{
		TopicID: topic.ID,
		Role:    models.ChatRoleModel,
		Parts:   models.StringList{concise},
	}
	if err := ts.db.Create(&message).Error; err != nil {
		log.Errorf("Failed to append initial chat message: %v", err)
	}

	if err := ts.db.Model(&models.Dataset{}).
		Where("id = ?", datasetID).
		Update("updated_at", time.Now()).Error; err != nil {
		log.Errorf("Failed to touch dataset timestamp: %v", err)
	}

	ts.notify(&dataset, &topic, models.NotificationTopicCompleted,
		fmt.Sprintf("Analysis completed for topic %q", topic.DisplayName))

	log.Info("Topic analysis completed")
	return nil
}

// parseTopicAnalysisResult sanitizes and validates the model output.
// Every required field must be present and non-empty; anything less is
// incomplete output, not partial success.
func parseTopicAnalysisResult(response string) (map[string]interface{}, string) {
	var result map[string]interface{}
	if err := SanitizeModelJSON(response, &result); err != nil {
		var malformed *MalformedOutputError
		if errors.As(err, &malformed) {
			logger.Error("Model output failed sanitization", map[string]interface{}{
				"raw":     malformed.Raw,
				"cleaned": malformed.Cleaned,
				"error":   malformed.Err.Error(),
			})
		}
		return nil, fmt.Sprintf("model output is not valid JSON: %v", err)
	}

	for _, field := range []string{"conciseSummary", "findings", "reasoning"} {
		s, ok := result[field].(string)
		if !ok || s == "" {
			return nil, fmt.Sprintf("model output missing required field %q", field)
		}
	}
	if _, ok := result["followUpQuestions"]; !ok {
		return nil, `model output missing required field "followUpQuestions"`
	}
	return result, ""
}

// failTopic persists a terminal error status with its message and emits
// the failure notification. The run ends here; retry is the caller's
// decision, expressed as a new submit.
func (ts *TopicAnalysisService) failTopic(topic *models.Topic, dataset *models.Dataset, status models.TopicStatus, message string) error {
	logger.WithTopic(topic.ID.String(), topic.DatasetID.String()).
		Errorf("Topic analysis failed (%s): %s", status, message)

	if err := ts.db.Model(&models.Topic{}).
		Where("id = ?", topic.ID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": message,
			"updated_at":    time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to persist error status: %w", err)
	}

	ts.notify(dataset, topic, models.NotificationTopicFailed,
		fmt.Sprintf("Analysis failed for topic %q: %s", topic.DisplayName, message))

	return fmt.Errorf("topic analysis failed (%s): %s", status, message)
}

func (ts *TopicAnalysisService) notify(dataset *models.Dataset, topic *models.Topic, ntype models.NotificationType, message string) {
	if dataset == nil || dataset.OwnerID == 0 {
		return
	}
	topicID := topic.ID
	notification := models.Notification{
		UserID:    dataset.OwnerID,
		DatasetID: dataset.ID,
		TopicID:   &topicID,
		Type:      ntype,
		Message:   message,
	}
	if err := ts.db.Create(&notification).Error; err != nil {
		logger.Error("Failed to create notification", map[string]interface{}{
			"error":    err.Error(),
			"topic_id": topic.ID.String(),
		})
	}
}
