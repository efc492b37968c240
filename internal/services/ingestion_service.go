package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/datasight/backend/internal/logger"
	"github.com/datasight/backend/internal/models"
	"github.com/datasight/backend/internal/storage"
	"gorm.io/gorm"
)

const (
	recordPollAttempts = 5
	recordPollBackoff  = 200 * time.Millisecond

	defaultTopicName = "Initial Data Overview"
)

// IngestionService runs the upload pipeline: normalize, classify, summary
// prompt, nature prompt, persist artifacts, create the default topic.
type IngestionService struct {
	db         *gorm.DB
	llm        *LLMService
	prompts    *PromptBuilder
	classifier *SizeClassifier
	blobs      storage.BlobStore
	trigger    TopicTrigger
	sleep      func(time.Duration)
}

func NewIngestionService(db *gorm.DB, llm *LLMService, prompts *PromptBuilder, classifier *SizeClassifier, blobs storage.BlobStore, trigger TopicTrigger) *IngestionService {
	return &IngestionService{
		db:         db,
		llm:        llm,
		prompts:    prompts,
		classifier: classifier,
		blobs:      blobs,
		trigger:    trigger,
		sleep:      time.Sleep,
	}
}

// ProcessUpload ingests one accepted upload identified by its raw blob
// path of the shape raw/{ownerId}/{datasetId}/{filename}. All outcomes are
// communicated through the dataset's status fields.
func (is *IngestionService) ProcessUpload(blobPath string) error {
	ownerID, datasetID, filename, err := parseRawBlobPath(blobPath)
	if err != nil {
		logger.Error("Rejecting upload with malformed blob path", map[string]interface{}{
			"blob_path": blobPath,
			"error":     err.Error(),
		})
		return err
	}

	log := logger.WithDataset(datasetID, filename)

	// The record-creation write and the upload trigger can race; wait the
	// record out before touching it. Budget exhaustion abandons the upload
	// without a user-visible error, there is no record to mark failed.
	var dataset models.Dataset
	err = pollUntil(func() (bool, error) {
		result := is.db.Where("id = ?", datasetID).First(&dataset)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, result.Error
		}
		return true, nil
	}, recordPollAttempts, recordPollBackoff, is.sleep)
	if err != nil {
		log.Errorf("Abandoning upload, dataset record never appeared: %v", err)
		return err
	}

	if err := is.updateDatasetStatus(datasetID, models.DatasetStatusPreprocessing, ""); err != nil {
		return err
	}

	raw, err := is.blobs.Download(blobPath)
	if err != nil {
		return is.failDataset(&dataset, fmt.Sprintf("failed to download raw blob: %v", err))
	}

	normalized, err := NormalizeCSV(string(raw))
	if err != nil {
		if errors.Is(err, ErrNoUsableData) {
			return is.failDataset(&dataset, "no usable data: the file contains no non-empty rows or columns")
		}
		return is.failDataset(&dataset, fmt.Sprintf("failed to parse CSV: %v", err))
	}

	decision, err := is.classifier.Classify(normalized)
	if err != nil {
		return is.failDataset(&dataset, fmt.Sprintf("failed to classify dataset size: %v", err))
	}

	summary, err := is.generateSummary(normalized, datasetID)
	if err != nil {
		return is.failDataset(&dataset, err.Error())
	}

	// The nature prompt consumes the summary; the two calls are strictly
	// sequential.
	nature, err := is.generateNature(summary, datasetID)
	if err != nil {
		return is.failDataset(&dataset, err.Error())
	}

	cleanPath := storage.CleanBlobPath(ownerID, datasetID)
	cleanData, err := normalized.MarshalRecords()
	if err != nil {
		return is.failDataset(&dataset, fmt.Sprintf("failed to serialize cleaned records: %v", err))
	}
	if err := is.blobs.Save(cleanPath, cleanData); err != nil {
		return is.failDataset(&dataset, fmt.Sprintf("failed to persist cleaned records: %v", err))
	}

	updates := map[string]interface{}{
		"status":             models.DatasetStatusReady,
		"row_count":          normalized.RowCount,
		"column_count":       normalized.ColumnCount,
		"headers":            models.StringList(normalized.Headers),
		"dataset_summary":    models.JSONB(summary),
		"nature_description": nature,
		"serialized_size":    decision.SerializedSize,
		"clean_blob_path":    cleanPath,
		"error_message":      "",
		"updated_at":         time.Now(),
	}
	if decision.Embed {
		updates["embedded_sample"] = models.JSONBList(decision.Sample)
	}
	if err := is.db.Model(&models.Dataset{}).Where("id = ?", datasetID).Updates(updates).Error; err != nil {
		return is.failDataset(&dataset, fmt.Sprintf("failed to persist dataset artifacts: %v", err))
	}

	notification := models.Notification{
		UserID:    dataset.OwnerID,
		DatasetID: dataset.ID,
		Type:      models.NotificationDatasetReady,
		Message:   fmt.Sprintf("Dataset %q is ready for topic analysis", dataset.Filename),
	}
	if err := is.db.Create(&notification).Error; err != nil {
		log.Errorf("Failed to create readiness notification: %v", err)
	}

	topic := models.Topic{
		DatasetID:   dataset.ID,
		DisplayName: defaultTopicName,
		Status:      models.TopicStatusSubmitted,
	}
	if err := is.db.Create(&topic).Error; err != nil {
		return is.failDataset(&dataset, fmt.Sprintf("failed to create default topic: %v", err))
	}
	is.trigger.OnSubmitted(datasetID, topic.ID.String())

	log.Infof("Ingestion completed: %d rows, %d columns, embed=%t",
		normalized.RowCount, normalized.ColumnCount, decision.Embed)
	return nil
}

// generateSummary runs the summary prompt and validates the structured
// result.
func (is *IngestionService) generateSummary(ds *NormalizedDataset, datasetID string) (map[string]interface{}, error) {
	prompt, err := is.prompts.BuildSummaryPrompt(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to build summary prompt: %v", err)
	}
	response, err := is.llm.Generate(prompt, datasetID, "dataset_summary")
	if err != nil {
		return nil, fmt.Errorf("summary model call failed: %v", err)
	}
	var summary map[string]interface{}
	if err := SanitizeModelJSON(response, &summary); err != nil {
		return nil, fmt.Errorf("summary model output is not valid JSON: %v", err)
	}
	for _, field := range []string{"columns", "rowInsights", "generalObservations", "dataQualityIssues"} {
		if _, ok := summary[field]; !ok {
			return nil, fmt.Errorf("summary model output missing required field %q", field)
		}
	}
	return summary, nil
}

// generateNature runs the nature prompt over the summary.
func (is *IngestionService) generateNature(summary map[string]interface{}, datasetID string) (string, error) {
	prompt, err := is.prompts.BuildNaturePrompt(summary)
	if err != nil {
		return "", fmt.Errorf("failed to build nature prompt: %v", err)
	}
	response, err := is.llm.Generate(prompt, datasetID, "dataset_nature")
	if err != nil {
		return "", fmt.Errorf("nature model call failed: %v", err)
	}
	var nature struct {
		NatureDescription string   `json:"natureDescription"`
		SuggestedAngles   []string `json:"suggestedAngles"`
	}
	if err := SanitizeModelJSON(response, &nature); err != nil {
		return "", fmt.Errorf("nature model output is not valid JSON: %v", err)
	}
	if nature.NatureDescription == "" {
		return "", fmt.Errorf(`nature model output missing required field "natureDescription"`)
	}
	return nature.NatureDescription, nil
}

func (is *IngestionService) updateDatasetStatus(datasetID string, status models.DatasetStatus, message string) error {
	return is.db.Model(&models.Dataset{}).
		Where("id = ?", datasetID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": message,
			"updated_at":    time.Now(),
		}).Error
}

// failDataset marks the dataset terminally failed. Partial writes already
// committed (for example the cleaned blob) are left in place.
func (is *IngestionService) failDataset(dataset *models.Dataset, message string) error {
	logger.WithDataset(dataset.ID.String(), dataset.Filename).
		Errorf("Ingestion failed: %s", message)

	if err := is.updateDatasetStatus(dataset.ID.String(), models.DatasetStatusError, message); err != nil {
		return fmt.Errorf("failed to persist ingestion error: %w", err)
	}

	notification := models.Notification{
		UserID:    dataset.OwnerID,
		DatasetID: dataset.ID,
		Type:      models.NotificationDatasetFailed,
		Message:   fmt.Sprintf("Processing failed for %q: %s", dataset.Filename, message),
	}
	if err := is.db.Create(&notification).Error; err != nil {
		logger.Error("Failed to create failure notification", map[string]interface{}{
			"error":      err.Error(),
			"dataset_id": dataset.ID.String(),
		})
	}

	return fmt.Errorf("ingestion failed: %s", message)
}

// parseRawBlobPath splits raw/{ownerId}/{datasetId}/{filename}.
func parseRawBlobPath(blobPath string) (uint, string, string, error) {
	parts := strings.SplitN(blobPath, "/", 4)
	if len(parts) != 4 || parts[0] != "raw" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return 0, "", "", fmt.Errorf("blob path %q does not match raw/{ownerId}/{datasetId}/{filename}", blobPath)
	}
	ownerID, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, "", "", fmt.Errorf("blob path %q carries a non-numeric owner id", blobPath)
	}
	return uint(ownerID), parts[2], parts[3], nil
}
