package services

import (
	"strings"
	"testing"
	"time"

	"github.com/datasight/backend/internal/models"
	"github.com/datasight/backend/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const validSummaryJSON = `{
  "columns": [{"name": "region", "inferredType": "string", "stats": "4 distinct", "description": "Sales region."}],
  "rowInsights": ["Row 0 has the highest revenue."],
  "generalObservations": ["Small, clean dataset."],
  "dataQualityIssues": []
}`

const validNatureJSON = `{
  "natureDescription": "Quarterly sales figures per region.",
  "suggestedAngles": ["Compare regions over time."]
}`

// recordingTrigger captures OnSubmitted calls instead of running anything.
type recordingTrigger struct {
	datasetIDs []string
	topicIDs   []string
}

func (rt *recordingTrigger) OnSubmitted(datasetID, topicID string) {
	rt.datasetIDs = append(rt.datasetIDs, datasetID)
	rt.topicIDs = append(rt.topicIDs, topicID)
}

func analysisLLMResponder(prompt string) string {
	if strings.Contains(prompt, "LOCALLY COMPUTED COLUMN STATISTICS") {
		return "```json\n" + validSummaryJSON + "\n```"
	}
	return validNatureJSON
}

func newIngestionFixture(t *testing.T, respond func(string) string) (*IngestionService, *gorm.DB, *storage.LocalBlobStore, *recordingTrigger) {
	t.Helper()
	db := newTestDB(t)
	llm := newFakeLLM(t, respond)
	blobs := storage.NewLocalBlobStore(t.TempDir())
	trigger := &recordingTrigger{}

	svc := NewIngestionService(db, llm.service(), NewPromptBuilder(),
		NewSizeClassifier(2000, 102400), blobs, trigger)
	svc.sleep = func(time.Duration) {}
	return svc, db, blobs, trigger
}

func seedUpload(t *testing.T, db *gorm.DB, blobs *storage.LocalBlobStore, csv string) (*models.Dataset, string) {
	t.Helper()
	datasetID := uuid.New()
	blobPath := storage.RawBlobPath(1, datasetID.String(), "sales.csv")
	require.NoError(t, blobs.Save(blobPath, []byte(csv)))

	dataset := &models.Dataset{
		ID:          datasetID,
		OwnerID:     1,
		Filename:    "sales.csv",
		Status:      models.DatasetStatusUploaded,
		RawBlobPath: blobPath,
	}
	require.NoError(t, db.Create(dataset).Error)
	return dataset, blobPath
}

func TestProcessUploadHappyPath(t *testing.T) {
	svc, db, blobs, trigger := newIngestionFixture(t, analysisLLMResponder)
	dataset, blobPath := seedUpload(t, db, blobs, "region,revenue\nwest,100\neast,80\n")

	require.NoError(t, svc.ProcessUpload(blobPath))

	var reloaded models.Dataset
	require.NoError(t, db.First(&reloaded, "id = ?", dataset.ID).Error)
	assert.Equal(t, models.DatasetStatusReady, reloaded.Status)
	assert.Equal(t, 2, reloaded.RowCount)
	assert.Equal(t, 2, reloaded.ColumnCount)
	assert.Equal(t, models.StringList{"region", "revenue"}, reloaded.Headers)
	assert.Equal(t, "Quarterly sales figures per region.", reloaded.NatureDescription)
	assert.NotNil(t, reloaded.DatasetSummary)
	assert.Empty(t, reloaded.ErrorMessage)

	// Small dataset: the embedded sample is the cleaned records exactly.
	require.Len(t, reloaded.EmbeddedSample, 2)
	assert.Equal(t, "west", reloaded.EmbeddedSample[0]["region"])
	assert.Equal(t, float64(100), reloaded.EmbeddedSample[0]["revenue"])

	// Cleaned records were persisted to the blob store.
	require.NotEmpty(t, reloaded.CleanBlobPath)
	cleanData, err := blobs.Download(reloaded.CleanBlobPath)
	require.NoError(t, err)
	assert.Contains(t, string(cleanData), "west")

	// One default topic in submitted status, trigger fired for it.
	var topics []models.Topic
	require.NoError(t, db.Where("dataset_id = ?", dataset.ID).Find(&topics).Error)
	require.Len(t, topics, 1)
	assert.Equal(t, models.TopicStatusSubmitted, topics[0].Status)
	require.Len(t, trigger.topicIDs, 1)
	assert.Equal(t, topics[0].ID.String(), trigger.topicIDs[0])
	assert.Equal(t, dataset.ID.String(), trigger.datasetIDs[0])

	var notifications []models.Notification
	require.NoError(t, db.Where("user_id = ? AND type = ?", 1, models.NotificationDatasetReady).Find(&notifications).Error)
	assert.Len(t, notifications, 1)
}

func TestProcessUploadLargeDatasetNotEmbedded(t *testing.T) {
	var csv strings.Builder
	csv.WriteString("a,b,c,d,e\n")
	for i := 0; i < 500; i++ {
		csv.WriteString("1,2,3,4,5\n")
	}

	svc, db, blobs, _ := newIngestionFixture(t, analysisLLMResponder)
	dataset, blobPath := seedUpload(t, db, blobs, csv.String())

	require.NoError(t, svc.ProcessUpload(blobPath))

	var reloaded models.Dataset
	require.NoError(t, db.First(&reloaded, "id = ?", dataset.ID).Error)
	assert.Equal(t, models.DatasetStatusReady, reloaded.Status)
	assert.Nil(t, reloaded.EmbeddedSample, "2500 cells is over the embed limit")
	assert.Greater(t, reloaded.SerializedSize, 0)
}

func TestProcessUploadNoUsableData(t *testing.T) {
	svc, db, blobs, trigger := newIngestionFixture(t, analysisLLMResponder)
	dataset, blobPath := seedUpload(t, db, blobs, "a,b\n,\n,\n")

	require.Error(t, svc.ProcessUpload(blobPath))

	var reloaded models.Dataset
	require.NoError(t, db.First(&reloaded, "id = ?", dataset.ID).Error)
	assert.Equal(t, models.DatasetStatusError, reloaded.Status)
	assert.Contains(t, reloaded.ErrorMessage, "no usable data")

	// Terminal failure: no topic, no trigger.
	var topicCount int64
	require.NoError(t, db.Model(&models.Topic{}).Where("dataset_id = ?", dataset.ID).Count(&topicCount).Error)
	assert.Equal(t, int64(0), topicCount)
	assert.Empty(t, trigger.topicIDs)
}

func TestProcessUploadMalformedSummaryOutput(t *testing.T) {
	svc, db, blobs, _ := newIngestionFixture(t, func(string) string { return "not json" })
	dataset, blobPath := seedUpload(t, db, blobs, "region,revenue\nwest,100\n")

	require.Error(t, svc.ProcessUpload(blobPath))

	var reloaded models.Dataset
	require.NoError(t, db.First(&reloaded, "id = ?", dataset.ID).Error)
	assert.Equal(t, models.DatasetStatusError, reloaded.Status)
	assert.Contains(t, reloaded.ErrorMessage, "summary model output")
}

func TestProcessUploadRecordNeverAppears(t *testing.T) {
	svc, db, blobs, _ := newIngestionFixture(t, analysisLLMResponder)

	// Blob exists but no dataset record was ever written.
	blobPath := storage.RawBlobPath(1, uuid.New().String(), "orphan.csv")
	require.NoError(t, blobs.Save(blobPath, []byte("a\n1\n")))

	err := svc.ProcessUpload(blobPath)
	require.ErrorIs(t, err, ErrRetryBudgetExhausted)

	// Abandonment leaves nothing behind.
	var count int64
	require.NoError(t, db.Model(&models.Dataset{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestProcessUploadMalformedBlobPath(t *testing.T) {
	svc, _, _, _ := newIngestionFixture(t, analysisLLMResponder)

	for _, path := range []string{"", "raw/1", "clean/1/x/y.csv", "raw/notanumber/x/y.csv"} {
		if err := svc.ProcessUpload(path); err == nil {
			t.Errorf("Expected error for blob path %q", path)
		}
	}
}
