package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/datasight/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// Shared-cache memory DBs leak across tests unless each gets its own
	// tables; migrating over a fresh drop keeps tests isolated.
	require.NoError(t, db.Migrator().DropTable(
		&models.User{}, &models.Dataset{}, &models.Topic{},
		&models.ChatMessage{}, &models.Notification{},
	))
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Dataset{}, &models.Topic{},
		&models.ChatMessage{}, &models.Notification{},
	))
	return db
}

// fakeLLM is an httptest stand-in for the generation service. respond maps
// the prompt to the candidate text; calls counts every generateContent hit.
type fakeLLM struct {
	server  *httptest.Server
	calls   int32
	respond func(prompt string) string
	blocked string
}

func newFakeLLM(t *testing.T, respond func(prompt string) string) *fakeLLM {
	t.Helper()
	f := &fakeLLM{respond: respond}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)

		body, _ := io.ReadAll(r.Body)
		var req GenerateContentRequest
		_ = json.Unmarshal(body, &req)
		prompt := ""
		if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			prompt = req.Contents[0].Parts[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		if f.blocked != "" {
			fmt.Fprintf(w, `{"candidates":[],"promptFeedback":{"blockReason":%q}}`, f.blocked)
			return
		}

		resp := GenerateContentResponse{
			Candidates: []Candidate{{
				Content:      Content{Role: "model", Parts: []Part{{Text: f.respond(prompt)}}},
				FinishReason: "STOP",
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeLLM) service() *LLMService {
	return NewLLMService(f.server.URL, "test-model", "")
}

func (f *fakeLLM) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

const validTopicJSON = `{
  "conciseSummary": "Sales grew steadily across all regions.",
  "findings": "<p>The <col>region</col> column shows growth.</p>",
  "reasoning": "<ol><li>One</li><li>Two</li><li>Three</li></ol>",
  "followUpQuestions": ["Which region grew fastest?"]
}`

func createReadyDataset(t *testing.T, db *gorm.DB) *models.Dataset {
	t.Helper()
	dataset := &models.Dataset{
		OwnerID:  1,
		Filename: "sales.csv",
		Status:   models.DatasetStatusReady,
		DatasetSummary: models.JSONB{
			"columns": []interface{}{},
		},
		NatureDescription: "Quarterly sales transactions.",
		EmbeddedSample: models.JSONBList{
			{"region": "west", "revenue": float64(100)},
		},
		RowCount:    1,
		ColumnCount: 2,
	}
	require.NoError(t, db.Create(dataset).Error)
	return dataset
}

func createSubmittedTopic(t *testing.T, db *gorm.DB, dataset *models.Dataset) *models.Topic {
	t.Helper()
	topic := &models.Topic{
		DatasetID:   dataset.ID,
		DisplayName: "Revenue by region",
		Status:      models.TopicStatusSubmitted,
	}
	require.NoError(t, db.Create(topic).Error)
	return topic
}
