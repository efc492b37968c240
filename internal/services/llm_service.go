package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/datasight/backend/internal/logger"
)

// LLMService talks to a Gemini-style generateContent endpoint over plain
// HTTP and keeps an in-memory trail of recent API calls for the
// observability endpoints.
type LLMService struct {
	baseURL   string
	model     string
	apiKey    string
	client    *http.Client
	apiCalls  []LLMAPICall
	callMutex sync.RWMutex
}

type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type GenerationConfig struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
}

type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// ContentBlockedError means the generation service refused to produce
// content and reported a safety/block reason instead. The reason code is
// user-visible.
type ContentBlockedError struct {
	Reason string
}

func (e *ContentBlockedError) Error() string {
	return fmt.Sprintf("content blocked by generation service: %s", e.Reason)
}

// LLMAPICall tracking
type LLMAPICall struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Endpoint  string                 `json:"endpoint"`
	Model     string                 `json:"model"`
	DatasetID string                 `json:"datasetId,omitempty"`
	CallType  string                 `json:"callType"` // "dataset_summary", "dataset_nature", "topic_analysis", "chat_turn"
	Payload   map[string]interface{} `json:"payload"`
	Status    int                    `json:"status"`
	Duration  time.Duration          `json:"duration"`
	Response  string                 `json:"response"`
	Error     string                 `json:"error,omitempty"`
}

func NewLLMService(baseURL, model, apiKey string) *LLMService {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}

	timeoutStr := os.Getenv("LLM_TIMEOUT_SECONDS")
	timeout := 300 * time.Second
	if timeoutStr != "" {
		if t, err := time.ParseDuration(timeoutStr + "s"); err == nil {
			timeout = t
		}
	}

	return &LLMService{
		baseURL:  baseURL,
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		apiCalls: make([]LLMAPICall, 0),
	}
}

func NewLLMServiceFromEnv() *LLMService {
	return NewLLMService(
		os.Getenv("LLM_BASE_URL"),
		os.Getenv("LLM_MODEL"),
		os.Getenv("LLM_API_KEY"),
	)
}

// GetAPICalls returns all tracked LLM API calls
func (ls *LLMService) GetAPICalls() []LLMAPICall {
	ls.callMutex.RLock()
	defer ls.callMutex.RUnlock()

	calls := make([]LLMAPICall, len(ls.apiCalls))
	copy(calls, ls.apiCalls)
	return calls
}

// ClearAPICalls clears the API call history
func (ls *LLMService) ClearAPICalls() {
	ls.callMutex.Lock()
	defer ls.callMutex.Unlock()
	ls.apiCalls = make([]LLMAPICall, 0)
}

// addAPICall keeps only the last 100 calls to bound memory use
func (ls *LLMService) addAPICall(call LLMAPICall) {
	ls.callMutex.Lock()
	defer ls.callMutex.Unlock()

	if len(ls.apiCalls) >= 100 {
		ls.apiCalls = ls.apiCalls[1:]
	}
	ls.apiCalls = append(ls.apiCalls, call)
}

// TrackAPICall records one call with its outcome
func (ls *LLMService) TrackAPICall(datasetID, callType string, payload map[string]interface{}, status int, duration time.Duration, response string, errMsg string) {
	call := LLMAPICall{
		ID:        fmt.Sprintf("llm_%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		Endpoint:  ":generateContent",
		Model:     ls.model,
		DatasetID: datasetID,
		CallType:  callType,
		Payload:   payload,
		Status:    status,
		Duration:  duration,
		Response:  response,
	}
	if errMsg != "" {
		call.Error = errMsg
	}
	ls.addAPICall(call)
}

// Generate sends one prompt and returns the model's text. The client
// timeout bounds the call; use GenerateWithContext for a caller-owned
// deadline.
func (ls *LLMService) Generate(prompt, datasetID, callType string) (string, error) {
	return ls.GenerateWithContext(context.Background(), prompt, datasetID, callType)
}

// GenerateWithContext sends one prompt with the caller's context.
func (ls *LLMService) GenerateWithContext(ctx context.Context, prompt, datasetID, callType string) (string, error) {
	startTime := time.Now()

	request := GenerateContentRequest{
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: prompt}}},
		},
		GenerationConfig: &GenerationConfig{
			Temperature: 0.2,
			TopP:        0.8,
		},
	}

	payload := map[string]interface{}{"prompt_length": len(prompt), "call_type": callType}

	jsonData, err := json.Marshal(request)
	if err != nil {
		ls.TrackAPICall(datasetID, callType, payload, 0, time.Since(startTime), "", fmt.Sprintf("failed to marshal request: %v", err))
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", ls.baseURL, ls.model)
	logger.WithLLM(datasetID, callType).Infof("Making LLM request with prompt length: %d characters", len(prompt))

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		ls.TrackAPICall(datasetID, callType, payload, 0, time.Since(startTime), "", fmt.Sprintf("failed to create request: %v", err))
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ls.apiKey != "" {
		req.Header.Set("x-goog-api-key", ls.apiKey)
	}

	resp, err := ls.client.Do(req)
	elapsed := time.Since(startTime)

	if err != nil {
		logger.WithLLM(datasetID, callType).Errorf("LLM request failed after %v: %v", elapsed, err)
		ls.TrackAPICall(datasetID, callType, payload, 0, elapsed, "", fmt.Sprintf("HTTP request failed: %v", err))
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBodyBytes, _ := io.ReadAll(resp.Body)
		ls.TrackAPICall(datasetID, callType, payload, resp.StatusCode, elapsed, "", fmt.Sprintf("generation API returned status %d, body: %s", resp.StatusCode, string(respBodyBytes)))
		return "", fmt.Errorf("generation API returned status %d, body: %s", resp.StatusCode, string(respBodyBytes))
	}

	var genResp GenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		ls.TrackAPICall(datasetID, callType, payload, resp.StatusCode, elapsed, "", fmt.Sprintf("failed to decode response: %v", err))
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	text, err := extractCandidateText(&genResp)
	if err != nil {
		ls.TrackAPICall(datasetID, callType, payload, resp.StatusCode, elapsed, "", err.Error())
		return "", err
	}

	ls.TrackAPICall(datasetID, callType, payload, resp.StatusCode, elapsed, text, "")
	return text, nil
}

// extractCandidateText pulls candidates[0].content.parts[0].text out of the
// response, surfacing safety blocks as ContentBlockedError.
func extractCandidateText(resp *GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &ContentBlockedError{Reason: resp.PromptFeedback.BlockReason}
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("generation response contained no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return "", &ContentBlockedError{Reason: candidate.FinishReason}
	}
	if len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("generation candidate contained no parts (finishReason: %s)", candidate.FinishReason)
	}
	return candidate.Content.Parts[0].Text, nil
}

// CheckLLMHealth verifies the generation endpoint is reachable and the
// configured model exists.
func (ls *LLMService) CheckLLMHealth() error {
	url := fmt.Sprintf("%s/v1beta/models/%s", ls.baseURL, ls.model)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	if ls.apiKey != "" {
		req.Header.Set("x-goog-api-key", ls.apiKey)
	}

	resp, err := ls.client.Do(req)
	if err != nil {
		return fmt.Errorf("generation service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("generation service returned status %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

// GetModel returns the configured model name
func (ls *LLMService) GetModel() string {
	return ls.model
}
