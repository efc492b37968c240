package services

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bounds on what prompt construction will inline. The sample ceiling is
// independent of the embed decision; even embedded datasets are capped
// per cell so a single huge value cannot blow up the prompt.
const (
	summarySampleRows = 200
	maxCellChars      = 250
)

// PromptBuilder composes the four prompt kinds. Every method is a pure
// function of its inputs; all prompt text lives in prompts.go.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildSummaryPrompt renders the column/row summary request from the
// cleaned dataset, inlining at most summarySampleRows records and the
// locally computed column statistics.
func (pb *PromptBuilder) BuildSummaryPrompt(ds *NormalizedDataset) (string, error) {
	sampleCount := ds.RowCount
	if sampleCount > summarySampleRows {
		sampleCount = summarySampleRows
	}
	sample, err := json.MarshalIndent(truncateRecords(ds.Records[:sampleCount]), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize sample records: %w", err)
	}

	statsBlock := FormatColumnStats(ComputeColumnStats(ds))

	return fmt.Sprintf(DATASET_SUMMARY_PROMPT,
		strings.Join(ds.Headers, ", "),
		ds.RowCount,
		ds.ColumnCount,
		statsBlock,
		sampleCount,
		ds.RowCount,
		string(sample),
	), nil
}

// BuildNaturePrompt renders the dataset-nature request from the structured
// summary produced by the summary prompt.
func (pb *PromptBuilder) BuildNaturePrompt(summary map[string]interface{}) (string, error) {
	serialized, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize dataset summary: %w", err)
	}
	return fmt.Sprintf(DATASET_NATURE_PROMPT, string(serialized)), nil
}

// BuildTopicPrompt renders one topic-analysis request.
func (pb *PromptBuilder) BuildTopicPrompt(displayName, natureDescription, dataContext string) string {
	return fmt.Sprintf(TOPIC_ANALYSIS_PROMPT, displayName, natureDescription, dataContext)
}

// BuildChatPrompt renders one chat-turn request from the data context, the
// rendered transcript and the new user message.
func (pb *PromptBuilder) BuildChatPrompt(dataContext, transcript, newMessage string) string {
	return fmt.Sprintf(CHAT_TURN_PROMPT, dataContext, transcript, newMessage)
}

// BuildDataContext assembles the data block shared by topic and chat
// prompts. When the persisted embed decision admitted the dataset, the
// full record set (per-cell truncated) is inlined ahead of the summary;
// otherwise the summary stands alone.
func (pb *PromptBuilder) BuildDataContext(embeddedSample []map[string]interface{}, summary map[string]interface{}) (string, error) {
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize dataset summary: %w", err)
	}

	if embeddedSample == nil {
		return fmt.Sprintf("DATASET SUMMARY:\n%s", string(summaryJSON)), nil
	}

	records, err := json.MarshalIndent(truncateRecords(embeddedSample), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize embedded records: %w", err)
	}
	return fmt.Sprintf("FULL DATASET (cell values truncated to %d characters):\n%s\n\nDATASET SUMMARY:\n%s",
		maxCellChars, string(records), string(summaryJSON)), nil
}

// truncateRecords caps every string cell at maxCellChars runes. Cutting
// on a rune boundary keeps truncated cells valid UTF-8. Records are
// copied; the persisted sample is never mutated.
func truncateRecords(records []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, len(records))
	for i, record := range records {
		copied := make(map[string]interface{}, len(record))
		for k, v := range record {
			copied[k] = v
			if s, ok := v.(string); ok && len(s) > maxCellChars {
				if r := []rune(s); len(r) > maxCellChars {
					copied[k] = string(r[:maxCellChars]) + "..."
				}
			}
		}
		out[i] = copied
	}
	return out
}
