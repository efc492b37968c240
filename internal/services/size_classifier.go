package services

import (
	"encoding/json"
	"os"
	"strconv"
)

// EmbedDecision is computed once at ingestion and persisted; it is never
// recomputed per-request, so prompt construction stays consistent for the
// dataset's whole lifetime.
type EmbedDecision struct {
	Embed          bool
	SerializedSize int
	// Sample holds the full cleaned record set when Embed is true, nil otherwise.
	Sample []map[string]interface{}
}

// SizeClassifier decides whether a cleaned dataset is small enough to be
// embedded whole in prompts and storage. Both limits must hold.
type SizeClassifier struct {
	maxCells int
	maxBytes int
}

const (
	defaultMaxEmbedCells = 2000
	defaultMaxEmbedBytes = 102400
)

func NewSizeClassifier(maxCells, maxBytes int) *SizeClassifier {
	if maxCells <= 0 {
		maxCells = defaultMaxEmbedCells
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxEmbedBytes
	}
	return &SizeClassifier{maxCells: maxCells, maxBytes: maxBytes}
}

func NewSizeClassifierFromEnv() *SizeClassifier {
	return NewSizeClassifier(
		envInt("EMBED_MAX_CELLS", defaultMaxEmbedCells),
		envInt("EMBED_MAX_BYTES", defaultMaxEmbedBytes),
	)
}

// Classify applies the embed rule: rows*columns under the cell limit and
// the JSON-serialized records under the byte limit.
func (sc *SizeClassifier) Classify(ds *NormalizedDataset) (*EmbedDecision, error) {
	serialized, err := json.Marshal(ds.Records)
	if err != nil {
		return nil, err
	}

	decision := &EmbedDecision{SerializedSize: len(serialized)}
	cells := ds.RowCount * ds.ColumnCount
	if cells < sc.maxCells && len(serialized) < sc.maxBytes {
		decision.Embed = true
		decision.Sample = ds.Records
	}
	return decision, nil
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
