package compare

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lazypower/palace/internal/schedule"
)

const (
	// SchemaVersion is bumped whenever the artifact layout changes.
	SchemaVersion = 1

	// ArtifactName is the file WriteArtifact writes into its directory.
	ArtifactName = "spaced-repetition-results.json"
)

// Result is the aggregated outcome of a batch.
type Result struct {
	SchemaVersion int                            `json:"schema_version"`
	ID            string                         `json:"id"`
	Timestamp     time.Time                      `json:"timestamp"`
	Hypothesis    string                         `json:"hypothesis"`
	Config        Config                         `json:"config"`
	Trials        TrialSummary                   `json:"trials"`
	Failures      []Failure                      `json:"failures,omitempty"`
	Checkpoints   []CheckpointResult             `json:"checkpoints"`
	TotalReviews  map[schedule.Algorithm]float64 `json:"total_reviews"`
	Final         FinalStats                     `json:"final"`
	Decision      Decision                       `json:"decision"`
	Elapsed       time.Duration                  `json:"elapsed_ns"`
}

// TrialSummary counts what happened to each requested trial.
type TrialSummary struct {
	Requested int  `json:"requested"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Truncated bool `json:"truncated"`
}

// Failure is the serializable form of a TrialError.
type Failure struct {
	Trial      int                `json:"trial"`
	Algorithm  schedule.Algorithm `json:"algorithm,omitempty"`
	Day        int                `json:"day,omitempty"`
	Checkpoint int                `json:"checkpoint,omitempty"`
	Error      string             `json:"error"`
}

func newFailure(err error) Failure {
	var te *TrialError
	if errors.As(err, &te) {
		return Failure{
			Trial:      te.Trial,
			Algorithm:  te.Algorithm,
			Day:        te.Day,
			Checkpoint: te.Checkpoint,
			Error:      te.Err.Error(),
		}
	}
	return Failure{Trial: -1, Error: err.Error()}
}

// CheckpointResult holds per-algorithm averages for one checkpoint day.
type CheckpointResult struct {
	Day        int                                   `json:"day"`
	Algorithms map[schedule.Algorithm]AlgorithmStats `json:"algorithms"`
}

// AlgorithmStats are trial-averaged checkpoint statistics, rounded for
// reporting: retention rate in percent to 1 place, confidence to 3, reviews
// to 1.
type AlgorithmStats struct {
	RetentionRate  float64 `json:"retention_rate"`
	MeanConfidence float64 `json:"mean_confidence"`
	MeanReviews    float64 `json:"mean_reviews"`
	SampleSize     int     `json:"sample_size"`
}

// FinalStats describe the spread of retention at the last checkpoint.
type FinalStats struct {
	Day          int                                `json:"day"`
	Descriptive  map[schedule.Algorithm]Descriptive `json:"descriptive"`
	Significance *Significance                      `json:"significance,omitempty"`
}

// Checkpoint returns the stats for day, or false if day was not a checkpoint.
func (r *Result) Checkpoint(day int) (CheckpointResult, bool) {
	for _, cp := range r.Checkpoints {
		if cp.Day == day {
			return cp, true
		}
	}
	return CheckpointResult{}, false
}

// Significant reports whether the final checkpoint difference passed the
// significance threshold. It is false when significance was not computed.
func (r *Result) Significant() bool {
	return r.Final.Significance != nil && r.Final.Significance.Significant
}

// WriteArtifact writes r as indented JSON to dir/ArtifactName, replacing any
// previous artifact, and returns the path written.
func WriteArtifact(dir string, r *Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	path := filepath.Join(dir, ArtifactName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// ReadArtifact loads a result written by WriteArtifact.
func ReadArtifact(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if r.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported artifact schema version %d (expected %d)", r.SchemaVersion, SchemaVersion)
	}
	return &r, nil
}
