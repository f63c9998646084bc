package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lazypower/palace/internal/compare"
)

// Run is a persisted comparison result. Result holds the full JSON artifact.
type Run struct {
	ID         int64           `json:"-"`
	RunID      string          `json:"run_id"`
	Hypothesis string          `json:"hypothesis"`
	Verdict    string          `json:"verdict"`
	Seed       uint64          `json:"seed"`
	Iterations int             `json:"iterations"`
	Completed  int             `json:"completed"`
	Failed     int             `json:"failed"`
	Truncated  bool            `json:"truncated"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SaveRun inserts r. A zero CreatedAt is stamped with the current time.
func (db *DB) SaveRun(r *Run) error {
	if r.RunID == "" {
		return fmt.Errorf("save run: run_id is required")
	}
	if !json.Valid(r.Result) {
		return fmt.Errorf("save run %s: result is not valid JSON", r.RunID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	truncated := 0
	if r.Truncated {
		truncated = 1
	}
	res, err := db.Exec(`
		INSERT INTO runs (run_id, hypothesis, verdict, seed, iterations, completed, failed, truncated, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Hypothesis, r.Verdict, strconv.FormatUint(r.Seed, 10),
		r.Iterations, r.Completed, r.Failed, truncated, string(r.Result), r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

// SaveResult persists a comparison result as a run keyed by its id.
func (db *DB) SaveResult(res *compare.Result) (*Run, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	r := &Run{
		RunID:      res.ID,
		Hypothesis: res.Hypothesis,
		Verdict:    string(res.Decision.Verdict),
		Seed:       res.Config.Seed,
		Iterations: res.Config.Iterations,
		Completed:  res.Trials.Completed,
		Failed:     res.Trials.Failed,
		Truncated:  res.Trials.Truncated,
		Result:     payload,
		CreatedAt:  res.Timestamp,
	}
	if err := db.SaveRun(r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRun returns a run by its run_id. Returns nil if it does not exist.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, run_id, hypothesis, verdict, seed, iterations, completed, failed, truncated, result, created_at
		FROM runs WHERE run_id = ?
	`, runID)
	r, err := scanRun(row, true)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs without their result payloads,
// ordered by created_at DESC.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.Query(`
		SELECT id, run_id, hypothesis, verdict, seed, iterations, completed, failed, truncated, '', created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner, withResult bool) (*Run, error) {
	var (
		r         Run
		seed      string
		truncated int
		result    string
		created   int64
	)
	if err := s.Scan(&r.ID, &r.RunID, &r.Hypothesis, &r.Verdict, &seed,
		&r.Iterations, &r.Completed, &r.Failed, &truncated, &result, &created); err != nil {
		return nil, err
	}
	n, err := strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", seed, err)
	}
	r.Seed = n
	r.Truncated = truncated != 0
	if withResult {
		r.Result = json.RawMessage(result)
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	return &r, nil
}
