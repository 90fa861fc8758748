// Package history is a local, append-only record of past pipeline
// invocations, repurposing the teacher's BoltDB storage layer as a
// single bucket keyed by run-start timestamp. It exists only for human
// diagnosis through the "nodeflow history" CLI command; NodeGraph
// construction never reads it, and freshness is always recomputed from
// the filesystem.
package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRuns = []byte("runs")

// NodeSummary records the outcome of a single node's execution within a run.
type NodeSummary struct {
	NodeID    int64     `json:"node_id"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	ExitCode  int       `json:"exit_code,omitempty"`
	Signal    string    `json:"signal,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Run is one pipeline invocation, keyed by its RFC3339 start timestamp.
type Run struct {
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Nodes     []NodeSummary `json:"nodes"`
}

// Key returns the bucket key this run is stored under.
func (r *Run) Key() string {
	return r.StartedAt.UTC().Format(time.RFC3339Nano)
}

// Store is a BoltDB-backed append-only history of pipeline runs.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a history store under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "history.db")

	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends a completed run to the store. Re-recording a run with
// the same StartedAt overwrites the previous record.
func (s *Store) RecordRun(run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("history: marshal run: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(run.Key()), data)
	})
}

// ListRuns returns every recorded run, ordered oldest-first.
func (s *Store) ListRuns() ([]*Run, error) {
	var runs []*Run
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		return b.ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("history: unmarshal run %s: %w", k, err)
			}
			runs = append(runs, &run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs, nil
}

// GetRun fetches one recorded run by its start timestamp.
func (s *Store) GetRun(startedAt time.Time) (*Run, error) {
	key := []byte(startedAt.UTC().Format(time.RFC3339Nano))
	var run Run
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get(key)
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("history: no run recorded at %s", startedAt.UTC().Format(time.RFC3339Nano))
	}
	return &run, nil
}
