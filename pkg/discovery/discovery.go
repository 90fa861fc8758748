// Package discovery scans the worker auto-discovery directory (spec §6):
// each *.json file describes one available worker, and Scan claims it
// exclusively by unlinking the file as soon as it parses, before any
// handshake; a file whose handshake later fails is not restored. Adapted from the
// teacher's reconciler ticker+mutex shape, repurposed from periodic
// cluster-state reconciliation to periodic filesystem scanning.
package discovery

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/metrics"
	"github.com/rs/zerolog"
)

// MinInterval is the minimum wall-clock time between discovery cycles
// (spec §4.8: "at most once per 15 s of wall time").
const MinInterval = 15 * time.Second

// WorkerAd is one entry in the auto-discovery directory.
type WorkerAd struct {
	ID     string `json:"id"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Secret string `json:"secret"`
}

// Found is one successfully parsed and claimed advertisement, with its
// shared secret already base64-decoded.
type Found struct {
	Ad     WorkerAd
	Secret []byte
	Path   string
}

// Scanner watches a directory of worker advertisement files.
type Scanner struct {
	dir    string
	logger zerolog.Logger

	mu           sync.Mutex
	lastScan     time.Time
	blacklisted  map[string]struct{}
}

// NewScanner builds a Scanner over dir, creating it if absent.
func NewScanner(dir string) (*Scanner, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("discovery: create directory %s: %w", dir, err)
	}
	return &Scanner{
		dir:         dir,
		logger:      log.WithComponent("discovery"),
		blacklisted: make(map[string]struct{}),
	}, nil
}

// Blacklist records a worker id or advertisement file path for the
// remainder of the session, e.g. after a handshake failure. Scan skips
// only files whose path is blacklisted; an id entry does not stop Scan
// from claiming that worker's file.
func (s *Scanner) Blacklist(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklisted[key] = struct{}{}
}

// ShouldScan reports whether MinInterval has elapsed since the last scan.
func (s *Scanner) ShouldScan(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastScan) >= MinInterval
}

// Scan performs one discovery cycle: it lists *.json files in the
// directory, parses each, skips blacklisted entries, and claims every
// parseable advertisement by unlinking its file. Parse failures are
// blacklisted by path so they are not retried every cycle.
func (s *Scanner) Scan() ([]Found, error) {
	s.mu.Lock()
	s.lastScan = time.Now()
	s.mu.Unlock()

	metrics.DiscoveryCyclesTotal.Inc()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("discovery: read directory %s: %w", s.dir, err)
	}

	var found []Found
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, e.Name())

		s.mu.Lock()
		_, skip := s.blacklisted[path]
		s.mu.Unlock()
		if skip {
			continue
		}

		ad, secret, err := s.parse(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("failed to parse worker advertisement")
			s.Blacklist(path)
			continue
		}

		if err := os.Remove(path); err != nil {
			// Another manager may have claimed it first; skip silently.
			s.logger.Debug().Err(err).Str("path", path).Msg("failed to claim worker advertisement")
			continue
		}

		found = append(found, Found{Ad: ad, Secret: secret, Path: path})
	}

	if len(found) > 0 {
		metrics.DiscoveredWorkersTotal.Add(float64(len(found)))
	}

	return found, nil
}

func (s *Scanner) parse(path string) (WorkerAd, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkerAd{}, nil, fmt.Errorf("read: %w", err)
	}

	var ad WorkerAd
	if err := json.Unmarshal(data, &ad); err != nil {
		return WorkerAd{}, nil, fmt.Errorf("unmarshal: %w", err)
	}

	secret, err := base64.StdEncoding.DecodeString(ad.Secret)
	if err != nil {
		return WorkerAd{}, nil, fmt.Errorf("decode secret: %w", err)
	}

	return ad, secret, nil
}

// Advertise writes a new advertisement file into dir for a listening
// worker to be discovered by a manager, the inverse of Scan's claim.
func Advertise(dir string, ad WorkerAd) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("discovery: create directory %s: %w", dir, err)
	}
	data, err := json.Marshal(ad)
	if err != nil {
		return "", fmt.Errorf("discovery: marshal advertisement: %w", err)
	}
	path := filepath.Join(dir, ad.ID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("discovery: write advertisement: %w", err)
	}
	return path, nil
}
