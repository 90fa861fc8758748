// Package janitor sweeps per-node temp directories that Node.Run and the
// worker daemon deliberately retain on failure, for diagnosis, rather than
// remove (spec §6: "on failure it is retained for diagnosis"). Those
// directories accumulate indefinitely otherwise; Sweep is the actual
// cleanup mechanism for ones old enough that their diagnostic value has
// passed. Adapted from the teacher's reconciler ticker+mutex shape,
// repurposed from an automatic background loop into a CLI-invoked,
// one-shot sweep.
package janitor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/rs/zerolog"
)

var nodeTempDirPattern = regexp.MustCompile(`^node_\d+_.+$`)

// Janitor sweeps a temp root for orphaned per-node directories.
type Janitor struct {
	tempRoot string
	logger   zerolog.Logger
	mu       sync.Mutex
}

// New builds a Janitor over tempRoot, the same directory Node.Run and the
// worker daemon create node_<id>_<suffix> subdirectories under.
func New(tempRoot string) *Janitor {
	return &Janitor{tempRoot: tempRoot, logger: log.WithComponent("janitor")}
}

// Result summarizes one sweep.
type Result struct {
	Removed []string
	Kept    []string
}

// Sweep removes every node_<id>_<suffix> directory under the temp root whose mtime
// is older than minAge, on the assumption that any run still legitimately
// using it would have touched it more recently. Directories younger than
// minAge are left alone even if orphaned, to avoid racing a run in
// progress.
func (j *Janitor) Sweep(minAge time.Duration) (Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var result Result

	entries, err := os.ReadDir(j.tempRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("janitor: read temp root %s: %w", j.tempRoot, err)
	}

	cutoff := time.Now().Add(-minAge)
	for _, e := range entries {
		if !e.IsDir() || !nodeTempDirPattern.MatchString(e.Name()) {
			continue
		}
		path := filepath.Join(j.tempRoot, e.Name())

		info, err := e.Info()
		if err != nil {
			j.logger.Warn().Err(err).Str("path", path).Msg("failed to stat temp directory")
			continue
		}

		if info.ModTime().After(cutoff) {
			result.Kept = append(result.Kept, path)
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn().Err(err).Str("path", path).Msg("failed to remove orphaned temp directory")
			result.Kept = append(result.Kept, path)
			continue
		}
		j.logger.Info().Str("path", path).Msg("removed orphaned temp directory")
		result.Removed = append(result.Removed, path)
	}

	return result, nil
}
