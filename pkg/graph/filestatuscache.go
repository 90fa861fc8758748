package graph

import (
	"os"
	"time"
)

// FileStatusCache memoizes exists/mtime stat results for the lifetime of
// one state refresh, so that a NodeGraph recomputation touches each path
// on disk at most once (spec §4.4).
type FileStatusCache struct {
	entries map[string]statEntry
}

type statEntry struct {
	exists bool
	mtime  time.Time
}

func NewFileStatusCache() *FileStatusCache {
	return &FileStatusCache{entries: make(map[string]statEntry)}
}

func (c *FileStatusCache) stat(path string) statEntry {
	if e, ok := c.entries[path]; ok {
		return e
	}
	info, err := os.Stat(path)
	e := statEntry{}
	if err == nil {
		e.exists = true
		e.mtime = info.ModTime()
	}
	c.entries[path] = e
	return e
}

func (c *FileStatusCache) Exists(path string) bool {
	return c.stat(path).exists
}

func (c *FileStatusCache) Mtime(path string) time.Time {
	return c.stat(path).mtime
}
