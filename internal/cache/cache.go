// Package cache persists findings between scans. An entry is valid while
// the file content and the rule set fingerprint are unchanged.
package cache

import (
	"crypto/md5"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gnolang/patlint/internal/rule"
	"github.com/gnolang/patlint/internal/types"
)

const (
	cacheFileName = "patlint_cache.gob"
	DefaultMaxAge = 7 * 24 * time.Hour
)

type Entry struct {
	Hash         string
	Fingerprint  string
	Findings     []types.Finding
	CreatedAt    time.Time
	LastAccessed time.Time
}

type Cache struct {
	CacheDir    string
	fingerprint string
	maxAge      time.Duration

	mutex   sync.Mutex
	entries map[string]Entry
	dirty   bool
}

// New opens the cache in cacheDir, creating the directory when needed.
// Entries recorded under another fingerprint are treated as missing.
func New(cacheDir, fingerprint string) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		CacheDir:    cacheDir,
		fingerprint: fingerprint,
		maxAge:      DefaultMaxAge,
		entries:     make(map[string]Entry),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	return c, nil
}

func (c *Cache) path() string {
	return filepath.Join(c.CacheDir, cacheFileName)
}

func (c *Cache) load() error {
	file, err := os.Open(c.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&c.entries); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	return nil
}

// Flush writes the cache to disk if it changed.
func (c *Cache) Flush() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.dirty {
		return nil
	}
	file, err := os.Create(c.path())
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c.entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	c.dirty = false
	return nil
}

// Get returns the findings cached for path when content is unchanged. A
// nil cache holds nothing.
func (c *Cache) Get(path string, content []byte) ([]types.Finding, bool) {
	if c == nil {
		return nil, false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[path]
	if !exists {
		return nil, false
	}
	if c.isEntryInvalid(entry, content) {
		delete(c.entries, path)
		c.dirty = true
		return nil, false
	}

	entry.LastAccessed = time.Now()
	c.entries[path] = entry
	return entry.Findings, true
}

// Set records the findings of path for content.
func (c *Cache) Set(path string, content []byte, findings []types.Finding) {
	if c == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.entries[path] = Entry{
		Hash:         hash(content),
		Fingerprint:  c.fingerprint,
		Findings:     findings,
		CreatedAt:    now,
		LastAccessed: now,
	}
	c.dirty = true
}

func (c *Cache) isEntryInvalid(entry Entry, content []byte) bool {
	if time.Since(entry.CreatedAt) > c.maxAge {
		return true
	}
	return entry.Fingerprint != c.fingerprint || entry.Hash != hash(content)
}

func (c *Cache) SetMaxAge(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = duration
}

func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]Entry)
	c.dirty = true
}

func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}

func hash(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}

// Fingerprint identifies a rule set together with the options that change
// what it reports.
func Fingerprint(rules []*rule.Rule, options string) string {
	sorted := append([]*rule.Rule(nil), rules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := md5.New()
	io.WriteString(h, options)
	for _, r := range sorted {
		fmt.Fprintf(h, "\x00%s\x00%s\x00%s", r.ID, r.Severity, r.Message)
		for _, lang := range r.Languages {
			x, _ := r.Expr(lang)
			fmt.Fprintf(h, "\x00%s=%s", lang, describe(x))
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// describe renders x including its constraints, which String leaves out.
func describe(x *rule.Expr) string {
	s := x.String()
	for _, c := range x.Constraints {
		s += " where " + c.String()
	}
	for _, child := range x.Children {
		if len(child.Constraints) > 0 {
			s += " {" + describe(child) + "}"
		}
	}
	return s
}
