// Package index maintains the checksummed catalog of governance files
// (constitution, rule documents, on-demand docs) that the rest of the
// engine consults to detect stale policy.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/internal/fsio"
)

// Version is the index file format version.
const Version = 1

// checksumLen is the number of hex characters kept from the full digest.
const checksumLen = 16

// ErrRequiredMissing indicates a declared-required governance file is
// absent, which makes the build fail.
var ErrRequiredMissing = errors.New("required governance file missing")

// Category classifies when an indexed file is loaded by consumers.
type Category string

const (
	// CategoryAutoLoaded files apply to every run.
	CategoryAutoLoaded Category = "auto_loaded"
	// CategoryPathSpecific files apply only to matching paths.
	CategoryPathSpecific Category = "path_specific"
	// CategoryOnDemand files are pulled in explicitly.
	CategoryOnDemand Category = "on_demand"
)

// Entry is one indexed governance file.
type Entry struct {
	// Path is relative to the project root.
	Path string `json:"path"`
	// Category classifies how the file is loaded.
	Category Category `json:"category"`
	// Required marks files whose absence fails the build.
	Required bool `json:"required,omitempty"`
	// Checksum is the truncated sha256 of the file content.
	Checksum string `json:"checksum"`
	// SizeLimit is the declared byte cap for this entry's category, zero
	// for unlimited.
	SizeLimit int64 `json:"size_limit,omitempty"`
}

// Validation summarizes an index for quick inspection.
type Validation struct {
	TotalFiles    int                     `json:"total_files"`
	RequiredFiles int                     `json:"required_files"`
	SizeLimits    config.SizeLimitsConfig `json:"size_limits"`
}

// Index is the persisted catalog.
type Index struct {
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	AutoLoaded   []Entry    `json:"auto_loaded"`
	PathSpecific []Entry    `json:"path_specific"`
	OnDemand     []Entry    `json:"on_demand"`
	Validation   Validation `json:"validation"`
}

// Entries returns every entry across categories, auto-loaded first.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, 0, len(idx.AutoLoaded)+len(idx.PathSpecific)+len(idx.OnDemand))
	out = append(out, idx.AutoLoaded...)
	out = append(out, idx.PathSpecific...)
	out = append(out, idx.OnDemand...)
	return out
}

// StalenessReason says why an entry no longer matches the live tree.
type StalenessReason string

const (
	// ReasonChecksumMismatch means the file content changed.
	ReasonChecksumMismatch StalenessReason = "checksum_mismatch"
	// ReasonMissing means the file disappeared.
	ReasonMissing StalenessReason = "missing"
)

// Staleness is one detected drift between the index and the live tree.
type Staleness struct {
	Path   string          `json:"path"`
	Reason StalenessReason `json:"reason"`
}

// Cache builds, persists and verifies the governance index for one
// project.
type Cache struct {
	cfg *config.Config
}

// NewCache returns a Cache for the given configuration.
func NewCache(cfg *config.Config) *Cache {
	return &Cache{cfg: cfg}
}

// Checksum returns the truncated hex sha256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:checksumLen]
}

// Build scans the governance locations and produces a fresh index. It
// returns non-fatal warnings (such as files over their category size
// limit) alongside the index. A declared-required file that does not
// exist fails the build with ErrRequiredMissing.
func (c *Cache) Build(ctx context.Context) (*Index, []string, error) {
	root := c.cfg.Root()
	limits := c.cfg.Index.SizeLimits

	idx := &Index{
		Version:   Version,
		CreatedAt: time.Now().UTC(),
	}
	var warnings []string

	add := func(absPath string, category Category, limit int64) error {
		data, err := c.readBounded(ctx, absPath)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, absPath)
		if err != nil {
			rel = absPath
		}
		if limit > 0 && int64(len(data)) > limit {
			warnings = append(warnings, fmt.Sprintf("%s exceeds %s size limit (%d > %d bytes)", rel, category, len(data), limit))
		}
		entry := Entry{
			Path:      rel,
			Category:  category,
			Checksum:  Checksum(data),
			SizeLimit: limit,
		}
		switch category {
		case CategoryAutoLoaded:
			idx.AutoLoaded = append(idx.AutoLoaded, entry)
		case CategoryPathSpecific:
			idx.PathSpecific = append(idx.PathSpecific, entry)
		case CategoryOnDemand:
			idx.OnDemand = append(idx.OnDemand, entry)
		}
		return nil
	}

	// Constitution at the project root.
	constitution := c.cfg.ConstitutionPath()
	if fileExists(constitution) {
		if err := add(constitution, CategoryAutoLoaded, limits.AutoLoaded); err != nil {
			return nil, nil, err
		}
	}

	// Always-loaded rules: top-level markdown in the rules directory.
	rulesDir := c.cfg.RulesDirPath()
	for _, p := range listMarkdown(rulesDir) {
		if err := add(p, CategoryAutoLoaded, limits.AutoLoaded); err != nil {
			return nil, nil, err
		}
	}

	// Path-specific rules live one level down, under rules/domain.
	for _, p := range listMarkdown(filepath.Join(rulesDir, "domain")) {
		if err := add(p, CategoryPathSpecific, limits.PathSpecific); err != nil {
			return nil, nil, err
		}
	}

	// On-demand docs, recursively.
	for _, p := range walkMarkdown(c.cfg.DocsDirPath()) {
		if err := add(p, CategoryOnDemand, limits.OnDemand); err != nil {
			return nil, nil, err
		}
	}

	// Required files must be present; index any that the scan above did
	// not already cover.
	indexed := make(map[string]int)
	for i, e := range idx.AutoLoaded {
		indexed[e.Path] = i
	}
	requiredCount := 0
	for _, req := range c.cfg.RequiredPaths() {
		rel, err := filepath.Rel(root, req)
		if err != nil {
			rel = req
		}
		if !fileExists(req) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRequiredMissing, rel)
		}
		requiredCount++
		if i, ok := indexed[rel]; ok {
			idx.AutoLoaded[i].Required = true
			continue
		}
		if err := add(req, CategoryAutoLoaded, limits.AutoLoaded); err != nil {
			return nil, nil, err
		}
		idx.AutoLoaded[len(idx.AutoLoaded)-1].Required = true
	}

	sortEntries(idx.AutoLoaded)
	sortEntries(idx.PathSpecific)
	sortEntries(idx.OnDemand)

	idx.Validation = Validation{
		TotalFiles:    len(idx.AutoLoaded) + len(idx.PathSpecific) + len(idx.OnDemand),
		RequiredFiles: requiredCount,
		SizeLimits:    limits,
	}

	return idx, warnings, nil
}

// Validate recomputes the digest of every indexed file and reports the
// entries that drifted. An empty result means the index is current.
func (c *Cache) Validate(ctx context.Context, idx *Index) ([]Staleness, error) {
	root := c.cfg.Root()
	var stale []Staleness

	for _, entry := range idx.Entries() {
		abs := filepath.Join(root, entry.Path)
		if !fileExists(abs) {
			stale = append(stale, Staleness{Path: entry.Path, Reason: ReasonMissing})
			continue
		}
		data, err := c.readBounded(ctx, abs)
		if err != nil {
			return nil, err
		}
		if Checksum(data) != entry.Checksum {
			stale = append(stale, Staleness{Path: entry.Path, Reason: ReasonChecksumMismatch})
		}
	}

	return stale, nil
}

// Save persists the index atomically at the configured location.
func (c *Cache) Save(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := fsio.WriteFileAtomic(c.cfg.IndexPath(), data, 0644); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Load reads the persisted index. A missing file returns an error
// wrapping os.ErrNotExist; callers that can run without an index check
// for that.
func (c *Cache) Load() (*Index, error) {
	data, err := os.ReadFile(c.cfg.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return idx, nil
}

// Rebuild is Build followed by Save.
func (c *Cache) Rebuild(ctx context.Context) (*Index, []string, error) {
	idx, warnings, err := c.Build(ctx)
	if err != nil {
		return nil, warnings, err
	}
	if err := c.Save(idx); err != nil {
		return nil, warnings, err
	}
	return idx, warnings, nil
}

// readBounded reads one file under the configured file I/O deadline.
func (c *Cache) readBounded(ctx context.Context, path string) ([]byte, error) {
	timeout := c.cfg.Timeouts.FileIO
	if timeout <= 0 {
		return fsio.ReadFile(ctx, path)
	}
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fsio.ReadFile(readCtx, path)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// listMarkdown returns the markdown files directly inside dir, sorted.
func listMarkdown(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out
}

// walkMarkdown returns every markdown file under dir, sorted.
func walkMarkdown(dir string) []string {
	var out []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".md") {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out
}
