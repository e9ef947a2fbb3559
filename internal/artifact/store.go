package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/internal/fsio"
	"github.com/planvet/planvet/pkg/models"
)

// ErrNoArtifacts indicates a feature has no plan artifacts at all. The
// engine operates on any non-empty subset of types, but an empty set
// means there is nothing to validate.
var ErrNoArtifacts = errors.New("no plan artifacts found")

// Store discovers and loads the plan artifacts for a feature. Each
// artifact type maps to one well-known file name under the feature's
// plan directory.
type Store struct {
	cfg *config.Config

	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewStore creates a store rooted at the configured plans directory.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		cfg:      cfg,
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets a logging function for debug output.
func (s *Store) SetDebugLog(fn func(format string, args ...interface{})) {
	s.debugLog = fn
}

// Discover lists which artifact types have a backing file for the
// feature, in fixed priority order. Absence of any one type is not an
// error; an entirely empty plan directory is ErrNoArtifacts.
func (s *Store) Discover(featureID string) ([]models.ArtifactRef, error) {
	dir := s.cfg.FeatureDir(featureID)
	s.debugLog("[store.Discover] scanning %s", dir)

	var refs []models.ArtifactRef
	for _, t := range models.AllArtifactTypes {
		path := filepath.Join(dir, t.FileName())
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat artifact %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		refs = append(refs, models.ArtifactRef{
			FeatureID: featureID,
			Type:      t,
			Path:      path,
		})
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("%w for feature %q", ErrNoArtifacts, featureID)
	}
	s.debugLog("[store.Discover] found %d artifacts for feature %s", len(refs), featureID)
	return refs, nil
}

// Load reads one artifact within the file IO deadline and runs its
// type's extractor over the content. A document without recognizable
// structure still loads, flagged facts-incomplete, so cross-checks
// against it downgrade errors to warnings instead of failing the run.
func (s *Store) Load(ctx context.Context, ref models.ArtifactRef) (*models.Artifact, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeouts.FileIO)
	defer cancel()

	data, err := fsio.ReadFile(readCtx, ref.Path)
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", ref.Path, err)
	}

	art := &models.Artifact{
		Type:    ref.Type,
		Path:    ref.Path,
		Content: string(data),
	}

	facts, err := ForType(ref.Type).Extract(art.Content)
	if err != nil {
		if !errors.Is(err, ErrNoStructure) {
			return nil, fmt.Errorf("extract facts from %s: %w", ref.Path, err)
		}
		s.debugLog("[store.Load] %s: no structure markers, facts incomplete", ref.Path)
		art.FactsIncomplete = true
		return art, nil
	}

	art.Facts = facts
	s.debugLog("[store.Load] %s: extracted %d facts", ref.Path, len(facts))
	return art, nil
}

// LoadAll loads every referenced artifact, keyed by type. The first
// hard load failure aborts the whole set.
func (s *Store) LoadAll(ctx context.Context, refs []models.ArtifactRef) (map[models.ArtifactType]*models.Artifact, error) {
	arts := make(map[models.ArtifactType]*models.Artifact, len(refs))
	for _, ref := range refs {
		art, err := s.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		arts[ref.Type] = art
	}
	return arts, nil
}
