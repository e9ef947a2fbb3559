package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/pkg/models"
)

func writeFeature(t *testing.T, cfg *config.Config, featureID string, files map[string]string) {
	t.Helper()
	dir := cfg.FeatureDir(featureID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestStoreDiscover(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	writeFeature(t, cfg, "user-auth", map[string]string{
		"backend.md":  "## POST /api/login\n",
		"database.md": "### Table: users\n- id: UUID\n",
	})

	refs, err := NewStore(cfg).Discover("user-auth")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	// Priority order, not directory order: schema before logic.
	if len(refs) != 2 {
		t.Fatalf("Discover() returned %d refs, want 2", len(refs))
	}
	if refs[0].Type != models.ArtifactSchema {
		t.Errorf("refs[0].Type = %s, want %s", refs[0].Type, models.ArtifactSchema)
	}
	if refs[1].Type != models.ArtifactLogic {
		t.Errorf("refs[1].Type = %s, want %s", refs[1].Type, models.ArtifactLogic)
	}
	for _, ref := range refs {
		if ref.FeatureID != "user-auth" {
			t.Errorf("ref.FeatureID = %q, want user-auth", ref.FeatureID)
		}
	}
}

func TestStoreDiscoverFullSet(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	files := make(map[string]string)
	for _, at := range models.AllArtifactTypes {
		files[at.FileName()] = "# plan\n"
	}
	writeFeature(t, cfg, "checkout", files)

	refs, err := NewStore(cfg).Discover("checkout")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(refs) != len(models.AllArtifactTypes) {
		t.Fatalf("Discover() returned %d refs, want %d", len(refs), len(models.AllArtifactTypes))
	}
	for i, at := range models.AllArtifactTypes {
		if refs[i].Type != at {
			t.Errorf("refs[%d].Type = %s, want %s", i, refs[i].Type, at)
		}
	}
}

func TestStoreDiscoverEmpty(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	writeFeature(t, cfg, "empty-feature", nil)

	_, err := NewStore(cfg).Discover("empty-feature")
	if !errors.Is(err, ErrNoArtifacts) {
		t.Errorf("Discover() error = %v, want ErrNoArtifacts", err)
	}
}

func TestStoreLoad(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	writeFeature(t, cfg, "user-auth", map[string]string{
		"database.md": "### Table: users\n\n- user_id: UUID\n- email: VARCHAR(255)\n",
	})

	store := NewStore(cfg)
	refs, err := store.Discover("user-auth")
	if err != nil {
		t.Fatal(err)
	}

	art, err := store.Load(context.Background(), refs[0])
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if art.Type != models.ArtifactSchema {
		t.Errorf("art.Type = %s, want %s", art.Type, models.ArtifactSchema)
	}
	if art.FactsIncomplete {
		t.Error("FactsIncomplete = true for a structured document")
	}
	if len(art.Facts) != 3 {
		t.Errorf("len(Facts) = %d, want 3", len(art.Facts))
	}
}

func TestStoreLoadUnstructured(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	writeFeature(t, cfg, "user-auth", map[string]string{
		"frontend.md": "Some free-form notes without any extractable plan structure.\n",
	})

	store := NewStore(cfg)
	refs, err := store.Discover("user-auth")
	if err != nil {
		t.Fatal(err)
	}

	art, err := store.Load(context.Background(), refs[0])
	if err != nil {
		t.Fatalf("Load() error = %v, want recoverable facts-incomplete load", err)
	}
	if !art.FactsIncomplete {
		t.Error("FactsIncomplete = false, want true")
	}
	if len(art.Facts) != 0 {
		t.Errorf("len(Facts) = %d, want 0", len(art.Facts))
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	ref := models.ArtifactRef{
		FeatureID: "ghost",
		Type:      models.ArtifactSchema,
		Path:      filepath.Join(cfg.FeatureDir("ghost"), "database.md"),
	}

	_, err := NewStore(cfg).Load(context.Background(), ref)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestStoreLoadAll(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	writeFeature(t, cfg, "user-auth", map[string]string{
		"database.md":     "### Table: users\n- id: UUID\n",
		"api_contract.md": "## GET /api/users\n",
	})

	store := NewStore(cfg)
	refs, err := store.Discover("user-auth")
	if err != nil {
		t.Fatal(err)
	}

	arts, err := store.LoadAll(context.Background(), refs)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("LoadAll() returned %d artifacts, want 2", len(arts))
	}
	if arts[models.ArtifactSchema] == nil || arts[models.ArtifactContract] == nil {
		t.Error("LoadAll() map missing expected types")
	}
}

func TestStoreLoadCancelled(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	writeFeature(t, cfg, "user-auth", map[string]string{
		"database.md": "### Table: users\n",
	})

	store := NewStore(cfg)
	refs, err := store.Discover("user-auth")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Load(ctx, refs[0]); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}
