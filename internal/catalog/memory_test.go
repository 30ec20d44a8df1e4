package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rentsync/internal/model"
)

func loadTestCatalog(t *testing.T) *MemoryRepository {
	t.Helper()
	repo, err := LoadFile(filepath.Join("testdata", "catalog.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return repo
}

func TestMemoryRepository_ListProjects(t *testing.T) {
	projects, err := loadTestCatalog(t).ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}

	var slugs []string
	for _, p := range projects {
		slugs = append(slugs, p.Slug)
		if p.Sections != nil {
			t.Errorf("%s: sections included in listing", p.Slug)
		}
	}
	want := []string{"bathroom-retile", "deck-sanding"}
	if len(slugs) != len(want) {
		t.Fatalf("slugs = %v, want %v", slugs, want)
	}
	for i := range want {
		if slugs[i] != want[i] {
			t.Errorf("slugs = %v, want %v", slugs, want)
		}
	}
}

func TestMemoryRepository_GetProject(t *testing.T) {
	p, err := loadTestCatalog(t).GetProject(context.Background(), "bathroom-retile")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}

	if len(p.Sections) != 2 || p.Sections[0].Name != "Cutting" || p.Sections[1].Name != "Consumables" {
		t.Fatalf("sections = %+v", p.Sections)
	}
	cutting := p.Sections[0].Items
	if len(cutting) != 2 || cutting[0].ID != "saw" || cutting[1].ID != "grinder" {
		t.Errorf("cutting items = %+v", cutting)
	}
	if cutting[0].FirstDayPrice().String() != "60" {
		t.Errorf("saw first day = %s", cutting[0].FirstDayPrice())
	}

	lines := model.SyncLines(p.Items())
	if len(lines) != 2 {
		t.Errorf("sync lines = %+v, want saw and grinder", lines)
	}
}

func TestMemoryRepository_GetProjectDoesNotMutate(t *testing.T) {
	repo := loadTestCatalog(t)
	ctx := context.Background()

	repo.GetProject(ctx, "bathroom-retile")
	p, _ := repo.GetProject(ctx, "bathroom-retile")
	if len(p.Sections) != 2 {
		t.Errorf("second read has %d sections", len(p.Sections))
	}
	if n := len(repo.projects[1].Sections); n != 3 {
		t.Errorf("stored project now has %d sections, want 3", n)
	}
}

func TestMemoryRepository_NotFound(t *testing.T) {
	repo := loadTestCatalog(t)
	for _, slug := range []string{"roof-repair", "nope"} {
		if _, err := repo.GetProject(context.Background(), slug); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", slug, err)
		}
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{not json`), 0o600)
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected parse error")
	}

	negative := filepath.Join(dir, "negative.json")
	os.WriteFile(negative, []byte(`[{"slug":"x","sections":[{"items":[{"id":"a","daily_rate":"1","quantity":-1}]}]}]`), 0o600)
	if _, err := LoadFile(negative); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("err = %v, want validation error", err)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
