package catalog

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"rentsync/internal/model"
)

// MemoryRepository serves a catalog held in memory, typically loaded from a
// JSON file in development.
type MemoryRepository struct {
	projects []Project
}

// NewMemoryRepository serves projects as given. Filtering and ordering happen
// at read time.
func NewMemoryRepository(projects []Project) *MemoryRepository {
	return &MemoryRepository{projects: projects}
}

// LoadFile reads a JSON array of projects.
func LoadFile(path string) (*MemoryRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	for _, p := range projects {
		for _, s := range p.Sections {
			for _, it := range s.Items {
				if err := it.Validate(); err != nil {
					return nil, fmt.Errorf("project %s: %w", p.Slug, err)
				}
			}
		}
	}
	return NewMemoryRepository(projects), nil
}

func (r *MemoryRepository) ListProjects(_ context.Context) ([]Project, error) {
	out := []Project{}
	for _, p := range r.projects {
		if !p.Visible {
			continue
		}
		p.Sections = nil
		out = append(out, p)
	}
	sortByPosition(out, func(p Project) (int, string) { return p.Position, p.Name })
	return out, nil
}

func (r *MemoryRepository) GetProject(_ context.Context, slug string) (*Project, error) {
	for _, p := range r.projects {
		if p.Slug != slug || !p.Visible {
			continue
		}
		sections := make([]Section, 0, len(p.Sections))
		for _, s := range p.Sections {
			if !s.Visible {
				continue
			}
			items := make([]Item, 0, len(s.Items))
			for _, it := range s.Items {
				if it.Visible {
					items = append(items, it)
				}
			}
			sortByPosition(items, func(it Item) (int, string) { return it.Position, it.Name })
			s.Items = items
			sections = append(sections, s)
		}
		sortByPosition(sections, func(s Section) (int, string) { return s.Position, s.Name })
		p.Sections = sections
		return &p, nil
	}
	return nil, model.NewNotFoundError("project")
}

// sortByPosition orders by position, then name.
func sortByPosition[T any](s []T, key func(T) (int, string)) {
	slices.SortStableFunc(s, func(a, b T) int {
		pa, na := key(a)
		pb, nb := key(b)
		if c := cmp.Compare(pa, pb); c != 0 {
			return c
		}
		return cmp.Compare(na, nb)
	})
}
