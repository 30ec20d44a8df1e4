// Package catalog serves the curated project catalog: projects (a kind of
// job, like retiling a bathroom), their sections of required equipment and
// optional add-ons, and the rental items in each section. Only visible
// records are returned, ordered by position.
package catalog

import (
	"context"

	"rentsync/internal/model"
)

// Section kinds.
const (
	KindEquipment = "equipment"
	KindAddOn     = "addon"
)

// Project is one project type with its sections.
type Project struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Visible     bool      `json:"visible"`
	Position    int       `json:"position"`
	Sections    []Section `json:"sections,omitempty"`
}

// Section groups items of one kind within a project.
type Section struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Guidance string `json:"guidance,omitempty"`
	Kind     string `json:"kind"`
	Visible  bool   `json:"visible"`
	Position int    `json:"position"`
	Items    []Item `json:"items"`
}

// Item is a rental item placed in a section. Quantity is the suggested
// starting quantity.
type Item struct {
	model.RentalItem
	Visible  bool `json:"visible"`
	Position int  `json:"position"`
}

// Repository reads the catalog.
type Repository interface {
	// ListProjects returns visible projects without their sections.
	ListProjects(ctx context.Context) ([]Project, error)
	// GetProject returns a visible project with its visible sections and items.
	GetProject(ctx context.Context, slug string) (*Project, error)
}

// Categories splits the project's sections into the equipment and add-on
// groupings the storefront renders and the quote consumes.
func (p *Project) Categories() ([]model.EquipmentCategory, []model.AddOnCategory) {
	var equipment []model.EquipmentCategory
	var addons []model.AddOnCategory
	for _, s := range p.Sections {
		items := make([]model.RentalItem, len(s.Items))
		for i, it := range s.Items {
			items[i] = it.RentalItem
		}
		switch s.Kind {
		case KindAddOn:
			addons = append(addons, model.AddOnCategory{Name: s.Name, Guidance: s.Guidance, Items: items})
		default:
			equipment = append(equipment, model.EquipmentCategory{Name: s.Name, Guidance: s.Guidance, Items: items})
		}
	}
	return equipment, addons
}

// Items returns every item of the project in display order.
func (p *Project) Items() []model.RentalItem {
	var items []model.RentalItem
	for _, s := range p.Sections {
		for _, it := range s.Items {
			items = append(items, it.RentalItem)
		}
	}
	return items
}
