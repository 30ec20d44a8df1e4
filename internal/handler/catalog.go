package handler

import (
	"context"
	"net/http"

	"rentsync/internal/catalog"
	"rentsync/internal/model"
)

type projectsResponse struct {
	Projects []catalog.Project `json:"projects"`
}

// projectResponse carries the project plus the equipment and add-on
// groupings the storefront renders.
type projectResponse struct {
	Project   *catalog.Project          `json:"project"`
	Equipment []model.EquipmentCategory `json:"equipment"`
	AddOns    []model.AddOnCategory     `json:"addons"`
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		h.writeError(w, model.NewNotFoundError("catalog"))
		return
	}
	projects, err := h.catalog.ListProjects(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if projects == nil {
		projects = []catalog.Project{}
	}
	h.writeJSON(w, http.StatusOK, projectsResponse{Projects: projects})
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.project(r.Context(), r.PathValue("slug"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	equipment, addons := project.Categories()
	if equipment == nil {
		equipment = []model.EquipmentCategory{}
	}
	if addons == nil {
		addons = []model.AddOnCategory{}
	}
	h.writeJSON(w, http.StatusOK, projectResponse{Project: project, Equipment: equipment, AddOns: addons})
}

func (h *Handler) project(ctx context.Context, slug string) (*catalog.Project, error) {
	if h.catalog == nil {
		return nil, model.NewNotFoundError("catalog")
	}
	if slug == "" {
		return nil, model.NewValidationError("project", "slug is required")
	}
	return h.catalog.GetProject(ctx, slug)
}

// selection builds the item list for a project with quantity overrides keyed
// by item id. Items not named keep their suggested quantity; naming an item
// the project does not contain is an error.
func (h *Handler) selection(ctx context.Context, slug string, quantities map[string]int) ([]model.RentalItem, error) {
	project, err := h.project(ctx, slug)
	if err != nil {
		return nil, err
	}
	items := project.Items()

	seen := make(map[string]bool, len(quantities))
	for i := range items {
		if qty, ok := quantities[items[i].ID]; ok {
			items[i].Quantity = qty
			seen[items[i].ID] = true
		}
	}
	for id := range quantities {
		if !seen[id] {
			return nil, model.NewValidationError("quantities", "item "+id+" is not part of project "+slug)
		}
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}
	return items, nil
}
