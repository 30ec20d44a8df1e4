package handler

import (
	"net/http"

	"rentsync/internal/model"
	"rentsync/internal/quote"
)

// quoteRequest prices either an explicit item list or a catalog project with
// quantity overrides. The duration comes from rental_days or from the dates.
type quoteRequest struct {
	Items       []model.RentalItem `json:"items,omitempty"`
	ProjectSlug string             `json:"project_slug,omitempty"`
	Quantities  map[string]int     `json:"quantities,omitempty"`
	StartDate   string             `json:"start_date,omitempty"`
	EndDate     string             `json:"end_date,omitempty"`
	Preset      string             `json:"preset,omitempty"`
	RentalDays  *int               `json:"rental_days,omitempty"`
}

type quoteResponse struct {
	Quote  quote.Quote         `json:"quote"`
	Period *model.RentalPeriod `json:"period,omitempty"`
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	items := req.Items
	if req.ProjectSlug != "" {
		var err error
		if items, err = h.selection(r.Context(), req.ProjectSlug, req.Quantities); err != nil {
			h.writeError(w, err)
			return
		}
	} else {
		for _, item := range items {
			if err := item.Validate(); err != nil {
				h.writeError(w, err)
				return
			}
		}
	}

	if req.RentalDays != nil {
		if *req.RentalDays < 0 {
			h.writeError(w, model.NewValidationError("rental_days", "must not be negative"))
			return
		}
		h.writeJSON(w, http.StatusOK, quoteResponse{Quote: quote.Compute(items, *req.RentalDays)})
		return
	}

	period, err := model.ParsePeriod(req.StartDate, req.EndDate, req.Preset, h.loc)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quoteResponse{Quote: quote.ForPeriod(items, period), Period: &period})
}
