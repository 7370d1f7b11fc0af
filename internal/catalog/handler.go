// internal/catalog/handler.go
package catalog

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"toolrental/internal/httpapi"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/tariffs", func(r chi.Router) {
		r.Post("/", h.HandleCreateTariff)
		r.Get("/{id}", h.HandleGetTariff)
		r.Put("/{id}", h.HandleUpdateTariff)
	})
	r.Route("/groups", func(r chi.Router) {
		r.Post("/", h.HandleCreateToolGroup)
		r.Get("/", h.HandleListToolGroups)
		r.Get("/available", h.HandleListAvailableToolGroups)
		r.Get("/{id}", h.HandleGetToolGroup)
		r.Put("/{id}/replacement-value", h.HandleUpdateReplacementValue)
		r.Get("/{id}/stock", h.HandleAvailableStock)
		r.Get("/{id}/available-unit", h.HandleGetAvailableUnit)
	})
	r.Route("/units", func(r chi.Router) {
		r.Get("/", h.HandleListUnits)
		r.Get("/{id}", h.HandleGetUnit)
		r.Patch("/{id}/status", h.HandleSetUnitStatus)
		r.Post("/{id}/retire", h.HandleRetireUnit)
		r.Post("/{id}/repair", h.HandleSendToRepair)
		r.Post("/{id}/repair-resolution", h.HandleResolveRepair)
	})
}

type tariffRequest struct {
	DailyRentalRate int64 `json:"daily_rental_rate" validate:"gt=0"`
	DailyFineRate   int64 `json:"daily_fine_rate" validate:"gte=0"`
}

func (h *Handler) HandleCreateTariff(w http.ResponseWriter, r *http.Request) {
	var req tariffRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	tariff, err := h.service.CreateTariff(r.Context(), req.DailyRentalRate, req.DailyFineRate)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, tariff)
}

func (h *Handler) HandleGetTariff(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	tariff, err := h.service.GetTariff(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, tariff)
}

func (h *Handler) HandleUpdateTariff(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req tariffRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	tariff, err := h.service.UpdateTariff(r.Context(), id, req.DailyRentalRate, req.DailyFineRate)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, tariff)
}

func (h *Handler) HandleCreateToolGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateToolGroupRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	group, err := h.service.CreateToolGroup(r.Context(), req)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, group)
}

func (h *Handler) HandleListToolGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListToolGroups(r.Context())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, groups)
}

func (h *Handler) HandleListAvailableToolGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListAvailableToolGroups(r.Context())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, groups)
}

func (h *Handler) HandleUpdateReplacementValue(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req struct {
		ReplacementValue int64 `json:"replacement_value" validate:"gte=0"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	group, err := h.service.UpdateReplacementValue(r.Context(), id, req.ReplacementValue)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, group)
}

func (h *Handler) HandleAvailableStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	stock, err := h.service.AvailableStock(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, stock)
}

func (h *Handler) HandleGetToolGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	group, err := h.service.GetToolGroup(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, group)
}

func (h *Handler) HandleGetAvailableUnit(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	unit, err := h.service.GetAvailableUnit(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) HandleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context())
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, units)
}

func (h *Handler) HandleGetUnit(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	unit, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) HandleSetUnitStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status" validate:"required"`
		Actor  string `json:"actor"`
		LoanID int64  `json:"loan_id" validate:"required,gt=0"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	status, err := ParseToolStatus(req.Status)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	unit, err := h.service.SetUnitStatus(r.Context(), id, UnitStatusChange{Status: status, Actor: req.Actor, LoanID: req.LoanID})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) HandleRetireUnit(w http.ResponseWriter, r *http.Request) {
	h.handleUnitAction(w, r, h.service.RetireUnit)
}

func (h *Handler) HandleSendToRepair(w http.ResponseWriter, r *http.Request) {
	h.handleUnitAction(w, r, h.service.SendToRepair)
}

func (h *Handler) handleUnitAction(w http.ResponseWriter, r *http.Request, action func(context.Context, int64, UnitActionRequest) (*ToolUnit, error)) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req UnitActionRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	unit, err := action(r.Context(), id, req)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, unit)
}

func (h *Handler) HandleResolveRepair(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req struct {
		Retire bool   `json:"retire"`
		UserID *int64 `json:"user_id"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	unit, err := h.service.ResolveRepair(r.Context(), id, req.Retire, req.UserID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, unit)
}
