package kardex

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"toolrental/internal/apperror"
	"toolrental/internal/httpapi"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the kardex endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/movements", func(r chi.Router) {
		r.Post("/", h.HandleRecord)
		r.Get("/", h.HandleList)
		r.Get("/range", h.HandleDateRange)
		r.Get("/{id}", h.HandleGet)
		r.Get("/units/{id}", h.HandleByToolUnit)
		r.Get("/units/{id}/latest", h.HandleLatestForToolUnit)
		r.Get("/groups/{id}", h.HandleByToolGroup)
		r.Get("/customers/{id}", h.HandleByCustomer)
		r.Get("/types/{type}", h.HandleByType)
		r.Get("/types/{type}/count", h.HandleCountByType)
	})
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MovementType string     `json:"movement_type"`
		ToolUnitID   int64      `json:"tool_unit_id"`
		ToolGroupID  *int64     `json:"tool_group_id"`
		CustomerID   *int64     `json:"customer_id"`
		UserID       *int64     `json:"user_id"`
		MovementDate *time.Time `json:"movement_date"`
		Details      string     `json:"details"`
	}
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	t, err := ParseMovementType(req.MovementType)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	m, err := h.service.RecordMovement(r.Context(), RecordRequest{
		MovementType: t,
		ToolUnitID:   req.ToolUnitID,
		ToolGroupID:  req.ToolGroupID,
		CustomerID:   req.CustomerID,
		UserID:       req.UserID,
		MovementDate: req.MovementDate,
		Details:      req.Details,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.ListMovements(r.Context(), Filter{})
	h.writeList(w, r, movements, err)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	m, err := h.service.GetMovement(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) HandleByToolUnit(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	movements, err := h.service.ByToolUnit(r.Context(), id)
	h.writeList(w, r, movements, err)
}

func (h *Handler) HandleLatestForToolUnit(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	m, err := h.service.LatestForToolUnit(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) HandleByToolGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	movements, err := h.service.ByToolGroup(r.Context(), id)
	h.writeList(w, r, movements, err)
}

func (h *Handler) HandleByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	movements, err := h.service.ByCustomer(r.Context(), id)
	h.writeList(w, r, movements, err)
}

func (h *Handler) HandleByType(w http.ResponseWriter, r *http.Request) {
	t, err := ParseMovementType(chi.URLParam(r, "type"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	movements, err := h.service.ByMovementType(r.Context(), t)
	h.writeList(w, r, movements, err)
}

func (h *Handler) HandleCountByType(w http.ResponseWriter, r *http.Request) {
	t, err := ParseMovementType(chi.URLParam(r, "type"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	count, err := h.service.CountByMovementType(r.Context(), t)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"movement_type": t, "count": count})
}

// HandleDateRange serves ?from=YYYY-MM-DD&to=YYYY-MM-DD, optionally narrowed by unit or group.
func (h *Handler) HandleDateRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseDate(q.Get("from"), "from")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	to, err := parseDate(q.Get("to"), "to")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	var movements []*Movement
	switch {
	case q.Get("unit") != "":
		unitID, perr := parseID(q.Get("unit"), "unit")
		if perr != nil {
			httpapi.WriteError(w, r, perr)
			return
		}
		movements, err = h.service.ByToolUnitAndDateRange(r.Context(), unitID, from, to)
	case q.Get("group") != "":
		groupID, perr := parseID(q.Get("group"), "group")
		if perr != nil {
			httpapi.WriteError(w, r, perr)
			return
		}
		movements, err = h.service.ByToolGroupAndDateRange(r.Context(), groupID, from, to)
	default:
		movements, err = h.service.ByDateRange(r.Context(), from, to)
	}
	h.writeList(w, r, movements, err)
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, movements []*Movement, err error) {
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, movements)
}

func parseDate(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: %s", apperror.ErrMissingField, name)
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", apperror.ErrInvalidRequest, name)
	}
	return t, nil
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", apperror.ErrInvalidRequest, name, raw)
	}
	return id, nil
}
