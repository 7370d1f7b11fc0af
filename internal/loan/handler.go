// internal/loan/handler.go
package loan

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

// Routes mounts the loan endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.HandleRegister)
		r.Get("/active", h.list(h.service.ListActive))
		r.Get("/overdue", h.list(h.service.ListOverdue))
		r.Get("/debts", h.list(h.service.ListWithDebts))
		r.Get("/closed", h.list(h.service.ListClosed))
		r.Get("/customers/{id}", h.HandleByCustomer)
		r.Get("/customers/{id}/summary", h.HandleCustomerSummary)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/history", h.HandleHistory)
		r.Post("/{id}/return", h.HandleReturn)
		r.Post("/{id}/pay", h.HandlePay)
		r.Post("/{id}/damage", h.HandleDamage)
	})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterLoanRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	view, err := h.service.RegisterLoan(r.Context(), req)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	view, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	events, err := h.service.GetHistory(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req ReturnLoanRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	view, err := h.service.ReturnLoan(r.Context(), id, req)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	view, err := h.service.PayDebts(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleDamage(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req ApplyDamageRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	view, err := h.service.ApplyDamage(r.Context(), id, req)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	views, err := h.service.ListByCustomer(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) HandleCustomerSummary(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.PathID(r, "id")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	summary, err := h.service.CustomerSummary(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) list(fn func(ctx context.Context) ([]*LoanView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := fn(r.Context())
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}
		httpapi.WriteJSON(w, http.StatusOK, views)
	}
}
