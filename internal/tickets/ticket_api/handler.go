// Package ticket_api exposes the ticket service over HTTP. Handlers do
// request decoding and error-to-status mapping only; every policy decision
// lives in the service.
package ticket_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/ScalabilityIssues/ticket-service/internal/apperrors"
	"github.com/ScalabilityIssues/ticket-service/internal/auth"
	"github.com/ScalabilityIssues/ticket-service/internal/logger"
	tickets "github.com/ScalabilityIssues/ticket-service/internal/tickets/service"
	"github.com/ScalabilityIssues/ticket-service/internal/tickets/wire"
)

const qrSize = 256

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

// RegisterRoutes mounts the ticket and flight statistics endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Post("/", h.CreateTicket)
		r.Get("/{id}", h.GetTicket)
		r.Get("/{id}/credential", h.GetTicketCredential)
		r.Patch("/{id}", h.UpdateTicket)
		r.Delete("/{id}", h.DeleteTicket)
		r.Get("/token/{token}", h.GetTicketByToken)
	})
	r.Get("/flights/{flightId}/statistics", h.GetFlightStatistics)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	includeNonvalid := boolQuery(r, "include_nonvalid")
	flightID := r.URL.Query().Get("flight_id")

	list, err := h.TicketService.List(r.Context(), includeNonvalid, flightID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"tickets": list})
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	q := tickets.GetQuery{ID: chi.URLParam(r, "id")}
	ticket, err := h.TicketService.Get(r.Context(), q, boolQuery(r, "allow_nonvalid"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) GetTicketByToken(w http.ResponseWriter, r *http.Request) {
	q := tickets.GetQuery{Token: chi.URLParam(r, "token")}
	ticket, err := h.TicketService.Get(r.Context(), q, boolQuery(r, "allow_nonvalid"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) GetTicketCredential(w http.ResponseWriter, r *http.Request) {
	q := tickets.GetQuery{ID: chi.URLParam(r, "id")}
	ticket, credential, err := h.TicketService.GetWithCredential(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	png, err := qrcode.Encode(string(credential), qrcode.Medium, qrSize)
	if err != nil {
		h.writeError(w, apperrors.Internal("failed to render QR code", err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"credential": credential,
		"qr_code":    png,
	})
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var payload wire.Ticket
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, apperrors.InvalidArgument("invalid request body"))
		return
	}

	ticket, err := h.TicketService.Create(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if sub := auth.Subject(r.Context()); sub != "" {
		h.Logger.Info("TICKETS", fmt.Sprintf("Ticket %s created by %s", ticket.ID, sub))
	}
	h.writeJSON(w, http.StatusCreated, ticket)
}

type updateTicketRequest struct {
	Ticket     wire.Ticket `json:"ticket"`
	UpdateMask []string    `json:"update_mask"`
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req updateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidArgument("invalid request body"))
		return
	}

	ticket, err := h.TicketService.Update(r.Context(), chi.URLParam(r, "id"), req.Ticket, req.UpdateMask)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.TicketService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetFlightStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.TicketService.FlightStatistics(r.Context(), chi.URLParam(r, "flightId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("HTTP", fmt.Sprintf("Failed to write response: %v", err))
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Internal detail is
// logged server-side and never leaks into the response body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if apperrors.CodeOf(err) == apperrors.CodeInternal {
		h.Logger.Error("HTTP", fmt.Sprintf("Internal error: %v", err))
	}
	h.writeJSON(w, apperrors.HTTPStatus(err), map[string]string{"error": apperrors.MessageOf(err)})
}

func boolQuery(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
