package server

import (
	"net/http"

	"edunexus/pkg/domain"
)

type createTicketRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		tickets, err := s.app.UserTickets(user)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": tickets, "count": len(tickets)})
	case http.MethodPost:
		var req createTicketRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ticket, err := s.app.CreateTicket(user, req.Subject, req.Message)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ticket)
	default:
		methodNotAllowed(w)
	}
}
