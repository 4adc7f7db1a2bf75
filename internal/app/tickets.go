package app

import (
	"fmt"
	"strings"
	"time"

	"edunexus/internal/util"
	"edunexus/pkg/domain"
)

// CreateTicket opens a support ticket on behalf of the user.
func (a *App) CreateTicket(user domain.User, subject, message string) (domain.SupportTicket, error) {
	subject = strings.TrimSpace(subject)
	message = strings.TrimSpace(message)
	if subject == "" || message == "" {
		return domain.SupportTicket{}, fmt.Errorf("%w: subject and message required", ErrInvalidInput)
	}

	ticket := domain.SupportTicket{
		ID:        "ticket_" + util.NewID(),
		UserID:    user.ID,
		UserName:  displayName(user),
		Email:     user.Email,
		Subject:   subject,
		Message:   message,
		Status:    domain.TicketOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateTicket(ticket); err != nil {
		return domain.SupportTicket{}, fmt.Errorf("create ticket: %w", err)
	}
	ticket.Version = 1
	return ticket, nil
}

// UserTickets lists the caller's own tickets, newest first.
func (a *App) UserTickets(user domain.User) ([]domain.SupportTicket, error) {
	tickets, err := a.store.ListTickets()
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	mine := make([]domain.SupportTicket, 0, len(tickets))
	for _, t := range tickets {
		if t.UserID == user.ID {
			mine = append(mine, t)
		}
	}
	return mine, nil
}

// AllTickets lists every ticket for the admin console, newest first.
func (a *App) AllTickets(admin domain.User) ([]domain.SupportTicket, error) {
	if !admin.Role.CanAdminister() {
		return nil, ErrForbidden
	}
	tickets, err := a.store.ListTickets()
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// ResolveTicket records the admin reply and closes the ticket. Resolved
// tickets are immutable.
func (a *App) ResolveTicket(admin domain.User, ticketID, reply string) (domain.SupportTicket, error) {
	if !admin.Role.CanAdminister() {
		return domain.SupportTicket{}, ErrForbidden
	}
	ticket, ok, err := a.store.GetTicket(ticketID)
	if err != nil {
		return domain.SupportTicket{}, fmt.Errorf("load ticket: %w", err)
	}
	if !ok {
		return domain.SupportTicket{}, ErrTicketNotFound
	}
	if ticket.Status == domain.TicketResolved {
		return domain.SupportTicket{}, ErrTicketResolved
	}

	ticket.AdminReply = strings.TrimSpace(reply)
	ticket.Status = domain.TicketResolved
	if err := a.store.SaveTicket(ticket); err != nil {
		return domain.SupportTicket{}, fmt.Errorf("save ticket: %w", err)
	}
	ticket.Version++
	return ticket, nil
}
