package store

import (
	"errors"

	"edunexus/pkg/domain"
)

var (
	// ErrUsernameTaken is returned by CreateUser when the username is
	// already registered. It maps onto the unique index on usernames.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrVersionConflict is returned by Save operations when the caller
	// supplied a record version that no longer matches the stored one.
	ErrVersionConflict = errors.New("record version conflict")
)

// Store defines persistence operations for the five platform collections.
// Reads that miss return (zero, false, nil); storage failures are returned
// as errors and are never retried here.
//
// Save operations are upserts. A record with Version > 0 is written only
// when the stored version still matches, failing with ErrVersionConflict
// otherwise; Version 0 writes unconditionally.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	SaveUser(domain.User) error
	DeleteUser(id string) error

	// groups
	SaveGroup(domain.Group) error
	GetGroup(id string) (domain.Group, bool, error)
	ListGroups() ([]domain.Group, error)
	DeleteGroup(id string) error

	// messages
	AppendMessage(domain.Message) error
	GetMessage(groupID, id string) (domain.Message, bool, error)
	ListMessages(groupID string, limit int) ([]domain.Message, error)

	// settings
	GetSettings() (domain.SystemSettings, error)
	SaveSettings(domain.SystemSettings) error

	// tickets
	CreateTicket(domain.SupportTicket) error
	GetTicket(id string) (domain.SupportTicket, bool, error)
	ListTickets() ([]domain.SupportTicket, error)
	SaveTicket(domain.SupportTicket) error
}

// SessionStore maps opaque session tokens to user IDs for the lifetime of
// one client session.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
