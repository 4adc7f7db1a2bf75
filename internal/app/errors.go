package app

import "errors"

var (
	// ErrInvalidInput wraps request validation failures so transports can
	// map them to a client error without enumerating each message.
	ErrInvalidInput = errors.New("invalid input")

	ErrUsernameRequired   = errors.New("username required")
	ErrUserNotFound       = errors.New("identity not found")
	ErrMaintenanceMode    = errors.New("maintenance active: admin access only")
	ErrRegistrationClosed = errors.New("registrations disabled during maintenance")
	ErrAccountBlocked     = errors.New("access denied: account blocked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChatDisabled       = errors.New("chat system is disabled")
	ErrUploadsDisabled    = errors.New("file uploads are disabled")
	ErrGroupNotFound      = errors.New("group not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrNotGroupMember     = errors.New("not a group member")
	ErrInvalidInviteCode  = errors.New("invalid invite code")
	ErrForbidden          = errors.New("forbidden")
	ErrFounderProtected   = errors.New("founder accounts cannot be modified")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrTicketResolved     = errors.New("ticket already resolved")
	ErrPaymentsDisabled   = errors.New("payments are disabled")
)
