package app

import (
	"fmt"
	"strings"
	"time"

	"edunexus/internal/util"
	"edunexus/pkg/auth"
	"edunexus/pkg/domain"
)

// roleForUsername maps signup usernames onto roles. Guessable on purpose:
// the platform provisions staff accounts by naming convention and
// everything else becomes a student.
func roleForUsername(username string) domain.UserRole {
	lower := strings.ToLower(username)
	switch {
	case strings.Contains(lower, "founder"):
		return domain.RoleFounder
	case strings.Contains(lower, "admin"):
		return domain.RoleAdmin
	case strings.Contains(lower, "teacher"):
		return domain.RoleTeacher
	default:
		return domain.RoleStudent
	}
}

// Register creates an account and opens a session for it. Passwords are
// optional; when provided they must satisfy the policy and are stored
// hashed. Registration is closed while maintenance mode is on.
func (a *App) Register(username, password, fullName, email string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, "", ErrUsernameRequired
	}

	settings, err := a.store.GetSettings()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load settings: %w", err)
	}
	if settings.MaintenanceMode {
		return domain.User{}, "", ErrRegistrationClosed
	}

	var hash string
	if password != "" {
		if err := auth.ValidatePassword(password); err != nil {
			return domain.User{}, "", err
		}
		hash, err = auth.HashPassword(password)
		if err != nil {
			return domain.User{}, "", fmt.Errorf("hash password: %w", err)
		}
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           "user_" + util.NewID(),
		Username:     username,
		FullName:     strings.TrimSpace(fullName),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         roleForUsername(username),
		Subscription: domain.PlanFree,
		CreatedAt:    now,
		LastLogin:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		return domain.User{}, "", err
	}
	user.Version = 1

	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("open session: %w", err)
	}
	return user, token, nil
}

// Login authenticates a user and opens a session. Maintenance mode shuts
// out everyone below admin; blocked accounts are rejected outright.
// Accounts without a stored hash authenticate by username alone.
func (a *App) Login(username, password string) (domain.User, string, error) {
	user, ok, err := a.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("look up user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrUserNotFound
	}

	settings, err := a.store.GetSettings()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load settings: %w", err)
	}
	if settings.MaintenanceMode && !user.Role.CanAdminister() {
		return domain.User{}, "", ErrMaintenanceMode
	}
	if user.Blocked {
		return domain.User{}, "", ErrAccountBlocked
	}
	if user.PasswordHash != "" && !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}

	user.LastLogin = time.Now().UTC()
	saved := user
	saved.Version = 0 // unconditional: a lost last-login race is harmless
	if err := a.store.SaveUser(saved); err != nil {
		return domain.User{}, "", fmt.Errorf("record login: %w", err)
	}
	user.Version++

	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("open session: %w", err)
	}
	return user, token, nil
}

// GuestLogin provisions a throwaway guest account and a session for it.
// Guests are shut out during maintenance like any non-admin.
func (a *App) GuestLogin() (domain.User, string, error) {
	settings, err := a.store.GetSettings()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load settings: %w", err)
	}
	if settings.MaintenanceMode {
		return domain.User{}, "", ErrMaintenanceMode
	}

	now := time.Now().UTC()
	suffix := util.NewID()
	user := domain.User{
		ID:           "guest_" + suffix,
		Username:     "guest_" + suffix,
		FullName:     "Guest Explorer",
		Role:         domain.RoleGuest,
		Subscription: domain.PlanFree,
		CreatedAt:    now,
		LastLogin:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("create guest: %w", err)
	}
	user.Version = 1

	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("open session: %w", err)
	}
	return user, token, nil
}

// UserFromToken restores the account a session token points at. It is a
// soft miss when the token is unknown, the account is gone, or the
// account has been blocked since the session opened.
func (a *App) UserFromToken(token string) (domain.User, bool, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	if user.Blocked {
		return domain.User{}, false, nil
	}
	return user, true, nil
}

// Logout drops the session. Unknown tokens are a no-op.
func (a *App) Logout(token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}
