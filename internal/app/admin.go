package app

import (
	"fmt"
	"time"

	"edunexus/pkg/domain"
)

// UpdateSettings persists the admin-edited global settings and returns
// the stored record re-read from the store, so callers render what was
// actually committed rather than what they sent.
func (a *App) UpdateSettings(admin domain.User, settings domain.SystemSettings) (domain.SystemSettings, error) {
	if !admin.Role.CanAdminister() {
		return domain.SystemSettings{}, ErrForbidden
	}
	if err := a.store.SaveSettings(settings); err != nil {
		return domain.SystemSettings{}, fmt.Errorf("save settings: %w", err)
	}
	stored, err := a.store.GetSettings()
	if err != nil {
		return domain.SystemSettings{}, fmt.Errorf("reload settings: %w", err)
	}
	return stored, nil
}

// ListUsers returns every account for the admin console.
func (a *App) ListUsers(admin domain.User) ([]domain.User, error) {
	if !admin.Role.CanAdminister() {
		return nil, ErrForbidden
	}
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SetUserBlocked toggles an account's blocked flag. Founder accounts are
// untouchable and admins cannot block themselves.
func (a *App) SetUserBlocked(admin domain.User, userID string, blocked bool) (domain.User, error) {
	if !admin.Role.CanAdminister() {
		return domain.User{}, ErrForbidden
	}
	if userID == admin.ID {
		return domain.User{}, fmt.Errorf("cannot block own account: %w", ErrForbidden)
	}
	target, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if target.Role == domain.RoleFounder {
		return domain.User{}, ErrFounderProtected
	}

	target.Blocked = blocked
	if err := a.store.SaveUser(target); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	target.Version++
	return target, nil
}

// DeleteUser removes an account. Founder accounts and the caller's own
// account are protected.
func (a *App) DeleteUser(admin domain.User, userID string) error {
	if !admin.Role.CanAdminister() {
		return ErrForbidden
	}
	if userID == admin.ID {
		return fmt.Errorf("cannot delete own account: %w", ErrForbidden)
	}
	target, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if target.Role == domain.RoleFounder {
		return ErrFounderProtected
	}
	if err := a.store.DeleteUser(userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// UpgradeSubscription switches the caller to a paid plan for thirty
// days. Gated on the payments toggle.
func (a *App) UpgradeSubscription(user domain.User, plan domain.SubscriptionPlan) (domain.User, error) {
	settings, err := a.store.GetSettings()
	if err != nil {
		return domain.User{}, fmt.Errorf("load settings: %w", err)
	}
	if !settings.EnablePayments {
		return domain.User{}, ErrPaymentsDisabled
	}
	switch plan {
	case domain.PlanFree, domain.PlanPro, domain.PlanEnterprise:
	default:
		return domain.User{}, fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, plan)
	}

	user.Subscription = plan
	if plan == domain.PlanFree {
		user.SubscriptionExpiry = nil
	} else {
		expiry := time.Now().UTC().Add(30 * 24 * time.Hour)
		user.SubscriptionExpiry = &expiry
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	user.Version++
	return user, nil
}
