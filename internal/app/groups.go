package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"edunexus/internal/util"
	"edunexus/pkg/domain"
	"edunexus/pkg/store"
)

// VisibleGroups lists the groups the user may see: all public groups plus
// the private groups they belong to.
func (a *App) VisibleGroups(user domain.User) ([]domain.Group, error) {
	groups, err := a.store.ListGroups()
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	visible := make([]domain.Group, 0, len(groups))
	for _, g := range groups {
		if g.VisibleTo(user.ID) {
			visible = append(visible, g)
		}
	}
	return visible, nil
}

// CreateGroup creates a study group owned by the user, who becomes its
// first member. Private groups get a generated invite code.
func (a *App) CreateGroup(user domain.User, name, description string, visibility domain.GroupVisibility, aiEnabled bool) (domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Group{}, fmt.Errorf("%w: group name required", ErrInvalidInput)
	}
	if visibility != domain.GroupPublic && visibility != domain.GroupPrivate {
		return domain.Group{}, fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, visibility)
	}

	group := domain.Group{
		ID:          "group_" + util.NewID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Visibility:  visibility,
		AIEnabled:   aiEnabled,
		CreatedBy:   user.ID,
		CreatedAt:   time.Now().UTC(),
		Members:     []string{user.ID},
	}
	if visibility == domain.GroupPrivate {
		group.InviteCode = newInviteCode()
	}
	if err := a.store.SaveGroup(group); err != nil {
		return domain.Group{}, fmt.Errorf("save group: %w", err)
	}
	group.Version = 1
	return group, nil
}

// newInviteCode derives a short shareable code from a fresh UUID.
func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// JoinGroup adds the user to a group. Public groups are open; private
// groups require the matching invite code. Joining a group twice is a
// no-op. Concurrent membership edits are retried on version conflicts.
func (a *App) JoinGroup(user domain.User, groupID, inviteCode string) (domain.Group, error) {
	return a.updateMembers(groupID, func(g domain.Group) (domain.Group, error) {
		if g.HasMember(user.ID) {
			return g, nil
		}
		if g.Visibility == domain.GroupPrivate && !strings.EqualFold(g.InviteCode, strings.TrimSpace(inviteCode)) {
			return domain.Group{}, ErrInvalidInviteCode
		}
		g.Members = append(g.Members, user.ID)
		return g, nil
	})
}

// JoinByInviteCode resolves an invite code to its group and joins it.
func (a *App) JoinByInviteCode(user domain.User, inviteCode string) (domain.Group, error) {
	code := strings.TrimSpace(inviteCode)
	if code == "" {
		return domain.Group{}, ErrInvalidInviteCode
	}
	groups, err := a.store.ListGroups()
	if err != nil {
		return domain.Group{}, fmt.Errorf("list groups: %w", err)
	}
	for _, g := range groups {
		if g.InviteCode != "" && strings.EqualFold(g.InviteCode, code) {
			return a.JoinGroup(user, g.ID, code)
		}
	}
	return domain.Group{}, ErrInvalidInviteCode
}

// LeaveGroup removes the user from the member list. Leaving a group the
// user is not in is a no-op.
func (a *App) LeaveGroup(user domain.User, groupID string) (domain.Group, error) {
	return a.updateMembers(groupID, func(g domain.Group) (domain.Group, error) {
		if !g.HasMember(user.ID) {
			return g, nil
		}
		members := make([]string, 0, len(g.Members)-1)
		for _, id := range g.Members {
			if id != user.ID {
				members = append(members, id)
			}
		}
		g.Members = members
		return g, nil
	})
}

// updateMembers applies a read-modify-write on the group with a small
// retry budget against concurrent version conflicts.
func (a *App) updateMembers(groupID string, mutate func(domain.Group) (domain.Group, error)) (domain.Group, error) {
	for attempt := 0; attempt < conflictRetries; attempt++ {
		group, ok, err := a.store.GetGroup(groupID)
		if err != nil {
			return domain.Group{}, fmt.Errorf("load group: %w", err)
		}
		if !ok {
			return domain.Group{}, ErrGroupNotFound
		}
		updated, err := mutate(group)
		if err != nil {
			return domain.Group{}, err
		}
		if len(updated.Members) == len(group.Members) {
			return group, nil
		}
		err = a.store.SaveGroup(updated)
		if err == nil {
			updated.Version++
			return updated, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return domain.Group{}, fmt.Errorf("save group: %w", err)
		}
	}
	return domain.Group{}, store.ErrVersionConflict
}

// DeleteGroup removes a group, its message history, and any attachment
// payloads offloaded to object storage. Only the creator or an
// administrator may delete.
func (a *App) DeleteGroup(ctx context.Context, user domain.User, groupID string) error {
	group, ok, err := a.store.GetGroup(groupID)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if !ok {
		return ErrGroupNotFound
	}
	if group.CreatedBy != user.ID && !user.Role.CanAdminister() {
		return ErrForbidden
	}
	a.removeOffloadedAttachments(ctx, groupID)
	if err := a.store.DeleteGroup(groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// removeOffloadedAttachments best-effort deletes the group's attachment
// objects. A failed delete only leaves an orphaned object behind, so it
// is logged rather than blocking the group deletion.
func (a *App) removeOffloadedAttachments(ctx context.Context, groupID string) {
	if a.objects == nil {
		return
	}
	msgs, err := a.store.ListMessages(groupID, 0)
	if err != nil {
		slog.Warn("attachment cleanup: list messages failed", "group", groupID, "error", err)
		return
	}
	for _, msg := range msgs {
		for _, att := range msg.Attachments {
			if att.StorageKey == "" {
				continue
			}
			if err := a.objects.Delete(ctx, att.StorageKey); err != nil {
				slog.Warn("attachment cleanup failed", "key", att.StorageKey, "error", err)
			}
		}
	}
}
