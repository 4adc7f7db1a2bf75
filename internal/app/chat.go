package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"edunexus/internal/util"
	"edunexus/pkg/ai"
	"edunexus/pkg/domain"
)

const aiMention = "@ai"

// labGroupID returns the per-user message stream backing the AI Lab.
// Lab conversations are private, so the shared lab ID is scoped by user.
func labGroupID(userID string) string {
	return domain.AILabGroupID + ":" + userID
}

// resolveChatTarget maps a client-facing group ID onto the stored stream
// and enforces access. The AI Lab needs no stored group; everything else
// requires membership.
func (a *App) resolveChatTarget(user domain.User, groupID string) (streamID string, group domain.Group, isLab bool, err error) {
	if groupID == domain.AILabGroupID {
		return labGroupID(user.ID), domain.Group{}, true, nil
	}
	group, ok, err := a.store.GetGroup(groupID)
	if err != nil {
		return "", domain.Group{}, false, fmt.Errorf("load group: %w", err)
	}
	if !ok {
		return "", domain.Group{}, false, ErrGroupNotFound
	}
	if !group.HasMember(user.ID) {
		return "", domain.Group{}, false, ErrNotGroupMember
	}
	return groupID, group, false, nil
}

// GroupMessages returns the most recent messages of a group in
// chronological order, bounded by the configured page size.
func (a *App) GroupMessages(user domain.User, groupID string) ([]domain.Message, error) {
	streamID, _, _, err := a.resolveChatTarget(user, groupID)
	if err != nil {
		return nil, err
	}
	msgs, err := a.store.ListMessages(streamID, a.messageLim)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// SendMessage posts a message and, when the tutor is addressed, appends
// its reply. The returned slice holds everything appended by this call.
//
// Tutor failures are soft: the user's message is already committed, and
// the reply degrades to a fallback line instead of erroring the request.
func (a *App) SendMessage(ctx context.Context, user domain.User, groupID, content string, attachments []domain.Attachment, intent *domain.Intent) ([]domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}

	streamID, group, isLab, err := a.resolveChatTarget(user, groupID)
	if err != nil {
		return nil, err
	}

	settings, err := a.store.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !isLab && !settings.EnableChat {
		return nil, ErrChatDisabled
	}
	if len(attachments) > 0 && !settings.EnableFileUploads {
		return nil, ErrUploadsDisabled
	}

	shouldReply := a.tutorAddressed(isLab, group, content, intent) && settings.EnableAITeacher
	stored, fileContext := a.processAttachments(ctx, attachments, shouldReply)

	msg := domain.Message{
		ID:          "msg_" + util.NewID(),
		GroupID:     streamID,
		UserID:      user.ID,
		UserName:    user.FullName,
		Content:     content,
		Attachments: stored,
		CreatedAt:   time.Now().UTC(),
	}
	if msg.UserName == "" {
		msg.UserName = user.Username
	}
	if err := a.store.AppendMessage(msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	appended := []domain.Message{msg}

	if !shouldReply {
		return appended, nil
	}

	history, err := a.tutorHistory(streamID, msg.ID)
	if err != nil {
		slog.Warn("tutor history unavailable", "group", streamID, "error", err)
		history = nil
	}
	replyText := a.tutorReply(ctx, user, settings, history, content, fileContext, intent)

	reply := domain.Message{
		ID:        "msg_" + util.NewID(),
		GroupID:   streamID,
		UserID:    domain.AITeacherID,
		UserName:  domain.AITeacherName,
		Content:   replyText,
		IsAI:      true,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AppendMessage(reply); err != nil {
		// The user's message stands; losing the reply only costs a turn.
		slog.Error("append tutor reply", "group", streamID, "error", err)
		return appended, nil
	}
	return append(appended, reply), nil
}

// tutorAddressed decides whether the tutor should answer this message.
// The AI Lab always answers; group chat answers on an explicit intent or
// an @ai mention, and only in AI-enabled groups.
func (a *App) tutorAddressed(isLab bool, group domain.Group, content string, intent *domain.Intent) bool {
	if isLab {
		return true
	}
	if !group.AIEnabled {
		return false
	}
	if intent != nil {
		return true
	}
	return strings.Contains(strings.ToLower(content), aiMention)
}

// tutorHistory collects the prior turns handed to the model, newest last,
// excluding the message that triggered the reply.
func (a *App) tutorHistory(streamID, excludeID string) ([]ai.Turn, error) {
	msgs, err := a.store.ListMessages(streamID, a.historyLim+1)
	if err != nil {
		return nil, err
	}
	turns := make([]ai.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == excludeID || m.Content == "" {
			continue
		}
		role := "user"
		if m.IsAI {
			role = "model"
		}
		turns = append(turns, ai.Turn{Role: role, Text: m.Content})
	}
	if len(turns) > a.historyLim {
		turns = turns[len(turns)-a.historyLim:]
	}
	return turns, nil
}

// processAttachments assigns IDs, offloads oversized payloads to object
// storage and, when the tutor will answer, extracts document text from
// the first attachment. Extraction and offload failures are soft; the
// attachment stays inline.
func (a *App) processAttachments(ctx context.Context, attachments []domain.Attachment, wantContext bool) ([]domain.Attachment, string) {
	if len(attachments) == 0 {
		return nil, ""
	}
	stored := make([]domain.Attachment, 0, len(attachments))
	var fileContext string
	for _, att := range attachments {
		att.ID = "att_" + util.NewID()
		data, err := base64.StdEncoding.DecodeString(att.Data)
		if err != nil {
			slog.Warn("attachment payload not base64", "name", att.Name, "error", err)
			stored = append(stored, att)
			continue
		}
		att.Size = int64(len(data))

		if wantContext && fileContext == "" {
			if text, err := a.ExtractText(ctx, data, att.MimeType); err != nil {
				slog.Warn("attachment extraction failed", "name", att.Name, "error", err)
			} else {
				fileContext = text
			}
		}

		if a.objects != nil && att.Size > a.inlineLimit {
			key := "attachments/" + att.ID + "/" + att.Name
			if err := a.objects.Put(ctx, key, data, att.MimeType); err != nil {
				slog.Warn("attachment offload failed", "name", att.Name, "error", err)
			} else {
				att.StorageKey = key
				att.Data = ""
			}
		}
		stored = append(stored, att)
	}
	return stored, fileContext
}

// DownloadAttachment returns an attachment of a message the user may
// read, together with its raw payload. Offloaded payloads are fetched
// from object storage; inline ones are decoded from the record.
func (a *App) DownloadAttachment(ctx context.Context, user domain.User, groupID, messageID, attachmentID string) (domain.Attachment, []byte, error) {
	streamID, _, _, err := a.resolveChatTarget(user, groupID)
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	msg, ok, err := a.store.GetMessage(streamID, messageID)
	if err != nil {
		return domain.Attachment{}, nil, fmt.Errorf("load message: %w", err)
	}
	if !ok {
		return domain.Attachment{}, nil, ErrAttachmentNotFound
	}
	for _, att := range msg.Attachments {
		if att.ID != attachmentID {
			continue
		}
		data, err := a.attachmentData(ctx, att)
		if err != nil {
			return domain.Attachment{}, nil, fmt.Errorf("attachment payload: %w", err)
		}
		return att, data, nil
	}
	return domain.Attachment{}, nil, ErrAttachmentNotFound
}

func (a *App) attachmentData(ctx context.Context, att domain.Attachment) ([]byte, error) {
	if att.StorageKey != "" {
		if a.objects == nil {
			return nil, fmt.Errorf("object storage not configured")
		}
		return a.objects.Get(ctx, att.StorageKey)
	}
	return base64.StdEncoding.DecodeString(att.Data)
}
