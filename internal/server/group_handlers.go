package server

import (
	"fmt"
	"net/http"
	"strings"

	"edunexus/pkg/domain"
)

type createGroupRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Visibility  domain.GroupVisibility `json:"type"`
	AIEnabled   bool                   `json:"isAiEnabled"`
}

type joinRequest struct {
	InviteCode string `json:"inviteCode"`
}

type sendMessageRequest struct {
	Content     string              `json:"content"`
	Attachments []domain.Attachment `json:"attachments"`
	Intent      *domain.Intent      `json:"intent"`
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		groups, err := s.app.VisibleGroups(user)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": groups, "count": len(groups)})
	case http.MethodPost:
		var req createGroupRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		group, err := s.app.CreateGroup(user, req.Name, req.Description, req.Visibility, req.AIEnabled)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, group)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	group, err := s.app.JoinByInviteCode(user, req.InviteCode)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// handleGroupByID dispatches /api/groups/{id} and its subresources.
func (s *Server) handleGroupByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	groupID, sub, _ := strings.Cut(rest, "/")
	if groupID == "" {
		http.NotFound(w, r)
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		if err := s.app.DeleteGroup(r.Context(), user, groupID); err != nil {
			writeAppError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "join":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req joinRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		group, err := s.app.JoinGroup(user, groupID, req.InviteCode)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, group)
	case "leave":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		group, err := s.app.LeaveGroup(user, groupID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, group)
	case "messages":
		s.handleGroupMessages(w, r, user, groupID)
	default:
		// messages/{msgID}/attachments/{attID} downloads a payload
		if parts := strings.Split(sub, "/"); len(parts) == 4 && parts[0] == "messages" && parts[2] == "attachments" {
			s.handleAttachmentDownload(w, r, user, groupID, parts[1], parts[3])
			return
		}
		http.NotFound(w, r)
	}
}

func (s *Server) handleAttachmentDownload(w http.ResponseWriter, r *http.Request, user domain.User, groupID, messageID, attachmentID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	att, data, err := s.app.DownloadAttachment(r.Context(), user, groupID, messageID, attachmentID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	contentType := att.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleAILab is the shorthand surface for the one-on-one tutor room.
func (s *Server) handleAILab(w http.ResponseWriter, r *http.Request, user domain.User) {
	s.handleGroupMessages(w, r, user, domain.AILabGroupID)
}

type extractRequest struct {
	Data     string `json:"data"`
	MimeType string `json:"type"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	text, err := s.app.ExtractUpload(r.Context(), req.Data, req.MimeType)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleGroupMessages(w http.ResponseWriter, r *http.Request, user domain.User, groupID string) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := s.app.GroupMessages(user, groupID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": msgs, "count": len(msgs)})
	case http.MethodPost:
		var req sendMessageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		appended, err := s.app.SendMessage(r.Context(), user, groupID, req.Content, req.Attachments, req.Intent)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"items": appended, "count": len(appended)})
	default:
		methodNotAllowed(w)
	}
}
