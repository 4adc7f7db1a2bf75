package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"edunexus/pkg/ai"
	"edunexus/pkg/domain"
)

const (
	tutorFallback   = "I ran into a neural network error and could not finish that thought. Please try again in a moment."
	tutorNoProvider = "The AI tutor is not configured on this deployment. Ask an administrator to set an API key."
	youtubeDisabled = "YouTube analysis is currently disabled by the administrators."
)

var youtubeURL = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:youtube\.com|youtu\.be)/\S+`)

// tutorReply produces the tutor's answer. It never fails hard: provider
// errors and disabled features come back as chat text.
func (a *App) tutorReply(ctx context.Context, user domain.User, settings domain.SystemSettings, history []ai.Turn, content, fileContext string, intent *domain.Intent) string {
	if a.generator == nil {
		return tutorNoProvider
	}

	effective := effectiveIntent(intent, content)
	if effective == domain.IntentYouTube && !settings.EnableYouTubeAnalysis {
		return youtubeDisabled
	}

	prompt := strings.TrimSpace(strings.ReplaceAll(content, aiMention, ""))
	if prompt == "" {
		prompt = "Please help me with the attached material."
	}

	text, err := a.generator.GenerateText(ctx, tutorSystemPrompt(user, effective, fileContext), history, prompt)
	if err != nil {
		slog.Warn("tutor generation failed", "user", user.ID, "intent", effective, "error", err)
		return tutorFallback
	}
	return text
}

// effectiveIntent resolves the tutor mode: an explicit intent wins, a
// YouTube link promotes to video analysis, everything else is teaching.
func effectiveIntent(intent *domain.Intent, content string) domain.Intent {
	if intent != nil {
		return *intent
	}
	if youtubeURL.MatchString(content) {
		return domain.IntentYouTube
	}
	return domain.IntentTeach
}

// tutorSystemPrompt builds the persona instruction for one reply.
func tutorSystemPrompt(user domain.User, intent domain.Intent, fileContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an expert AI tutor on the EduNexus learning platform. ", domain.AITeacherName)
	fmt.Fprintf(&b, "You are speaking with %s (role: %s). Be encouraging, precise, and format answers in Markdown.\n", displayName(user), user.Role)

	switch intent {
	case domain.IntentNotes:
		b.WriteString("Task: produce well-structured, concise study notes on the topic, using headings and bullet points.\n")
	case domain.IntentQuiz:
		b.WriteString("Task: create a short quiz (5 questions, mixed difficulty) on the topic, then list the answers at the end.\n")
	case domain.IntentSummary:
		b.WriteString("Task: summarize the material in a few short paragraphs, highlighting the key takeaways.\n")
	case domain.IntentYouTube:
		b.WriteString("Task: the student shared a YouTube link. Infer the video's topic from its URL and the conversation, explain the likely content, and suggest what to focus on while watching.\n")
	default:
		b.WriteString("Task: teach the topic step by step, checking understanding with a short question at the end.\n")
	}

	if fileContext != "" {
		b.WriteString("\nThe student attached a document. Use its content as the primary source:\n---\n")
		b.WriteString(fileContext)
		b.WriteString("\n---\n")
	}
	return b.String()
}

func displayName(user domain.User) string {
	if user.FullName != "" {
		return user.FullName
	}
	return user.Username
}

// ExtractUpload decodes a base64 document and extracts its text. It is
// the standalone extraction entry point and honors the uploads toggle.
func (a *App) ExtractUpload(ctx context.Context, data, mimeType string) (string, error) {
	settings, err := a.store.GetSettings()
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	if !settings.EnableFileUploads {
		return "", ErrUploadsDisabled
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: payload is not base64", ErrInvalidInput)
	}
	text, err := a.ExtractText(ctx, decoded, mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return text, nil
}

// ExtractText pulls plain text from an attachment payload. PDFs are
// parsed locally; other document and image types go through the
// configured document reader.
func (a *App) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	switch {
	case mimeType == "application/pdf":
		return extractPDFText(data)
	case strings.HasPrefix(mimeType, "text/"):
		return string(data), nil
	case a.docReader != nil:
		return a.docReader.ReadDocument(ctx, data, mimeType)
	default:
		return "", fmt.Errorf("no reader for %s", mimeType)
	}
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return b.String(), nil
}
