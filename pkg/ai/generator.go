package ai

import "context"

// Turn is one prior conversation entry handed to the model as context.
// Role is "user" or "model".
type Turn struct {
	Role string
	Text string
}

// TextGenerator produces a reply from a system prompt, prior turns, and the
// current user prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt string, history []Turn, userPrompt string) (string, error)
}

// DocumentReader extracts plain text from an inline document or image.
type DocumentReader interface {
	ReadDocument(ctx context.Context, data []byte, mimeType string) (string, error)
}
