// Package app implements the platform's use cases on top of the store,
// session, AI and object storage layers. HTTP handlers stay thin and
// delegate here.
package app

import (
	"edunexus/pkg/ai"
	"edunexus/pkg/domain"
	"edunexus/pkg/storage"
	"edunexus/pkg/store"
)

const (
	defaultHistoryLimit = 8
	defaultMessageLimit = 200
	defaultInlineLimit  = 256 * 1024
	conflictRetries     = 3
)

// Config wires the app's collaborators. Store and Sessions are required;
// the rest degrade gracefully when absent (no AI replies, inline-only
// attachments).
type Config struct {
	Store     store.Store
	Sessions  store.SessionStore
	Generator ai.TextGenerator
	DocReader ai.DocumentReader
	Objects   storage.ObjectStore

	// HistoryLimit caps the conversation turns forwarded to the tutor.
	HistoryLimit int
	// MessageLimit bounds chat reads per group.
	MessageLimit int
	// AttachmentInlineLimit is the byte size above which attachment
	// payloads are offloaded to object storage.
	AttachmentInlineLimit int64
}

type App struct {
	store       store.Store
	sessions    store.SessionStore
	generator   ai.TextGenerator
	docReader   ai.DocumentReader
	objects     storage.ObjectStore
	historyLim  int
	messageLim  int
	inlineLimit int64
}

func New(cfg Config) *App {
	a := &App{
		store:       cfg.Store,
		sessions:    cfg.Sessions,
		generator:   cfg.Generator,
		docReader:   cfg.DocReader,
		objects:     cfg.Objects,
		historyLim:  cfg.HistoryLimit,
		messageLim:  cfg.MessageLimit,
		inlineLimit: cfg.AttachmentInlineLimit,
	}
	if a.historyLim <= 0 {
		a.historyLim = defaultHistoryLimit
	}
	if a.messageLim <= 0 {
		a.messageLim = defaultMessageLimit
	}
	if a.inlineLimit <= 0 {
		a.inlineLimit = defaultInlineLimit
	}
	return a
}

// Settings returns the current global configuration, falling back to
// defaults when the store holds none.
func (a *App) Settings() (domain.SystemSettings, error) {
	return a.store.GetSettings()
}
