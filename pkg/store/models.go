package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID                 string `gorm:"primaryKey"`
	Username           string `gorm:"uniqueIndex;not null"`
	FullName           string
	Email              string
	PasswordHash       string
	Role               string `gorm:"not null"`
	Blocked            bool   `gorm:"not null"`
	Subscription       string `gorm:"not null"`
	SubscriptionExpiry *time.Time
	CreatedAt          time.Time `gorm:"not null"`
	LastLogin          time.Time
	Version            int64 `gorm:"not null"`
}

type GroupModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	Visibility  string         `gorm:"not null"`
	AIEnabled   bool           `gorm:"not null"`
	CreatedBy   string         `gorm:"not null;index"`
	Members     datatypes.JSON `gorm:"type:jsonb"`
	InviteCode  string
	CreatedAt   time.Time `gorm:"not null"`
	Version     int64     `gorm:"not null"`
}

// MessageModel keeps an auto-incremented Seq so that messages sharing a
// timestamp still sort in insertion order.
type MessageModel struct {
	Seq         int64  `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"uniqueIndex;not null"`
	GroupID     string `gorm:"not null;index"`
	UserID      string `gorm:"not null"`
	UserName    string
	Content     string         `gorm:"type:text"`
	IsAI        bool           `gorm:"not null"`
	Attachments datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;index"`
}

// attachmentRecord is the persisted attachment shape. Unlike the domain
// type it serializes StorageKey, which API responses hide.
type attachmentRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MimeType   string `json:"type"`
	Size       int64  `json:"size"`
	Data       string `json:"data,omitempty"`
	StorageKey string `json:"storageKey,omitempty"`
}

// SettingsModel holds the single well-known settings record.
type SettingsModel struct {
	ID                    string `gorm:"primaryKey"`
	MaintenanceMode       bool
	EnableAITeacher       bool
	EnableFileUploads     bool
	EnableYouTubeAnalysis bool
	EnableChat            bool
	EnableAds             bool
	EnablePayments        bool
	Announcement          string
	Version               int64 `gorm:"not null"`
}

type TicketModel struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"not null;index"`
	UserName   string
	Email      string
	Subject    string `gorm:"not null"`
	Message    string `gorm:"type:text"`
	Status     string `gorm:"not null"`
	AdminReply string
	CreatedAt  time.Time `gorm:"not null"`
	Version    int64     `gorm:"not null"`
}

// SchemaMetaModel tracks the applied schema version so that seeding runs
// only on first migration to the current version.
type SchemaMetaModel struct {
	Key   string `gorm:"primaryKey"`
	Value int    `gorm:"not null"`
}
