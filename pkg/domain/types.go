package domain

import "time"

type UserRole string

const (
	RoleFounder UserRole = "FOUNDER"
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	RoleGuest   UserRole = "GUEST"
)

// CanAdminister reports whether the role passes admin-gated checks,
// including maintenance-mode login.
func (r UserRole) CanAdminister() bool {
	return r == RoleAdmin || r == RoleFounder
}

type SubscriptionPlan string

const (
	PlanFree       SubscriptionPlan = "FREE"
	PlanPro        SubscriptionPlan = "PRO"
	PlanEnterprise SubscriptionPlan = "ENTERPRISE"
)

type GroupVisibility string

const (
	GroupPublic  GroupVisibility = "PUBLIC"
	GroupPrivate GroupVisibility = "PRIVATE"
)

type TicketStatus string

const (
	TicketOpen     TicketStatus = "OPEN"
	TicketResolved TicketStatus = "RESOLVED"
)

// Intent selects the tutor's response template.
type Intent string

const (
	IntentTeach   Intent = "TEACH"
	IntentNotes   Intent = "NOTES"
	IntentQuiz    Intent = "QUIZ"
	IntentSummary Intent = "SUMMARY"
	IntentYouTube Intent = "YOUTUBE_ANALYSIS"
)

// AITeacherID is the reserved author identity for tutor-generated messages.
const AITeacherID = "AI_TEACHER"

// AITeacherName is the display name attached to tutor messages.
const AITeacherName = "Prof. Nexus"

// AILabGroupID addresses the built-in one-on-one tutor room. It is not a
// stored group; every user may read and write it.
const AILabGroupID = "ai_lab"

type User struct {
	ID                 string           `json:"id"`
	Username           string           `json:"username"`
	FullName           string           `json:"fullName"`
	Email              string           `json:"email"`
	PasswordHash       string           `json:"-"`
	Role               UserRole         `json:"role"`
	Blocked            bool             `json:"isBlocked"`
	Subscription       SubscriptionPlan `json:"subscription"`
	SubscriptionExpiry *time.Time       `json:"subscriptionExpiry,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	LastLogin          time.Time        `json:"lastLogin"`
	Version            int64            `json:"version"`
}

type Group struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Visibility  GroupVisibility `json:"type"`
	AIEnabled   bool            `json:"isAiEnabled"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	Members     []string        `json:"members"`
	InviteCode  string          `json:"inviteCode,omitempty"`
	Version     int64           `json:"version"`
}

// HasMember reports membership by user ID.
func (g Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// VisibleTo applies the visibility rule: public groups are visible to
// everyone, private groups only to members.
func (g Group) VisibleTo(userID string) bool {
	return g.Visibility == GroupPublic || g.HasMember(userID)
}

// Attachment is owned by its parent message. Data carries the base64
// payload for inline attachments; StorageKey replaces it when the payload
// has been offloaded to object storage.
type Attachment struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MimeType   string `json:"type"`
	Size       int64  `json:"size"`
	Data       string `json:"data,omitempty"`
	StorageKey string `json:"-"`
}

type Message struct {
	ID          string       `json:"id"`
	GroupID     string       `json:"groupId"`
	UserID      string       `json:"userId"`
	UserName    string       `json:"userName"`
	Content     string       `json:"content"`
	IsAI        bool         `json:"isAi"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"timestamp"`
}

type SystemSettings struct {
	MaintenanceMode       bool   `json:"maintenanceMode"`
	EnableAITeacher       bool   `json:"enableAiTeacher"`
	EnableFileUploads     bool   `json:"enableFileUploads"`
	EnableYouTubeAnalysis bool   `json:"enableYouTubeAnalysis"`
	EnableChat            bool   `json:"enableChat"`
	EnableAds             bool   `json:"enableAds"`
	EnablePayments        bool   `json:"enablePayments"`
	Announcement          string `json:"systemAnnouncement"`
	Version               int64  `json:"version"`
}

// DefaultSettings are the compiled-in settings used whenever the stored
// record is absent.
func DefaultSettings() SystemSettings {
	return SystemSettings{
		MaintenanceMode:       false,
		EnableAITeacher:       true,
		EnableFileUploads:     true,
		EnableYouTubeAnalysis: true,
		EnableChat:            true,
		EnableAds:             true,
		EnablePayments:        true,
		Announcement:          "Welcome to EduNexus AI V2.0",
	}
}

type SupportTicket struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId"`
	UserName   string       `json:"userName"`
	Email      string       `json:"email"`
	Subject    string       `json:"subject"`
	Message    string       `json:"message"`
	Status     TicketStatus `json:"status"`
	AdminReply string       `json:"adminReply,omitempty"`
	CreatedAt  time.Time    `json:"timestamp"`
	Version    int64        `json:"version"`
}
