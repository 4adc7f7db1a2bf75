package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"edunexus/pkg/domain"
)

const (
	settingsKey = "global"

	// schemaVersion guards one-time seeding of the default accounts and
	// settings record. Bump it when the seed set changes.
	schemaVersion = 3
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, runs auto-migrations, and seeds the default
// founder/admin accounts and settings record once per schema version.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{},
		&GroupModel{},
		&MessageModel{},
		&SettingsModel{},
		&TicketModel{},
		&SchemaMetaModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	s := &GormStore{db: db}
	if err := s.seed(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return s, nil
}

func (s *GormStore) seed() error {
	var meta SchemaMetaModel
	err := s.db.First(&meta, "key = ?", "schema_version").Error
	if err == nil && meta.Value >= schemaVersion {
		return nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	seedUsers := []UserModel{
		{
			ID:           "founder_001",
			Username:     "founder",
			FullName:     "Platform Founder",
			Email:        "founder@edunexus.ai",
			Role:         string(domain.RoleFounder),
			Subscription: string(domain.PlanEnterprise),
			CreatedAt:    now,
			Version:      1,
		},
		{
			ID:           "admin_001",
			Username:     "admin",
			FullName:     "System Admin",
			Email:        "admin@edunexus.ai",
			Role:         string(domain.RoleAdmin),
			Subscription: string(domain.PlanEnterprise),
			CreatedAt:    now,
			Version:      1,
		},
	}
	defaults := settingsToModel(domain.DefaultSettings())
	defaults.Version = 1

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seedUsers).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&SchemaMetaModel{Key: "schema_version", Value: schemaVersion}).Error
	})
}

// CreateUser inserts a new user, failing with ErrUsernameTaken when the
// username is already indexed.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	model.Version = 1
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// GetUserByUsername looks up a user through the username index.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by primary key.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// SaveUser upserts a user record, honoring optimistic versioning.
func (s *GormStore) SaveUser(u domain.User) error {
	return s.versionedUpsert(&UserModel{}, u.ID, u.Version, userColumns(u), func() any {
		model := userToModel(u)
		model.Version = 1
		return &model
	})
}

// DeleteUser removes a user unconditionally.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Delete(&UserModel{}, "id = ?", id).Error
}

// SaveGroup upserts a group record.
func (s *GormStore) SaveGroup(g domain.Group) error {
	cols, err := groupColumns(g)
	if err != nil {
		return err
	}
	return s.versionedUpsert(&GroupModel{}, g.ID, g.Version, cols, func() any {
		model, _ := groupToModel(g)
		model.Version = 1
		return &model
	})
}

// GetGroup retrieves a group by ID.
func (s *GormStore) GetGroup(id string) (domain.Group, bool, error) {
	var model GroupModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Group{}, false, nil
		}
		return domain.Group{}, false, err
	}
	g, err := groupFromModel(model)
	if err != nil {
		return domain.Group{}, false, err
	}
	return g, true, nil
}

// ListGroups returns all groups ordered by created_at. Visibility filtering
// belongs to the caller.
func (s *GormStore) ListGroups() ([]domain.Group, error) {
	var models []GroupModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Group, 0, len(models))
	for _, m := range models {
		g, err := groupFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, nil
}

// DeleteGroup removes a group together with its messages.
func (s *GormStore) DeleteGroup(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "group_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&GroupModel{}, "id = ?", id).Error
	})
}

// AppendMessage records a message in its group's history.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model, err := messageToModel(msg)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetMessage retrieves one message of a group by message ID.
func (s *GormStore) GetMessage(groupID, id string) (domain.Message, bool, error) {
	var model MessageModel
	if err := s.db.First(&model, "group_id = ? AND id = ?", groupID, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	msg, err := messageFromModel(model)
	if err != nil {
		return domain.Message{}, false, err
	}
	return msg, true, nil
}

// ListMessages returns a group's messages in stable chronological order,
// bounded to the most recent limit entries when limit > 0.
func (s *GormStore) ListMessages(groupID string, limit int) ([]domain.Message, error) {
	var models []MessageModel
	tx := s.db.Where("group_id = ?", groupID).Order("created_at DESC").Order("seq DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msg, err := messageFromModel(models[i])
		if err != nil {
			return nil, err
		}
		res = append(res, msg)
	}
	return res, nil
}

// GetSettings returns the stored settings, or the compiled-in defaults
// when the record is absent. Absence is not an error.
func (s *GormStore) GetSettings() (domain.SystemSettings, error) {
	var model SettingsModel
	if err := s.db.First(&model, "id = ?", settingsKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DefaultSettings(), nil
		}
		return domain.SystemSettings{}, err
	}
	return settingsFromModel(model), nil
}

// SaveSettings upserts the singleton settings record on its fixed key.
func (s *GormStore) SaveSettings(settings domain.SystemSettings) error {
	return s.versionedUpsert(&SettingsModel{}, settingsKey, settings.Version, settingsColumns(settings), func() any {
		model := settingsToModel(settings)
		model.Version = 1
		return &model
	})
}

// CreateTicket records a new support ticket.
func (s *GormStore) CreateTicket(t domain.SupportTicket) error {
	model := ticketToModel(t)
	model.Version = 1
	return s.db.Create(&model).Error
}

// GetTicket retrieves a ticket by ID.
func (s *GormStore) GetTicket(id string) (domain.SupportTicket, bool, error) {
	var model TicketModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SupportTicket{}, false, nil
		}
		return domain.SupportTicket{}, false, err
	}
	return ticketFromModel(model), true, nil
}

// ListTickets returns all tickets, newest first.
func (s *GormStore) ListTickets() ([]domain.SupportTicket, error) {
	var models []TicketModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.SupportTicket, 0, len(models))
	for _, m := range models {
		res = append(res, ticketFromModel(m))
	}
	return res, nil
}

// SaveTicket upserts a ticket record.
func (s *GormStore) SaveTicket(t domain.SupportTicket) error {
	return s.versionedUpsert(&TicketModel{}, t.ID, t.Version, ticketColumns(t), func() any {
		model := ticketToModel(t)
		model.Version = 1
		return &model
	})
}

// versionedUpsert writes a record either conditionally (version > 0: the
// stored version must match, and is bumped) or unconditionally (version 0:
// insert, or overwrite whatever is stored while still bumping the version).
func (s *GormStore) versionedUpsert(model any, id string, version int64, columns map[string]any, fresh func() any) error {
	if version > 0 {
		columns["version"] = version + 1
		res := s.db.Model(model).Where("id = ? AND version = ?", id, version).Updates(columns)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(model).Where("id = ?", id).Updates(withVersionBump(columns))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(fresh()).Error
	})
}

func withVersionBump(columns map[string]any) map[string]any {
	out := make(map[string]any, len(columns))
	for k, v := range columns {
		out[k] = v
	}
	out["version"] = gorm.Expr("version + 1")
	return out
}

func userColumns(u domain.User) map[string]any {
	return map[string]any{
		"username":            u.Username,
		"full_name":           u.FullName,
		"email":               u.Email,
		"password_hash":       u.PasswordHash,
		"role":                string(u.Role),
		"blocked":             u.Blocked,
		"subscription":        string(u.Subscription),
		"subscription_expiry": u.SubscriptionExpiry,
		"last_login":          u.LastLogin,
	}
}

func groupColumns(g domain.Group) (map[string]any, error) {
	members, err := json.Marshal(g.Members)
	if err != nil {
		return nil, fmt.Errorf("encode members: %w", err)
	}
	return map[string]any{
		"name":        g.Name,
		"description": g.Description,
		"visibility":  string(g.Visibility),
		"ai_enabled":  g.AIEnabled,
		"members":     datatypes.JSON(members),
		"invite_code": g.InviteCode,
	}, nil
}

func settingsColumns(settings domain.SystemSettings) map[string]any {
	return map[string]any{
		"maintenance_mode":         settings.MaintenanceMode,
		"enable_ai_teacher":        settings.EnableAITeacher,
		"enable_file_uploads":      settings.EnableFileUploads,
		"enable_you_tube_analysis": settings.EnableYouTubeAnalysis,
		"enable_chat":              settings.EnableChat,
		"enable_ads":               settings.EnableAds,
		"enable_payments":          settings.EnablePayments,
		"announcement":             settings.Announcement,
	}
}

func ticketColumns(t domain.SupportTicket) map[string]any {
	return map[string]any{
		"status":      string(t.Status),
		"admin_reply": t.AdminReply,
		"subject":     t.Subject,
		"message":     t.Message,
	}
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:                 u.ID,
		Username:           u.Username,
		FullName:           u.FullName,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Role:               string(u.Role),
		Blocked:            u.Blocked,
		Subscription:       string(u.Subscription),
		SubscriptionExpiry: u.SubscriptionExpiry,
		CreatedAt:          u.CreatedAt,
		LastLogin:          u.LastLogin,
		Version:            u.Version,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:                 m.ID,
		Username:           m.Username,
		FullName:           m.FullName,
		Email:              m.Email,
		PasswordHash:       m.PasswordHash,
		Role:               domain.UserRole(m.Role),
		Blocked:            m.Blocked,
		Subscription:       domain.SubscriptionPlan(m.Subscription),
		SubscriptionExpiry: m.SubscriptionExpiry,
		CreatedAt:          m.CreatedAt,
		LastLogin:          m.LastLogin,
		Version:            m.Version,
	}
}

func groupToModel(g domain.Group) (GroupModel, error) {
	members, err := json.Marshal(g.Members)
	if err != nil {
		return GroupModel{}, fmt.Errorf("encode members: %w", err)
	}
	return GroupModel{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Visibility:  string(g.Visibility),
		AIEnabled:   g.AIEnabled,
		CreatedBy:   g.CreatedBy,
		Members:     datatypes.JSON(members),
		InviteCode:  g.InviteCode,
		CreatedAt:   g.CreatedAt,
		Version:     g.Version,
	}, nil
}

func groupFromModel(m GroupModel) (domain.Group, error) {
	var members []string
	if len(m.Members) > 0 {
		if err := json.Unmarshal(m.Members, &members); err != nil {
			return domain.Group{}, fmt.Errorf("decode members: %w", err)
		}
	}
	return domain.Group{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Visibility:  domain.GroupVisibility(m.Visibility),
		AIEnabled:   m.AIEnabled,
		CreatedBy:   m.CreatedBy,
		Members:     members,
		InviteCode:  m.InviteCode,
		CreatedAt:   m.CreatedAt,
		Version:     m.Version,
	}, nil
}

func messageToModel(msg domain.Message) (MessageModel, error) {
	// attachments go through attachmentRecord so that StorageKey, hidden
	// from API payloads, still persists
	var attachments datatypes.JSON
	if len(msg.Attachments) > 0 {
		records := make([]attachmentRecord, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			records = append(records, attachmentRecord{
				ID:         att.ID,
				Name:       att.Name,
				MimeType:   att.MimeType,
				Size:       att.Size,
				Data:       att.Data,
				StorageKey: att.StorageKey,
			})
		}
		encoded, err := json.Marshal(records)
		if err != nil {
			return MessageModel{}, fmt.Errorf("encode attachments: %w", err)
		}
		attachments = datatypes.JSON(encoded)
	}
	return MessageModel{
		ID:          msg.ID,
		GroupID:     msg.GroupID,
		UserID:      msg.UserID,
		UserName:    msg.UserName,
		Content:     msg.Content,
		IsAI:        msg.IsAI,
		Attachments: attachments,
		CreatedAt:   msg.CreatedAt,
	}, nil
}

func messageFromModel(m MessageModel) (domain.Message, error) {
	var attachments []domain.Attachment
	if len(m.Attachments) > 0 {
		var records []attachmentRecord
		if err := json.Unmarshal(m.Attachments, &records); err != nil {
			return domain.Message{}, fmt.Errorf("decode attachments: %w", err)
		}
		attachments = make([]domain.Attachment, 0, len(records))
		for _, rec := range records {
			attachments = append(attachments, domain.Attachment{
				ID:         rec.ID,
				Name:       rec.Name,
				MimeType:   rec.MimeType,
				Size:       rec.Size,
				Data:       rec.Data,
				StorageKey: rec.StorageKey,
			})
		}
	}
	return domain.Message{
		ID:          m.ID,
		GroupID:     m.GroupID,
		UserID:      m.UserID,
		UserName:    m.UserName,
		Content:     m.Content,
		IsAI:        m.IsAI,
		Attachments: attachments,
		CreatedAt:   m.CreatedAt,
	}, nil
}

func settingsToModel(settings domain.SystemSettings) SettingsModel {
	return SettingsModel{
		ID:                    settingsKey,
		MaintenanceMode:       settings.MaintenanceMode,
		EnableAITeacher:       settings.EnableAITeacher,
		EnableFileUploads:     settings.EnableFileUploads,
		EnableYouTubeAnalysis: settings.EnableYouTubeAnalysis,
		EnableChat:            settings.EnableChat,
		EnableAds:             settings.EnableAds,
		EnablePayments:        settings.EnablePayments,
		Announcement:          settings.Announcement,
		Version:               settings.Version,
	}
}

func settingsFromModel(m SettingsModel) domain.SystemSettings {
	return domain.SystemSettings{
		MaintenanceMode:       m.MaintenanceMode,
		EnableAITeacher:       m.EnableAITeacher,
		EnableFileUploads:     m.EnableFileUploads,
		EnableYouTubeAnalysis: m.EnableYouTubeAnalysis,
		EnableChat:            m.EnableChat,
		EnableAds:             m.EnableAds,
		EnablePayments:        m.EnablePayments,
		Announcement:          m.Announcement,
		Version:               m.Version,
	}
}

func ticketToModel(t domain.SupportTicket) TicketModel {
	return TicketModel{
		ID:         t.ID,
		UserID:     t.UserID,
		UserName:   t.UserName,
		Email:      t.Email,
		Subject:    t.Subject,
		Message:    t.Message,
		Status:     string(t.Status),
		AdminReply: t.AdminReply,
		CreatedAt:  t.CreatedAt,
		Version:    t.Version,
	}
}

func ticketFromModel(m TicketModel) domain.SupportTicket {
	return domain.SupportTicket{
		ID:         m.ID,
		UserID:     m.UserID,
		UserName:   m.UserName,
		Email:      m.Email,
		Subject:    m.Subject,
		Message:    m.Message,
		Status:     domain.TicketStatus(m.Status),
		AdminReply: m.AdminReply,
		CreatedAt:  m.CreatedAt,
		Version:    m.Version,
	}
}
