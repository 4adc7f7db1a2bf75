package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"edunexus/pkg/ai"
	"edunexus/pkg/domain"
	"edunexus/pkg/store"
)

type fakeGenerator struct {
	lastSystem  string
	lastHistory []ai.Turn
	lastPrompt  string
	reply       string
	err         error
}

func (f *fakeGenerator) GenerateText(_ context.Context, system string, history []ai.Turn, prompt string) (string, error) {
	f.lastSystem = system
	f.lastHistory = history
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	if f.reply == "" {
		return "Let's work through that together.", nil
	}
	return f.reply, nil
}

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *fakeGenerator) {
	t.Helper()
	st := store.NewMemoryStore()
	gen := &fakeGenerator{}
	a := New(Config{Store: st, Sessions: st, Generator: gen})
	return a, st, gen
}

func TestRegisterAssignsRoleFromUsername(t *testing.T) {
	a, _, _ := newTestApp(t)

	cases := []struct {
		username string
		want     domain.UserRole
	}{
		{"the_founder", domain.RoleFounder},
		{"site-admin", domain.RoleAdmin},
		{"math_teacher", domain.RoleTeacher},
		{"alice", domain.RoleStudent},
	}
	for _, tc := range cases {
		user, token, err := a.Register(tc.username, "", "", "")
		if err != nil {
			t.Fatalf("Register(%q): %v", tc.username, err)
		}
		if user.Role != tc.want {
			t.Fatalf("Register(%q) role = %s, want %s", tc.username, user.Role, tc.want)
		}
		if token == "" {
			t.Fatalf("Register(%q) returned empty token", tc.username)
		}
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	a, _, _ := newTestApp(t)

	if _, _, err := a.Register("alice", "", "", ""); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, _, err := a.Register("alice", "", "", ""); !errors.Is(err, store.ErrUsernameTaken) {
		t.Fatalf("second Register err = %v, want ErrUsernameTaken", err)
	}
}

func TestRegisterEnforcesPasswordPolicy(t *testing.T) {
	a, _, _ := newTestApp(t)

	if _, _, err := a.Register("bob", "short", "", ""); err == nil {
		t.Fatal("Register with weak password succeeded")
	}
	user, _, err := a.Register("bob", "long-enough-secret", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.PasswordHash == "" || user.PasswordHash == "long-enough-secret" {
		t.Fatal("password not stored as a hash")
	}
}

func TestLoginChecksPasswordWhenSet(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, _, err := a.Register("bob", "long-enough-secret", "", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := a.Login("bob", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := a.Login("bob", "long-enough-secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestMaintenanceModeGatesNonAdmins(t *testing.T) {
	a, st, _ := newTestApp(t)

	student, _, err := a.Register("alice", "", "", "")
	if err != nil {
		t.Fatalf("Register student: %v", err)
	}
	adm, _, err := a.Register("ops-admin", "", "", "")
	if err != nil {
		t.Fatalf("Register admin: %v", err)
	}

	settings, _ := st.GetSettings()
	settings.MaintenanceMode = true
	settings.Version = 0
	if err := st.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	if _, _, err := a.Login(student.Username, ""); !errors.Is(err, ErrMaintenanceMode) {
		t.Fatalf("student login err = %v, want ErrMaintenanceMode", err)
	}
	if _, _, err := a.Login(adm.Username, ""); err != nil {
		t.Fatalf("admin login during maintenance: %v", err)
	}
	if _, _, err := a.GuestLogin(); !errors.Is(err, ErrMaintenanceMode) {
		t.Fatalf("guest login err = %v, want ErrMaintenanceMode", err)
	}
	if _, _, err := a.Register("carol", "", "", ""); !errors.Is(err, ErrRegistrationClosed) {
		t.Fatalf("register err = %v, want ErrRegistrationClosed", err)
	}
}

func TestUserFromTokenDropsBlockedAccounts(t *testing.T) {
	a, _, _ := newTestApp(t)

	user, token, err := a.Register("alice", "", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if restored, ok, _ := a.UserFromToken(token); !ok || restored.ID != user.ID {
		t.Fatal("expected session restore before block")
	}

	admin, _, err := a.Register("ops-admin", "", "", "")
	if err != nil {
		t.Fatalf("Register admin: %v", err)
	}
	if _, err := a.SetUserBlocked(admin, user.ID, true); err != nil {
		t.Fatalf("SetUserBlocked: %v", err)
	}

	if _, ok, _ := a.UserFromToken(token); ok {
		t.Fatal("blocked account restored from session")
	}
	if _, _, err := a.Login("alice", ""); !errors.Is(err, ErrAccountBlocked) {
		t.Fatalf("blocked login err = %v, want ErrAccountBlocked", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	a, _, _ := newTestApp(t)

	_, token, err := a.Register("alice", "", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := a.Logout(token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok, _ := a.UserFromToken(token); ok {
		t.Fatal("session survived logout")
	}
}

func TestGroupVisibilityAndInviteFlow(t *testing.T) {
	a, _, _ := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "")
	bob, _, _ := a.Register("bob", "", "", "")

	public, err := a.CreateGroup(alice, "Physics", "open room", domain.GroupPublic, false)
	if err != nil {
		t.Fatalf("CreateGroup public: %v", err)
	}
	private, err := a.CreateGroup(alice, "Study Cell", "", domain.GroupPrivate, true)
	if err != nil {
		t.Fatalf("CreateGroup private: %v", err)
	}
	if private.InviteCode == "" {
		t.Fatal("private group has no invite code")
	}

	visible, err := a.VisibleGroups(bob)
	if err != nil {
		t.Fatalf("VisibleGroups: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != public.ID {
		t.Fatalf("bob sees %d groups, want only the public one", len(visible))
	}

	if _, err := a.JoinGroup(bob, private.ID, "WRONG"); !errors.Is(err, ErrInvalidInviteCode) {
		t.Fatalf("join with bad code err = %v, want ErrInvalidInviteCode", err)
	}
	joined, err := a.JoinByInviteCode(bob, strings.ToLower(private.InviteCode))
	if err != nil {
		t.Fatalf("JoinByInviteCode: %v", err)
	}
	if !joined.HasMember(bob.ID) {
		t.Fatal("bob missing from member list after join")
	}

	left, err := a.LeaveGroup(bob, private.ID)
	if err != nil {
		t.Fatalf("LeaveGroup: %v", err)
	}
	if left.HasMember(bob.ID) {
		t.Fatal("bob still a member after leave")
	}
}

func TestDeleteGroupRequiresOwnershipOrAdmin(t *testing.T) {
	a, st, _ := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "")
	bob, _, _ := a.Register("bob", "", "", "")
	admin, _, _ := a.Register("ops-admin", "", "", "")

	group, _ := a.CreateGroup(alice, "Physics", "", domain.GroupPublic, false)

	if err := a.DeleteGroup(context.Background(), bob, group.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger delete err = %v, want ErrForbidden", err)
	}
	if err := a.DeleteGroup(context.Background(), admin, group.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, ok, _ := st.GetGroup(group.ID); ok {
		t.Fatal("group still present after delete")
	}
}

func TestSendMessageMentionTriggersTutor(t *testing.T) {
	a, _, gen := newTestApp(t)
	gen.reply = "Gravity pulls masses together."

	alice, _, _ := a.Register("alice", "", "Alice Lidell", "")
	group, _ := a.CreateGroup(alice, "Physics", "", domain.GroupPublic, true)

	appended, err := a.SendMessage(context.Background(), alice, group.ID, "hello everyone", nil, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(appended) != 1 {
		t.Fatalf("plain message appended %d messages, want 1", len(appended))
	}

	appended, err = a.SendMessage(context.Background(), alice, group.ID, "@ai what is gravity?", nil, nil)
	if err != nil {
		t.Fatalf("SendMessage with mention: %v", err)
	}
	if len(appended) != 2 {
		t.Fatalf("mention appended %d messages, want user + tutor", len(appended))
	}
	reply := appended[1]
	if !reply.IsAI || reply.UserID != domain.AITeacherID || reply.UserName != domain.AITeacherName {
		t.Fatalf("tutor message misattributed: %+v", reply)
	}
	if reply.Content != gen.reply {
		t.Fatalf("tutor content = %q, want %q", reply.Content, gen.reply)
	}
	if strings.Contains(gen.lastPrompt, "@ai") {
		t.Fatalf("mention leaked into prompt: %q", gen.lastPrompt)
	}
}

func TestSendMessageNoTutorWithoutMentionOrAIGroup(t *testing.T) {
	a, _, _ := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "")
	plain, _ := a.CreateGroup(alice, "Chess Club", "", domain.GroupPublic, false)

	appended, err := a.SendMessage(context.Background(), alice, plain.ID, "@ai hello?", nil, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(appended) != 1 {
		t.Fatal("tutor answered in a group without AI enabled")
	}
}

func TestAILabAlwaysAnswersAndIsPerUser(t *testing.T) {
	a, _, _ := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "")
	bob, _, _ := a.Register("bob", "", "", "")

	appended, err := a.SendMessage(context.Background(), alice, domain.AILabGroupID, "explain entropy", nil, nil)
	if err != nil {
		t.Fatalf("SendMessage lab: %v", err)
	}
	if len(appended) != 2 || !appended[1].IsAI {
		t.Fatalf("lab appended %d messages, want question + answer", len(appended))
	}

	bobMsgs, err := a.GroupMessages(bob, domain.AILabGroupID)
	if err != nil {
		t.Fatalf("GroupMessages lab: %v", err)
	}
	if len(bobMsgs) != 0 {
		t.Fatalf("bob sees %d of alice's lab messages, want 0", len(bobMsgs))
	}
	aliceMsgs, _ := a.GroupMessages(alice, domain.AILabGroupID)
	if len(aliceMsgs) != 2 {
		t.Fatalf("alice sees %d lab messages, want 2", len(aliceMsgs))
	}
}

func TestTutorFailureIsSoft(t *testing.T) {
	a, _, gen := newTestApp(t)
	gen.err = errors.New("provider down")

	alice, _, _ := a.Register("alice", "", "", "")
	appended, err := a.SendMessage(context.Background(), alice, domain.AILabGroupID, "hello", nil, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(appended) != 2 {
		t.Fatalf("appended %d messages, want committed question + fallback", len(appended))
	}
	if appended[1].Content != tutorFallback {
		t.Fatalf("fallback content = %q", appended[1].Content)
	}
}

func TestSendMessageHonorsKillSwitches(t *testing.T) {
	a, st, _ := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "")
	group, _ := a.CreateGroup(alice, "Physics", "", domain.GroupPublic, true)

	settings, _ := st.GetSettings()
	settings.EnableChat = false
	settings.Version = 0
	if err := st.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	if _, err := a.SendMessage(context.Background(), alice, group.ID, "hi", nil, nil); !errors.Is(err, ErrChatDisabled) {
		t.Fatalf("disabled chat err = %v, want ErrChatDisabled", err)
	}
	// The lab is a personal surface and stays open when group chat is off.
	if _, err := a.SendMessage(context.Background(), alice, domain.AILabGroupID, "hi", nil, nil); err != nil {
		t.Fatalf("lab message with chat disabled: %v", err)
	}

	settings, _ = st.GetSettings()
	settings.EnableChat = true
	settings.EnableAITeacher = false
	settings.Version = 0
	if err := st.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	appended, err := a.SendMessage(context.Background(), alice, group.ID, "@ai hello", nil, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(appended) != 1 {
		t.Fatal("tutor answered while disabled")
	}
}

func TestTutorHistoryIsBounded(t *testing.T) {
	a, _, gen := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "")
	for i := 0; i < 10; i++ {
		if _, err := a.SendMessage(context.Background(), alice, domain.AILabGroupID, "turn", nil, nil); err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
	}
	if len(gen.lastHistory) > defaultHistoryLimit {
		t.Fatalf("history length = %d, want <= %d", len(gen.lastHistory), defaultHistoryLimit)
	}
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func TestOffloadedAttachmentStaysDownloadable(t *testing.T) {
	st := store.NewMemoryStore()
	objects := newFakeObjectStore()
	a := New(Config{Store: st, Sessions: st, Objects: objects, AttachmentInlineLimit: 4})

	alice, _, _ := a.Register("alice", "", "", "")
	group, _ := a.CreateGroup(alice, "Physics", "", domain.GroupPublic, false)

	payload := []byte("syllabus for the midterm review week")
	appended, err := a.SendMessage(context.Background(), alice, group.ID, "notes attached", []domain.Attachment{{
		Name:     "notes.txt",
		MimeType: "text/plain",
		Data:     base64.StdEncoding.EncodeToString(payload),
	}}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	att := appended[0].Attachments[0]
	if att.Data != "" || att.StorageKey == "" {
		t.Fatalf("attachment above the inline limit not offloaded: %+v", att)
	}
	if objects.len() != 1 {
		t.Fatalf("object store holds %d objects, want 1", objects.len())
	}

	got, data, err := a.DownloadAttachment(context.Background(), alice, group.ID, appended[0].ID, att.ID)
	if err != nil {
		t.Fatalf("DownloadAttachment: %v", err)
	}
	if got.Name != "notes.txt" || !bytes.Equal(data, payload) {
		t.Fatalf("downloaded %q (%d bytes), want original payload", got.Name, len(data))
	}

	// the payload survives a store round-trip, not just the in-process copy
	stored, ok, _ := st.GetMessage(group.ID, appended[0].ID)
	if !ok || stored.Attachments[0].StorageKey != att.StorageKey {
		t.Fatalf("stored attachment lost its storage key: %+v", stored.Attachments)
	}
}

func TestSmallAttachmentStaysInline(t *testing.T) {
	st := store.NewMemoryStore()
	objects := newFakeObjectStore()
	a := New(Config{Store: st, Sessions: st, Objects: objects, AttachmentInlineLimit: 1024})

	alice, _, _ := a.Register("alice", "", "", "")
	appended, err := a.SendMessage(context.Background(), alice, domain.AILabGroupID, "tiny file", []domain.Attachment{{
		Name:     "tiny.txt",
		MimeType: "text/plain",
		Data:     base64.StdEncoding.EncodeToString([]byte("ok")),
	}}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	att := appended[0].Attachments[0]
	if att.Data == "" || att.StorageKey != "" {
		t.Fatalf("small attachment was offloaded: %+v", att)
	}
	if objects.len() != 0 {
		t.Fatalf("object store holds %d objects, want 0", objects.len())
	}
	_, data, err := a.DownloadAttachment(context.Background(), alice, domain.AILabGroupID, appended[0].ID, att.ID)
	if err != nil || string(data) != "ok" {
		t.Fatalf("DownloadAttachment = %q, %v", data, err)
	}
}

func TestDownloadAttachmentEnforcesAccess(t *testing.T) {
	a, _, _ := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "")
	bob, _, _ := a.Register("bob", "", "", "")
	private, _ := a.CreateGroup(alice, "Study Cell", "", domain.GroupPrivate, false)

	appended, err := a.SendMessage(context.Background(), alice, private.ID, "secret", []domain.Attachment{{
		Name: "s.txt", MimeType: "text/plain", Data: base64.StdEncoding.EncodeToString([]byte("hush")),
	}}, nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	att := appended[0].Attachments[0]

	if _, _, err := a.DownloadAttachment(context.Background(), bob, private.ID, appended[0].ID, att.ID); !errors.Is(err, ErrNotGroupMember) {
		t.Fatalf("outsider download err = %v, want ErrNotGroupMember", err)
	}
	if _, _, err := a.DownloadAttachment(context.Background(), alice, private.ID, appended[0].ID, "att_missing"); !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("missing attachment err = %v, want ErrAttachmentNotFound", err)
	}
}

func TestDeleteGroupRemovesOffloadedObjects(t *testing.T) {
	st := store.NewMemoryStore()
	objects := newFakeObjectStore()
	a := New(Config{Store: st, Sessions: st, Objects: objects, AttachmentInlineLimit: 4})

	alice, _, _ := a.Register("alice", "", "", "")
	group, _ := a.CreateGroup(alice, "Physics", "", domain.GroupPublic, false)

	if _, err := a.SendMessage(context.Background(), alice, group.ID, "big file", []domain.Attachment{{
		Name: "big.txt", MimeType: "text/plain",
		Data: base64.StdEncoding.EncodeToString([]byte("this payload exceeds the inline limit")),
	}}, nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if objects.len() != 1 {
		t.Fatalf("object store holds %d objects before delete, want 1", objects.len())
	}

	if err := a.DeleteGroup(context.Background(), alice, group.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if objects.len() != 0 {
		t.Fatalf("object store holds %d objects after delete, want 0", objects.len())
	}
}

func TestTicketLifecycle(t *testing.T) {
	a, _, _ := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "alice@example.com")
	admin, _, _ := a.Register("ops-admin", "", "", "")

	ticket, err := a.CreateTicket(alice, "Billing", "I was charged twice")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Status != domain.TicketOpen || ticket.Email != "alice@example.com" {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}

	if _, err := a.AllTickets(alice); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student listing all tickets err = %v, want ErrForbidden", err)
	}
	all, err := a.AllTickets(admin)
	if err != nil || len(all) != 1 {
		t.Fatalf("AllTickets = %d tickets, err %v", len(all), err)
	}

	resolved, err := a.ResolveTicket(admin, ticket.ID, "Refund issued")
	if err != nil {
		t.Fatalf("ResolveTicket: %v", err)
	}
	if resolved.Status != domain.TicketResolved || resolved.AdminReply != "Refund issued" {
		t.Fatalf("unexpected resolved ticket: %+v", resolved)
	}
	if _, err := a.ResolveTicket(admin, ticket.ID, "again"); !errors.Is(err, ErrTicketResolved) {
		t.Fatalf("second resolve err = %v, want ErrTicketResolved", err)
	}

	mine, err := a.UserTickets(alice)
	if err != nil || len(mine) != 1 || mine[0].AdminReply != "Refund issued" {
		t.Fatalf("UserTickets = %+v, err %v", mine, err)
	}
}

func TestAdminProtections(t *testing.T) {
	a, _, _ := newTestApp(t)

	founder, _, _ := a.Register("the_founder", "", "", "")
	admin, _, _ := a.Register("ops-admin", "", "", "")
	student, _, _ := a.Register("alice", "", "", "")

	if _, err := a.SetUserBlocked(student, admin.ID, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student blocking err = %v, want ErrForbidden", err)
	}
	if _, err := a.SetUserBlocked(admin, founder.ID, true); !errors.Is(err, ErrFounderProtected) {
		t.Fatalf("blocking founder err = %v, want ErrFounderProtected", err)
	}
	if _, err := a.SetUserBlocked(admin, admin.ID, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self-block err = %v, want ErrForbidden", err)
	}
	if err := a.DeleteUser(admin, founder.ID); !errors.Is(err, ErrFounderProtected) {
		t.Fatalf("deleting founder err = %v, want ErrFounderProtected", err)
	}
	if err := a.DeleteUser(admin, student.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}

func TestUpdateSettingsReturnsStoredRecord(t *testing.T) {
	a, _, _ := newTestApp(t)

	admin, _, _ := a.Register("ops-admin", "", "", "")
	student, _, _ := a.Register("alice", "", "", "")

	current, _ := a.Settings()
	current.Announcement = "Exam week: servers under load"
	current.EnableAds = false

	if _, err := a.UpdateSettings(student, current); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student update err = %v, want ErrForbidden", err)
	}
	stored, err := a.UpdateSettings(admin, current)
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if stored.Announcement != current.Announcement || stored.EnableAds {
		t.Fatalf("stored settings do not reflect the update: %+v", stored)
	}
	if stored.Version != current.Version+1 {
		t.Fatalf("stored version = %d, want %d", stored.Version, current.Version+1)
	}
}

func TestUpgradeSubscriptionGatedOnPayments(t *testing.T) {
	a, st, _ := newTestApp(t)

	alice, _, _ := a.Register("alice", "", "", "")

	upgraded, err := a.UpgradeSubscription(alice, domain.PlanPro)
	if err != nil {
		t.Fatalf("UpgradeSubscription: %v", err)
	}
	if upgraded.Subscription != domain.PlanPro || upgraded.SubscriptionExpiry == nil {
		t.Fatalf("unexpected upgrade result: %+v", upgraded)
	}

	settings, _ := st.GetSettings()
	settings.EnablePayments = false
	settings.Version = 0
	if err := st.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if _, err := a.UpgradeSubscription(upgraded, domain.PlanEnterprise); !errors.Is(err, ErrPaymentsDisabled) {
		t.Fatalf("payments off err = %v, want ErrPaymentsDisabled", err)
	}
}
