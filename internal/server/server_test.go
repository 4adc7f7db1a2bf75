package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"edunexus/internal/app"
	"edunexus/pkg/domain"
	"edunexus/pkg/store"
)

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	a := app.New(app.Config{Store: st, Sessions: st})
	ts := httptest.NewServer(New(Config{App: a}).Router())
	t.Cleanup(ts.Close)
	return ts, st
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

type authPayload struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func register(t *testing.T, ts *httptest.Server, username string) authPayload {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]string{"username": username})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %q status = %d", username, resp.StatusCode)
	}
	return decodeBody[authPayload](t, resp)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSettingsArePublic(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/settings")
	if err != nil {
		t.Fatalf("GET /api/settings: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 without auth", resp.StatusCode)
	}
	settings := decodeBody[settingsResponse](t, resp)
	if settings.Announcement == "" {
		t.Fatal("expected default announcement")
	}
	if settings.Poll.SettingsSeconds != 10 || settings.Poll.MessagesSeconds != 3 {
		t.Fatalf("poll intervals = %+v, want defaults 10/3", settings.Poll)
	}
}

func TestRegisterLoginAndSessionRestore(t *testing.T) {
	ts, _ := newTestServer(t)

	created := register(t, ts, "alice")
	if created.Token == "" || created.User.Role != domain.RoleStudent {
		t.Fatalf("unexpected register payload: %+v", created)
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/users/me", created.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/users/me status = %d", resp.StatusCode)
	}
	me := decodeBody[domain.User](t, resp)
	if me.ID != created.User.ID {
		t.Fatalf("restored user %q, want %q", me.ID, created.User.ID)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", resp.StatusCode)
	}
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts, _ := newTestServer(t)
	for _, path := range []string{"/api/users/me", "/api/groups", "/api/tickets"} {
		resp := doJSON(t, http.MethodGet, ts.URL+path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestAdminEndpointsRejectStudents(t *testing.T) {
	ts, _ := newTestServer(t)
	student := register(t, ts, "alice")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/admin/users", student.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("student /api/admin/users status = %d, want 403", resp.StatusCode)
	}
}

func TestGroupAndChatFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/groups", alice.Token, createGroupRequest{
		Name: "Physics", Visibility: domain.GroupPublic,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group status = %d", resp.StatusCode)
	}
	group := decodeBody[domain.Group](t, resp)

	// bob must join before posting
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/groups/"+group.ID+"/messages", bob.Token, sendMessageRequest{Content: "hi"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-member post status = %d, want 403", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/groups/"+group.ID+"/join", bob.Token, joinRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/groups/"+group.ID+"/messages", bob.Token, sendMessageRequest{Content: "hi"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post message status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/groups/"+group.ID+"/messages", alice.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages status = %d", resp.StatusCode)
	}
	page := decodeBody[struct {
		Items []domain.Message `json:"items"`
		Count int              `json:"count"`
	}](t, resp)
	if page.Count != 1 || page.Items[0].Content != "hi" {
		t.Fatalf("unexpected message page: %+v", page)
	}
}

func TestAttachmentDownloadRoute(t *testing.T) {
	ts, _ := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/groups", alice.Token, createGroupRequest{
		Name: "Biology", Visibility: domain.GroupPrivate,
	})
	group := decodeBody[domain.Group](t, resp)

	payload := []byte("cell membrane transport summary")
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/groups/"+group.ID+"/messages", alice.Token, sendMessageRequest{
		Content: "lecture notes",
		Attachments: []domain.Attachment{{
			Name:     "notes.txt",
			MimeType: "text/plain",
			Data:     base64.StdEncoding.EncodeToString(payload),
		}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post message status = %d", resp.StatusCode)
	}
	page := decodeBody[struct {
		Items []domain.Message `json:"items"`
	}](t, resp)
	msg := page.Items[0]
	url := fmt.Sprintf("%s/api/groups/%s/messages/%s/attachments/%s", ts.URL, group.ID, msg.ID, msg.Attachments[0].ID)

	resp = doJSON(t, http.MethodGet, url, alice.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Fatalf("downloaded %q, want original payload", body)
	}

	resp = doJSON(t, http.MethodGet, url, bob.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-member download status = %d, want 403", resp.StatusCode)
	}

	missing := fmt.Sprintf("%s/api/groups/%s/messages/%s/attachments/att_missing", ts.URL, group.ID, msg.ID)
	resp = doJSON(t, http.MethodGet, missing, alice.Token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown attachment status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminSettingsUpdateAndConflict(t *testing.T) {
	ts, _ := newTestServer(t)
	admin := register(t, ts, "ops-admin")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/settings", "", nil)
	current := decodeBody[domain.SystemSettings](t, resp)

	current.Announcement = "Scheduled downtime tonight"
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/admin/settings", admin.Token, current)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings update status = %d", resp.StatusCode)
	}
	stored := decodeBody[domain.SystemSettings](t, resp)
	if stored.Announcement != current.Announcement || stored.Version != current.Version+1 {
		t.Fatalf("unexpected stored settings: %+v", stored)
	}

	// a second editor moves the record forward
	next := stored
	next.EnableAds = false
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/admin/settings", admin.Token, next)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second settings update status = %d", resp.StatusCode)
	}

	// replaying the first editor's now-stale version must fail the write
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/admin/settings", admin.Token, stored)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale settings update status = %d, want 409", resp.StatusCode)
	}
}

func TestAILabShorthandRoute(t *testing.T) {
	ts, _ := newTestServer(t)
	alice := register(t, ts, "alice")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/chat", alice.Token, sendMessageRequest{Content: "explain osmosis"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("lab post status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/chat", alice.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lab list status = %d", resp.StatusCode)
	}
	page := decodeBody[struct {
		Items []domain.Message `json:"items"`
	}](t, resp)
	// no generator is configured, so the tutor answers with its
	// not-configured notice alongside the question
	if len(page.Items) != 2 || !page.Items[1].IsAI {
		t.Fatalf("lab history = %+v, want question + tutor notice", page.Items)
	}
}

func TestExtractHonorsUploadToggle(t *testing.T) {
	ts, st := newTestServer(t)
	alice := register(t, ts, "alice")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/extract", alice.Token, map[string]string{
		"data": "aGVsbG8gd29ybGQ=", "type": "text/plain",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("extract status = %d", resp.StatusCode)
	}
	out := decodeBody[map[string]string](t, resp)
	if out["text"] != "hello world" {
		t.Fatalf("extracted text = %q", out["text"])
	}

	settings, _ := st.GetSettings()
	settings.EnableFileUploads = false
	settings.Version = 0
	if err := st.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/extract", alice.Token, map[string]string{
		"data": "aGVsbG8=", "type": "text/plain",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("extract with uploads off status = %d, want 403", resp.StatusCode)
	}
}

func TestAuthRateLimiting(t *testing.T) {
	st := store.NewMemoryStore()
	a := app.New(app.Config{Store: st, Sessions: st})
	ts := httptest.NewServer(New(Config{App: a, AuthLimiter: denyAllLimiter{}}).Router())
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("limited login status = %d, want 429", resp.StatusCode)
	}
}

func TestMaintenanceModeLockout(t *testing.T) {
	ts, st := newTestServer(t)
	student := register(t, ts, "alice")
	_ = student

	settings, _ := st.GetSettings()
	settings.MaintenanceMode = true
	settings.Version = 0
	if err := st.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{"username": "alice"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("maintenance login status = %d, want 503", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/guest", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("maintenance guest status = %d, want 503", resp.StatusCode)
	}
}

func TestBlockedUserLosesSession(t *testing.T) {
	ts, _ := newTestServer(t)
	admin := register(t, ts, "ops-admin")
	alice := register(t, ts, "alice")

	url := fmt.Sprintf("%s/api/admin/users/%s", ts.URL, alice.User.ID)
	blocked := true
	resp := doJSON(t, http.MethodPatch, url, admin.Token, adminUserUpdateRequest{Blocked: &blocked})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("block status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/users/me", alice.Token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("blocked session status = %d, want 401", resp.StatusCode)
	}
}
