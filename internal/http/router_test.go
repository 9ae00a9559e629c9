package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"userhub/internal/avatar"
	"userhub/internal/config"
	"userhub/internal/domain/user"
	httpx "userhub/internal/http"
	"userhub/internal/repo/memory"
	"userhub/internal/security"
	"userhub/internal/session"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	store   *memory.UsersRepo
	avatars *avatar.Manager
	cfg     config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.Config{
		Env:               "test",
		CookieName:        "userhub_session",
		SessionSecret:     "test-secret",
		SessionTTLMinutes: 60,
	}

	store := memory.NewUsersRepo()
	sessions := session.NewManager(session.NewMemoryStore(), cfg.SessionTTL(), cfg.SessionSecret)

	avatars, err := avatar.NewManager(t.TempDir())

	if err != nil {
		t.Fatalf("avatar manager: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Store:    store,
		Sessions: sessions,
		Avatars:  avatars,
		Cfg:      cfg,
	})

	return &testServer{router: router, store: store, avatars: avatars, cfg: cfg}
}

func (s *testServer) seedUser(t *testing.T, username, password string, admin bool) {
	t.Helper()

	hash, err := security.HashPassword(password)

	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	now := time.Now().UTC()

	u := user.User{
		Username:     username,
		PasswordHash: hash,
		DisplayName:  username,
		IsAdmin:      admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(context.Background(), u); err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
}

func (s *testServer) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, w.Code, w.Body.String())
	}

	for _, c := range w.Result().Cookies() {
		if c.Name == s.cfg.CookieName {
			return c
		}
	}

	t.Fatalf("login %s: no session cookie", username)
	return nil
}

func (s *testServer) do(method, target string, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader

	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "password1", false)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "unknown user",
			body:       `{"username":"ghost","password":"whatever"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrong password",
			body:       `{"username":"alice","password":"nope"}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "success",
			body:       `{"username":"alice","password":"password1"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing fields",
			body:       `{"username":"alice"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/login", tc.body, nil)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus == http.StatusOK && strings.Contains(w.Body.String(), "passwordHash") {
				t.Error("login response leaks the password hash")
			}
		})
	}
}

func TestMeAndLogout(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "password1", false)

	if w := s.do(http.MethodGet, "/api/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /me status = %d, want 401", w.Code)
	}

	cookie := s.login(t, "alice", "password1")

	w := s.do(http.MethodGet, "/api/me", "", cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("/me status = %d body %s", w.Code, w.Body.String())
	}

	var me user.User

	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode /me: %v", err)
	}

	if me.Username != "alice" {
		t.Errorf("me.username = %q", me.Username)
	}

	if w := s.do(http.MethodPost, "/api/logout", "", cookie); w.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", w.Code)
	}

	if w := s.do(http.MethodGet, "/api/me", "", cookie); w.Code != http.StatusUnauthorized {
		t.Fatalf("/me after logout status = %d, want 401", w.Code)
	}
}

func TestCreateUserRoundTrip(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "admin", "adminpw", true)
	cookie := s.login(t, "admin", "adminpw")

	body := `{"username":"dave","password":"secret","displayName":"Dave","age":28,"gender":"Male"}`

	w := s.do(http.MethodPost, "/api/users", body, nil)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", w.Code, w.Body.String())
	}

	if strings.Contains(w.Body.String(), "secret") {
		t.Error("create response leaks the password")
	}

	w = s.do(http.MethodGet, "/api/users/dave", "", cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	var got user.User

	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.DisplayName != "Dave" || got.Age == nil || *got.Age != 28 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if got.Gender == nil || *got.Gender != "male" {
		t.Errorf("gender = %v, want normalized male", got.Gender)
	}

	if got.IsAdmin {
		t.Error("fresh users must not be admins")
	}
}

func TestCreateUserRejectsForbiddenFields(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/users", `{"username":"eve","password":"secret","isAdmin":true}`, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	if !strings.Contains(w.Body.String(), "isAdmin") {
		t.Errorf("error should name the offending field: %s", w.Body.String())
	}
}

func TestCreateUserConflictSuggestions(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "password1", false)

	w := s.do(http.MethodPost, "/api/users", `{"username":"alice","password":"secret"}`, nil)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %s)", w.Code, w.Body.String())
	}

	var resp struct {
		Error struct {
			Details struct {
				Suggestions []string `json:"suggestions"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	suggestions := resp.Error.Details.Suggestions

	if len(suggestions) != 3 {
		t.Fatalf("got %d suggestions, want 3: %v", len(suggestions), suggestions)
	}

	seen := make(map[string]struct{})

	for _, sug := range suggestions {
		if !strings.HasPrefix(sug, "alice") || sug == "alice" {
			t.Errorf("suspicious suggestion %q", sug)
		}

		if _, err := s.store.GetByUsername(context.Background(), sug); err == nil {
			t.Errorf("suggestion %q collides with an existing user", sug)
		}

		if _, dup := seen[sug]; dup {
			t.Errorf("duplicate suggestion %q", sug)
		}
		seen[sug] = struct{}{}
	}
}

func TestUpdateSparsePatch(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "password1", false)
	cookie := s.login(t, "alice", "password1")

	before, _ := s.store.GetByUsername(context.Background(), "alice")

	w := s.do(http.MethodPatch, "/api/users/alice", `{"displayName":"Alice Prime"}`, cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d body %s", w.Code, w.Body.String())
	}

	after, _ := s.store.GetByUsername(context.Background(), "alice")

	if after.DisplayName != "Alice Prime" {
		t.Errorf("displayName = %q", after.DisplayName)
	}
	if after.PasswordHash != before.PasswordHash {
		t.Error("password must be untouched")
	}
	if after.IsAdmin != before.IsAdmin || after.Age != nil || after.Gender != nil {
		t.Error("unrelated fields changed")
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Error("updatedAt must advance")
	}
}

func TestAdminFieldGuardMatrix(t *testing.T) {
	tests := []struct {
		name       string
		caller     string
		target     string
		wantStatus int
	}{
		{
			name:       "admin changing own flag is forbidden",
			caller:     "root",
			target:     "root",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "non-admin touching isAdmin is forbidden",
			caller:     "alice",
			target:     "bob",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin promoting another user succeeds",
			caller:     "root",
			target:     "bob",
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			s.seedUser(t, "root", "rootpw", true)
			s.seedUser(t, "alice", "alicepw", false)
			s.seedUser(t, "bob", "bobpw", false)

			var password string
			switch tc.caller {
			case "root":
				password = "rootpw"
			case "alice":
				password = "alicepw"
			default:
				password = "bobpw"
			}

			cookie := s.login(t, tc.caller, password)

			w := s.do(http.MethodPatch, "/api/users/"+tc.target, `{"isAdmin":true}`, cookie)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus == http.StatusOK {
				got, _ := s.store.GetByUsername(context.Background(), tc.target)

				if !got.IsAdmin {
					t.Error("target should have been promoted")
				}
			}
		})
	}
}

func TestUpdateForbiddenForStrangers(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "alicepw", false)
	s.seedUser(t, "bob", "bobpw", false)

	cookie := s.login(t, "alice", "alicepw")

	w := s.do(http.MethodPatch, "/api/users/bob", `{"displayName":"Hacked"}`, cookie)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "root", "rootpw", true)
	s.seedUser(t, "bob", "bobpw", false)

	cookie := s.login(t, "root", "rootpw")

	if w := s.do(http.MethodDelete, "/api/users/bob", "", cookie); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	if w := s.do(http.MethodDelete, "/api/users/bob", "", cookie); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestDeletedUserSessionIsInvalidated(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "root", "rootpw", true)
	s.seedUser(t, "bob", "bobpw", false)

	bobCookie := s.login(t, "bob", "bobpw")
	rootCookie := s.login(t, "root", "rootpw")

	if w := s.do(http.MethodDelete, "/api/users/bob", "", rootCookie); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}

	if w := s.do(http.MethodGet, "/api/me", "", bobCookie); w.Code != http.StatusUnauthorized {
		t.Fatalf("dangling session status = %d, want 401", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "root", "rootpw", true)

	for i, age := range []int{20, 30, 40, 50} {
		a := age
		now := time.Now().UTC()

		u := user.User{
			Username:     fmt.Sprintf("u%d", i),
			PasswordHash: "h",
			DisplayName:  fmt.Sprintf("u%d", i),
			Age:          &a,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.store.Create(context.Background(), u); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := s.do(http.MethodGet, "/api/users/stats", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}

	var stats user.Stats

	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if stats.TotalUsers != 5 || stats.AdminCount != 1 {
		t.Errorf("totals = %d/%d", stats.TotalUsers, stats.AdminCount)
	}

	if stats.AgeStats == nil {
		t.Fatal("expected ageStats")
	}

	if stats.AgeStats.Median != 35.0 || stats.AgeStats.Average != 35.0 {
		t.Errorf("ageStats = %+v", stats.AgeStats)
	}

	if stats.AgeStats.Min != 20 || stats.AgeStats.Max != 50 {
		t.Errorf("min/max = %d/%d", stats.AgeStats.Min, stats.AgeStats.Max)
	}
}

func TestListRequiresSession(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "password1", false)

	if w := s.do(http.MethodGet, "/api/users", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status = %d, want 401", w.Code)
	}

	cookie := s.login(t, "alice", "password1")

	w := s.do(http.MethodGet, "/api/users", "", cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}

	if strings.Contains(w.Body.String(), "passwordHash") {
		t.Error("list leaks password hashes")
	}
}

// avatar helpers

func pngUpload(t *testing.T, field, filename, contentType string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	hdr["Content-Type"] = []string{contentType}

	part, err := mw.CreatePart(hdr)

	if err != nil {
		t.Fatalf("create part: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	if err := png.Encode(part, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	return &body, mw.FormDataContentType()
}

func (s *testServer) uploadAvatar(t *testing.T, username string, cookie *http.Cookie, field, filename, declaredType string) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := pngUpload(t, field, filename, declaredType)

	req := httptest.NewRequest(http.MethodPost, "/api/users/"+username+"/avatar", body)
	req.Header.Set("Content-Type", contentType)

	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

func TestAvatarUploadReplacesPrevious(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "password1", false)
	cookie := s.login(t, "alice", "password1")

	w := s.uploadAvatar(t, "alice", cookie, "avatar", "one.png", "image/png")

	if w.Code != http.StatusOK {
		t.Fatalf("first upload status = %d body %s", w.Code, w.Body.String())
	}

	first, _ := s.store.GetByUsername(context.Background(), "alice")

	if first.ProfilePhoto == nil {
		t.Fatal("profilePhoto not set")
	}

	firstOnDisk := filepath.Join(s.avatars.Dir(), path.Base(*first.ProfilePhoto))

	if _, err := os.Stat(firstOnDisk); err != nil {
		t.Fatalf("first avatar missing on disk: %v", err)
	}

	// filenames carry a millisecond timestamp
	time.Sleep(2 * time.Millisecond)

	w = s.uploadAvatar(t, "alice", cookie, "avatar", "two.png", "image/png")

	if w.Code != http.StatusOK {
		t.Fatalf("second upload status = %d", w.Code)
	}

	second, _ := s.store.GetByUsername(context.Background(), "alice")

	if second.ProfilePhoto == nil || *second.ProfilePhoto == *first.ProfilePhoto {
		t.Fatal("profilePhoto should point at the new file")
	}

	if _, err := os.Stat(firstOnDisk); !os.IsNotExist(err) {
		t.Error("previous avatar file should be deleted")
	}
}

func TestAvatarUploadRejectsNonImage(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "password1", false)
	cookie := s.login(t, "alice", "password1")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("avatar", "notes.txt")

	if err != nil {
		t.Fatalf("create form file: %v", err)
	}

	if _, err := io.WriteString(part, "plain text, not an image"); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/users/alice/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
	}

	entries, err := os.ReadDir(s.avatars.Dir())

	if err != nil {
		t.Fatalf("readdir: %v", err)
	}

	if len(entries) != 0 {
		t.Error("rejected upload must not leave files behind")
	}
}

func TestAvatarUploadForbiddenForStrangers(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "alicepw", false)
	s.seedUser(t, "bob", "bobpw", false)

	cookie := s.login(t, "alice", "alicepw")

	w := s.uploadAvatar(t, "bob", cookie, "avatar", "sneaky.png", "image/png")

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestAvatarDelete(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "alice", "password1", false)
	cookie := s.login(t, "alice", "password1")

	w := s.uploadAvatar(t, "alice", cookie, "avatar", "pic.png", "image/png")

	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d", w.Code)
	}

	uploaded, _ := s.store.GetByUsername(context.Background(), "alice")
	onDisk := filepath.Join(s.avatars.Dir(), path.Base(*uploaded.ProfilePhoto))

	w = s.do(http.MethodDelete, "/api/users/alice/avatar", "", cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d body %s", w.Code, w.Body.String())
	}

	after, _ := s.store.GetByUsername(context.Background(), "alice")

	if after.ProfilePhoto != nil {
		t.Error("profilePhoto should be cleared")
	}

	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Error("avatar file should be removed")
	}

	// deleting again is fine: the record simply has no photo
	if w := s.do(http.MethodDelete, "/api/users/alice/avatar", "", cookie); w.Code != http.StatusOK {
		t.Fatalf("second delete status = %d", w.Code)
	}
}
