package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/mdnotebook/internal/apperr"
	"github.com/starford/mdnotebook/internal/lifecycle"
	"github.com/starford/mdnotebook/internal/testutil"
	"github.com/starford/mdnotebook/internal/window"
)

type fakeShell struct {
	mu     sync.Mutex
	menus  []string
	clicks []string
	closes int
}

func (f *fakeShell) HandleMenu(id string) error {
	switch id {
	case lifecycle.MenuShowHide, lifecycle.MenuNewNote, lifecycle.MenuDailyNote, lifecycle.MenuQuit:
	default:
		return apperr.ErrValidation
	}
	f.mu.Lock()
	f.menus = append(f.menus, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeShell) HandleTrayClick(button lifecycle.MouseButton, state lifecycle.ButtonState) {
	f.mu.Lock()
	f.clicks = append(f.clicks, string(button)+"/"+string(state))
	f.mu.Unlock()
}

func (f *fakeShell) HandleCloseRequested() bool {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return true
}

// testEnv sets up a temp vault, registry, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*testutil.Env, *fakeShell, http.Handler) {
	t.Helper()
	return testEnvWithEvents(t, authToken, nil)
}

func testEnvWithEvents(t *testing.T, authToken string, events http.Handler) (*testutil.Env, *fakeShell, http.Handler) {
	t.Helper()
	return testEnvWithConfig(t, RouterConfig{
		AuthEnabled: authToken != "",
		Token:       authToken,
		Events:      events,
	})
}

// testEnvWithConfig fills the service fields of cfg from a fresh env.
func testEnvWithConfig(t *testing.T, cfg RouterConfig) (*testutil.Env, *fakeShell, http.Handler) {
	t.Helper()
	env := testutil.TestEnv(t)
	shell := &fakeShell{}
	tray := window.NewTray(env.Events, testutil.Logger())
	_ = tray.Build(lifecycle.DefaultTooltip, lifecycle.MenuItems)
	cfg.Service = env.Service
	cfg.Shell = shell
	cfg.Window = env.Window
	cfg.Tray = tray
	return env, shell, NewRouter(cfg)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func q(folder string) string {
	return "folder=" + url.QueryEscape(folder)
}

func TestVaultEndpoints(t *testing.T) {
	env, _, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/vault/exists?"+q(env.VaultDir), nil)
	if w.Code != http.StatusOK || !reflect.DeepEqual(decode[map[string]bool](t, w), map[string]bool{"exists": false}) {
		t.Fatalf("exists before write = %d %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/vault?"+q(env.VaultDir), nil)
	if got := decode[VaultDataResponse](t, w); got.Data != nil {
		t.Errorf("data before write = %q, want null", *got.Data)
	}

	w = do(t, router, http.MethodPut, "/vault", WriteVaultRequest{Folder: env.VaultDir, Data: `{"v":1}`})
	if w.Code != http.StatusNoContent {
		t.Fatalf("write = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/vault/exists?"+q(env.VaultDir), nil)
	if !decode[map[string]bool](t, w)["exists"] {
		t.Error("exists after write = false")
	}
	w = do(t, router, http.MethodGet, "/vault?"+q(env.VaultDir), nil)
	if got := decode[VaultDataResponse](t, w); got.Data == nil || *got.Data != `{"v":1}` {
		t.Errorf("data after write = %v", got.Data)
	}
}

func TestVaultMissingFolder(t *testing.T) {
	_, _, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/vault", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPut, "/vault", WriteVaultRequest{Data: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("put without folder = %d, want 400", w.Code)
	}
}

func TestAssetEndpoints(t *testing.T) {
	env, _, router := testEnv(t, "")

	for _, id := range []string{"a1", "b2"} {
		w := do(t, router, http.MethodPut, "/assets/"+id, WriteAssetRequest{Folder: env.VaultDir, Data: "enc-" + id})
		if w.Code != http.StatusNoContent {
			t.Fatalf("put %s = %d %s", id, w.Code, w.Body.String())
		}
	}
	_ = os.WriteFile(filepath.Join(env.VaultDir, "vault-assets", "c3.txt"), []byte("x"), 0o644)

	w := do(t, router, http.MethodGet, "/assets?"+q(env.VaultDir), nil)
	if got := decode[map[string][]string](t, w)["ids"]; !reflect.DeepEqual(got, []string{"a1", "b2"}) {
		t.Errorf("ids = %v", got)
	}

	w = do(t, router, http.MethodGet, "/assets/a1?"+q(env.VaultDir), nil)
	if got := decode[map[string]string](t, w)["data"]; got != "enc-a1" {
		t.Errorf("data = %q", got)
	}

	for i := 0; i < 2; i++ {
		w = do(t, router, http.MethodDelete, "/assets/a1?"+q(env.VaultDir), nil)
		if w.Code != http.StatusNoContent {
			t.Errorf("delete #%d = %d", i+1, w.Code)
		}
	}

	w = do(t, router, http.MethodGet, "/assets/a1?"+q(env.VaultDir), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("read deleted = %d, want 404", w.Code)
	}
	if got := decode[errResponse](t, w); got.Kind != "not_found" {
		t.Errorf("kind = %q", got.Kind)
	}
}

func TestAssetInvalidID(t *testing.T) {
	env, _, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/assets/a.b", WriteAssetRequest{Folder: env.VaultDir, Data: "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decode[errResponse](t, w); got.Kind != "validation" {
		t.Errorf("kind = %q", got.Kind)
	}
}

func TestReadMarkdownEndpoint(t *testing.T) {
	env, _, router := testEnv(t, "")
	p := filepath.Join(env.VaultDir, "doc.md")
	_ = os.WriteFile(p, []byte("# Doc"), 0o644)

	w := do(t, router, http.MethodGet, "/markdown?path="+url.QueryEscape(p), nil)
	if w.Code != http.StatusOK || decode[map[string]string](t, w)["content"] != "# Doc" {
		t.Errorf("read = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/markdown?path="+url.QueryEscape(filepath.Join(env.VaultDir, "x.png")), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf(".png = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodGet, "/markdown?path="+url.QueryEscape(filepath.Join(env.VaultDir, "gone.md")), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
}

func TestPickVaultFolderEndpoint(t *testing.T) {
	env, _, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/dialog/vault-folder", nil)
	if w.Code != http.StatusOK || decode[FolderRequest](t, w).Folder != env.VaultDir {
		t.Fatalf("pick = %d %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/vaults/stored", nil)
	if got := decode[StoredVaultResponse](t, w); got.Folder == nil || *got.Folder != env.VaultDir {
		t.Errorf("stored = %v", got.Folder)
	}

	env.Dialogs.Folder = ""
	w = do(t, router, http.MethodPost, "/dialog/vault-folder", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("cancelled pick = %d, want 409", w.Code)
	}
	if got := decode[errResponse](t, w); got.Kind != "cancelled" {
		t.Errorf("kind = %q", got.Kind)
	}
}

func TestStoredAndRecentVaults(t *testing.T) {
	env, _, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/vaults/stored", nil)
	if got := decode[StoredVaultResponse](t, w); got.Folder != nil {
		t.Errorf("stored on fresh db = %q", *got.Folder)
	}

	w = do(t, router, http.MethodPut, "/vaults/stored", FolderRequest{Folder: env.VaultDir})
	if w.Code != http.StatusNoContent {
		t.Fatalf("set stored = %d %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/vaults/recent?limit=5", nil)
	got := decode[RecentVaultsResponse](t, w)
	if len(got.Vaults) != 1 || got.Vaults[0].Folder != env.VaultDir {
		t.Errorf("recent = %+v", got.Vaults)
	}

	w = do(t, router, http.MethodDelete, "/vaults/stored", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("clear = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/vaults/stored", nil)
	if got := decode[StoredVaultResponse](t, w); got.Folder != nil {
		t.Error("stored vault should be cleared")
	}

	w = do(t, router, http.MethodDelete, "/vaults/recent?"+q(env.VaultDir), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("forget = %d %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/vaults/recent", nil)
	if got := decode[RecentVaultsResponse](t, w); len(got.Vaults) != 0 {
		t.Errorf("recent after forget = %+v", got.Vaults)
	}
	if w := do(t, router, http.MethodDelete, "/vaults/recent", nil); w.Code != http.StatusBadRequest {
		t.Errorf("forget without folder = %d, want 400", w.Code)
	}
}

func TestSaveFileEndpoint(t *testing.T) {
	env, _, router := testEnv(t, "")
	body := SaveFileRequest{DefaultName: "a.md", Content: "hi", FilterName: "Markdown", FilterExtensions: []string{"md"}}

	w := do(t, router, http.MethodPost, "/save-file", body)
	if w.Code != http.StatusOK || !decode[map[string]bool](t, w)["saved"] {
		t.Fatalf("save = %d %s", w.Code, w.Body.String())
	}
	if data, _ := os.ReadFile(env.Dialogs.SavePath); string(data) != "hi" {
		t.Errorf("saved content = %q", data)
	}

	env.Dialogs.SavePath = ""
	w = do(t, router, http.MethodPost, "/save-file", body)
	if w.Code != http.StatusOK || decode[map[string]bool](t, w)["saved"] {
		t.Errorf("cancelled save = %d %s", w.Code, w.Body.String())
	}
}

func TestExportEndpoint(t *testing.T) {
	env, _, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/export", map[string]any{
		"folder": env.VaultDir,
		"notes": []map[string]string{
			{"name": "Todo", "content": "1"},
			{"name": "Todo", "content": "2"},
			{"name": "  ", "content": "3"},
		},
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("export = %d %s", w.Code, w.Body.String())
	}
	for _, name := range []string{"Todo.md", "Todo (2).md", "Untitled.md"} {
		if _, err := os.Stat(filepath.Join(env.VaultDir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	w = do(t, router, http.MethodPost, "/export", ExportRequest{Folder: filepath.Join(env.VaultDir, "nope")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("export to missing dir = %d, want 400", w.Code)
	}
}

func TestWindowEndpoints(t *testing.T) {
	env, _, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/window/theme", ThemeRequest{Dark: true})
	if w.Code != http.StatusNoContent {
		t.Fatalf("theme = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/window", nil)
	if got := decode[window.State](t, w); !got.Dark || !got.Visible {
		t.Errorf("window = %+v", got)
	}
	if !env.Window.Snapshot().Dark {
		t.Error("handle not updated")
	}
}

func TestShellBridge(t *testing.T) {
	_, shell, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/shell/tray/menu/new_note", nil); w.Code != http.StatusNoContent {
		t.Errorf("menu = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/shell/tray/menu/bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown menu = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/shell/tray/click", TrayClickRequest{Button: "left", State: "up"}); w.Code != http.StatusNoContent {
		t.Errorf("click = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/shell/tray/click", TrayClickRequest{Button: "thumb", State: "up"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad button = %d, want 400", w.Code)
	}
	w := do(t, router, http.MethodPost, "/shell/window/close", nil)
	if !decode[map[string]bool](t, w)["prevent_close"] {
		t.Error("close should be prevented")
	}

	w = do(t, router, http.MethodGet, "/shell/tray", nil)
	menu := decode[window.TrayMenu](t, w)
	if menu.Tooltip != lifecycle.DefaultTooltip || len(menu.Items) != 4 {
		t.Errorf("tray = %+v", menu)
	}

	if !reflect.DeepEqual(shell.menus, []string{"new_note"}) || !reflect.DeepEqual(shell.clicks, []string{"left/up"}) || shell.closes != 1 {
		t.Errorf("shell saw menus=%v clicks=%v closes=%d", shell.menus, shell.clicks, shell.closes)
	}
}

func TestInvalidJSON(t *testing.T) {
	_, _, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPut, "/vault", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestJSONContentTypeRequired(t *testing.T) {
	env, _, router := testEnv(t, "")
	body := `{"folder":` + strconv.Quote(env.VaultDir) + `,"notes":[{"name":"Pwned","content":"x"}]}`

	for _, ct := range []string{"text/plain", "application/x-www-form-urlencoded", ""} {
		req := httptest.NewRequest(http.MethodPost, "/export", strings.NewReader(body))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnsupportedMediaType {
			t.Errorf("content type %q: status = %d, want 415", ct, w.Code)
		}
	}
	if _, err := os.Stat(filepath.Join(env.VaultDir, "Pwned.md")); !os.IsNotExist(err) {
		t.Errorf("export ran without a JSON content type: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/vault", strings.NewReader(`{"folder":`+strconv.Quote(env.VaultDir)+`,"data":"x"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("json with charset = %d %s", w.Code, w.Body.String())
	}
}

func TestLoopbackGuard_ForeignOrigin(t *testing.T) {
	_, shell, router := testEnvWithConfig(t, RouterConfig{
		AllowedOrigins: []string{"http://127.0.0.1:17823"},
	})

	req := httptest.NewRequest(http.MethodPost, "/shell/tray/menu/quit", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign origin = %d, want 403", w.Code)
	}
	if len(shell.menus) != 0 {
		t.Errorf("menu reached the shell: %v", shell.menus)
	}

	req = httptest.NewRequest(http.MethodPost, "/shell/tray/menu/quit", nil)
	req.Header.Set("Origin", "http://127.0.0.1:17823/")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("own origin = %d, want 204", w.Code)
	}

	// Native clients send no Origin.
	if w := do(t, router, http.MethodGet, "/window", nil); w.Code != http.StatusOK {
		t.Errorf("no origin = %d, want 200", w.Code)
	}
}

func TestLoopbackGuard_Host(t *testing.T) {
	_, _, router := testEnvWithConfig(t, RouterConfig{
		AllowedHosts: []string{"127.0.0.1:17823", "localhost:17823"},
	})

	for host, want := range map[string]int{
		"127.0.0.1:17823":        http.StatusOK,
		"LOCALHOST:17823":        http.StatusOK,
		"rebind.evil.test:17823": http.StatusForbidden,
		"127.0.0.1:80":           http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/window", nil)
		req.Host = host
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("host %q = %d, want %d", host, w.Code, want)
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/window", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/window", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, _, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/window", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func blockingEvents() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, _, router := testEnvWithEvents(t, "secret", blockingEvents())
	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, _, router := testEnvWithEvents(t, "tok", blockingEvents())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with token = %d, want 200", w.Code)
	}
}
