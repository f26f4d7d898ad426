package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getwarden/warden/acl"
	"github.com/getwarden/warden/wgorm"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	repo := wgorm.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	registry := acl.NewRegistry()
	registry.SetDefault(repo)
	manager := acl.NewManager(registry)

	e := echo.New()
	NewHandler(manager).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAclLifecycle(t *testing.T) {
	e := newTestServer(t)

	ts := fmt.Sprintf("%d", time.Now().Unix())
	model := acl.Resource{
		Type:  "file",
		ID:    ts + ".p12",
		Tag:   "/usr/local/private/" + ts + ".p12",
		Owner: "martinmao@icloud.com",
	}

	rec := doJSON(t, e, http.MethodPost, "/api/v1/acls", model)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create ACL status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodGet, "/api/v1/acls/file/"+model.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get ACL status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[acl.Acl](t, rec)
	if got.Resource.ID != model.ID {
		t.Errorf("resource id = %q, want %q", got.Resource.ID, model.ID)
	}
	if got.Resource.Tag != model.Tag {
		t.Errorf("resource tag = %q, want %q", got.Resource.Tag, model.Tag)
	}
	if got.Resource.Type != "file" {
		t.Errorf("resource type = %q, want %q", got.Resource.Type, "file")
	}
	if len(got.Owners) != 1 || got.Owners[0].Name != "martinmao@icloud.com" {
		t.Fatalf("owners = %+v, want the creating owner", got.Owners)
	}

	// Creating the same ACL again conflicts.
	rec = doJSON(t, e, http.MethodPost, "/api/v1/acls", model)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, e, http.MethodDelete, "/api/v1/acls/file/"+model.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete ACL status = %d", rec.Code)
	}
	rec = doJSON(t, e, http.MethodGet, "/api/v1/acls/file/"+model.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestCreateStrategy(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/strategies", map[string]string{
		"resource_type": "app_func",
		"expression":    "admin=Administration>write=Write>read=Read",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create strategy status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodGet, "/api/v1/strategies/app_func", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get strategy status = %d", rec.Code)
	}
	s := decode[acl.Strategy](t, rec)
	if !s.Inherit {
		t.Error("expected inherit mode")
	}
	if len(s.Permissions) != 3 {
		t.Errorf("permissions = %d, want 3", len(s.Permissions))
	}

	rec = doJSON(t, e, http.MethodGet, "/api/v1/strategies/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown strategy status = %d, want 404", rec.Code)
	}
}

func TestCreateStrategy_RejectsMixedSeparators(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/strategies", map[string]string{
		"resource_type": "file",
		"expression":    "admin=管理,write=写>read=读",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mixed separators status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

func TestDecisions(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/strategies", map[string]string{
		"resource_type": "file",
		"expression":    "admin=Admin>write=Write>read=Read",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create strategy status = %d", rec.Code)
	}

	res := acl.Resource{Type: "file", ID: "report.txt", Owner: "alice"}
	if rec := doJSON(t, e, http.MethodPost, "/api/v1/acls", res); rec.Code != http.StatusCreated {
		t.Fatalf("create ACL status = %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPost, "/api/v1/principals", map[string]string{"name": "bob"}); rec.Code != http.StatusCreated {
		t.Fatalf("create principal status = %d", rec.Code)
	}
	rec = doJSON(t, e, http.MethodPost, "/api/v1/acls/file/report.txt/entries", map[string]any{
		"principal":   "bob",
		"permissions": []string{"write"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("grant status = %d, body %s", rec.Code, rec.Body.String())
	}

	check := func(principal, permission string) bool {
		t.Helper()
		path := fmt.Sprintf("/api/v1/decisions?type=file&id=report.txt&principal=%s&permission=%s", principal, permission)
		rec := doJSON(t, e, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("decision status = %d, body %s", rec.Code, rec.Body.String())
		}
		return decode[map[string]bool](t, rec)["accessible"]
	}

	if !check("bob", "write") {
		t.Error("bob should hold write")
	}
	if !check("bob", "read") {
		t.Error("write should imply read")
	}
	if check("bob", "admin") {
		t.Error("implication must not run upward")
	}
	if !check("alice", "admin") {
		t.Error("owners hold every permission")
	}
	if check("mallory", "read") {
		t.Error("strangers hold nothing")
	}

	// A missing ACL is a plain negative decision, not an error.
	path := "/api/v1/decisions?type=file&id=ghost.txt&principal=bob&permission=read"
	if rec := doJSON(t, e, http.MethodGet, path, nil); rec.Code != http.StatusOK {
		t.Errorf("missing ACL decision status = %d, want 200", rec.Code)
	}

	assert := func(principal, permission string) int {
		t.Helper()
		rec := doJSON(t, e, http.MethodPost, "/api/v1/decisions/assert", map[string]string{
			"type":       "file",
			"id":         "report.txt",
			"principal":  principal,
			"permission": permission,
		})
		return rec.Code
	}
	if code := assert("bob", "read"); code != http.StatusNoContent {
		t.Errorf("allowed assert status = %d, want 204", code)
	}
	if code := assert("mallory", "read"); code != http.StatusForbidden {
		t.Errorf("denied assert status = %d, want 403", code)
	}
}

func TestEntries_ListAndRevoke(t *testing.T) {
	e := newTestServer(t)

	res := acl.Resource{Type: "file", ID: "f.txt", Owner: "alice"}
	if rec := doJSON(t, e, http.MethodPost, "/api/v1/acls", res); rec.Code != http.StatusCreated {
		t.Fatalf("create ACL failed")
	}
	if rec := doJSON(t, e, http.MethodPost, "/api/v1/principals", map[string]string{"name": "bob"}); rec.Code != http.StatusCreated {
		t.Fatalf("create principal failed")
	}

	grant := map[string]any{"principal": "bob", "permissions": []string{"read", "write"}}
	if rec := doJSON(t, e, http.MethodPost, "/api/v1/acls/file/f.txt/entries", grant); rec.Code != http.StatusCreated {
		t.Fatalf("grant failed")
	}

	rec := doJSON(t, e, http.MethodGet, "/api/v1/acls/file/f.txt/entries?principal=bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list entries status = %d", rec.Code)
	}
	page := decode[acl.Page[acl.Entry]](t, rec)
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2", page.Total)
	}

	// The principal cannot be deleted while grants reference it.
	if rec := doJSON(t, e, http.MethodDelete, "/api/v1/principals/bob", nil); rec.Code != http.StatusConflict {
		t.Errorf("delete referenced principal status = %d, want 409", rec.Code)
	}

	revoke := map[string]any{"principal": "bob", "permissions": []string{"read", "write"}}
	if rec := doJSON(t, e, http.MethodDelete, "/api/v1/acls/file/f.txt/entries", revoke); rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodGet, "/api/v1/acls/file/f.txt/entries?principal=bob", nil)
	page = decode[acl.Page[acl.Entry]](t, rec)
	if page.Total != 0 {
		t.Errorf("total after revoke = %d, want 0", page.Total)
	}

	if rec := doJSON(t, e, http.MethodDelete, "/api/v1/principals/bob", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete unreferenced principal status = %d, want 204", rec.Code)
	}
}

func TestPrincipalEntriesAcrossResources(t *testing.T) {
	e := newTestServer(t)

	if rec := doJSON(t, e, http.MethodPost, "/api/v1/principals", map[string]string{"name": "bob"}); rec.Code != http.StatusCreated {
		t.Fatalf("create principal failed")
	}
	for _, id := range []string{"a.txt", "b.txt"} {
		res := acl.Resource{Type: "file", ID: id, Owner: "alice"}
		if rec := doJSON(t, e, http.MethodPost, "/api/v1/acls", res); rec.Code != http.StatusCreated {
			t.Fatalf("create ACL failed")
		}
		grant := map[string]any{"principal": "bob", "permissions": []string{"read"}}
		if rec := doJSON(t, e, http.MethodPost, "/api/v1/acls/file/"+id+"/entries", grant); rec.Code != http.StatusCreated {
			t.Fatalf("grant failed")
		}
	}

	rec := doJSON(t, e, http.MethodGet, "/api/v1/principals/bob/entries?type=file", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list principal entries status = %d", rec.Code)
	}
	page := decode[acl.Page[acl.Entry]](t, rec)
	if page.Total != 2 {
		t.Errorf("total = %d, want 2", page.Total)
	}
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}
