package patchserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/patchmatrix/internal/catalog"
	"github.com/kingrea/patchmatrix/internal/config"
)

func testCatalog() catalog.Catalog {
	return catalog.Catalog{
		Patch: catalog.Patch{ID: "p1"},
		Variants: []catalog.VariantDef{
			{ID: "v1", DisplayName: "V1", Tasks: []catalog.TaskDef{{Name: "compile"}, {Name: "test"}}},
			{ID: "v2", DisplayName: "V2", Tasks: []catalog.TaskDef{{Name: "compile"}}},
		},
	}
}

func post(t *testing.T, url, body string) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	decoded := map[string]string{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Project.DevServer = config.DevServerConfig{Host: " 0.0.0.0 ", Port: 9001}
	settings := SettingsFromConfig(cfg)
	if settings.Address() != "0.0.0.0:9001" {
		t.Fatalf("address = %s", settings.Address())
	}
	if settings.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Fatalf("max body = %d", settings.MaxBodyBytes)
	}
	defaults := SettingsFromConfig(nil)
	if defaults.URL() != "http://127.0.0.1:8765" {
		t.Fatalf("default url = %s", defaults.URL())
	}
}

func TestSubmitStoresVersion(t *testing.T) {
	fixed := time.Unix(1730000000, 0).UTC()
	srv := NewServer(Settings{}, testCatalog(),
		WithClock(func() time.Time { return fixed }),
		WithVersionIDs(func() string { return "ver-1" }))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := post(t, ts.URL+"/patch/p1", `[{"variant":"v1","tasks":["test","compile","test"]}]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	if body["version"] != "ver-1" {
		t.Fatalf("version = %q", body["version"])
	}
	versions := srv.Versions()
	if len(versions) != 1 {
		t.Fatalf("expected 1 stored version, got %d", len(versions))
	}
	stored := versions[0]
	if !stored.Created.Equal(fixed) || stored.PatchID != "p1" {
		t.Fatalf("unexpected stored version %+v", stored)
	}
	if got := strings.Join(stored.Payload[0].Tasks, ","); got != "compile,test" {
		t.Fatalf("stored tasks = %s", got)
	}

	getResp, err := http.Get(ts.URL + "/version/ver-1")
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("version status = %d", getResp.StatusCode)
	}
	var fetched Version
	if err := json.NewDecoder(getResp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if fetched.ID != "ver-1" || fetched.Payload.Len() != 2 {
		t.Fatalf("fetched version %+v", fetched)
	}
}

func TestSubmitRejectsInvalidPayloads(t *testing.T) {
	srv := NewServer(Settings{}, testCatalog())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	cases := []struct {
		path   string
		body   string
		status int
		errMsg string
	}{
		{"/patch/other", `[{"variant":"v1","tasks":["test"]}]`, http.StatusNotFound, `patch "other" not found`},
		{"/patch/p1", `not json`, http.StatusBadRequest, "invalid JSON"},
		{"/patch/p1", `[]`, http.StatusBadRequest, "at least one task"},
		{"/patch/p1", `[{"variant":"v9","tasks":["test"]}]`, http.StatusBadRequest, `unknown variant "v9"`},
		{"/patch/p1", `[{"variant":"v2","tasks":["test"]}]`, http.StatusBadRequest, `variant "v2" has no task "test"`},
	}
	for _, tc := range cases {
		resp, body := post(t, ts.URL+tc.path, tc.body)
		if resp.StatusCode != tc.status {
			t.Fatalf("%s %s: status = %d, want %d", tc.path, tc.body, resp.StatusCode, tc.status)
		}
		if !strings.Contains(body["error"], tc.errMsg) {
			t.Fatalf("%s %s: error = %q, want %q", tc.path, tc.body, body["error"], tc.errMsg)
		}
	}
	if len(srv.Versions()) != 0 {
		t.Fatalf("rejected submissions must not be stored")
	}
}

func TestServerEnforcesPayloadLimit(t *testing.T) {
	srv := NewServer(Settings{MaxBodyBytes: 64}, testCatalog())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	big := `[{"variant":"v1","tasks":["` + string(bytes.Repeat([]byte("a"), 512)) + `"]}]`
	resp, _ := post(t, ts.URL+"/patch/p1", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	t.Parallel()
	srv := NewServer(Settings{Host: "127.0.0.1", Port: 0}, testCatalog())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("second start should fail")
	}
	if srv.Status() != StatusReady {
		t.Fatalf("status = %s, want ready", srv.Status())
	}
	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	var health healthResponse
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health.PatchID != "p1" || health.Status != string(StatusReady) {
		t.Fatalf("unexpected health %d %+v", resp.StatusCode, health)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.Addr() != "" || srv.Status() != StatusStopped {
		t.Fatalf("after shutdown addr=%q status=%s", srv.Addr(), srv.Status())
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestFileStorePersistsAcrossServers(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ids := []string{"ver-a", "ver-b"}
	next := 0
	first := NewServer(Settings{}, testCatalog(), WithStore(store), WithVersionIDs(func() string {
		id := ids[next]
		next++
		return id
	}))
	ts := httptest.NewServer(first.Handler())
	for i := 0; i < 2; i++ {
		if resp, body := post(t, ts.URL+"/patch/p1", `[{"variant":"v2","tasks":["compile"]}]`); resp.StatusCode != http.StatusOK {
			t.Fatalf("submit %d: %d %v", i, resp.StatusCode, body)
		}
	}
	ts.Close()

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	second := NewServer(Settings{}, testCatalog(), WithStore(reopened))
	versions := second.Versions()
	if len(versions) != 2 {
		t.Fatalf("expected 2 persisted versions, got %d", len(versions))
	}
	got, ok, err := reopened.Get("ver-b")
	if err != nil || !ok {
		t.Fatalf("get ver-b: ok=%t err=%v", ok, err)
	}
	if got.PatchID != "p1" || got.Payload[0].Variant != "v2" {
		t.Fatalf("persisted version %+v", got)
	}
	if _, ok, _ := reopened.Get("../escape"); ok {
		t.Fatalf("path-like ids must not resolve")
	}
	if _, ok, _ := reopened.Get("missing"); ok {
		t.Fatalf("missing version reported as present")
	}
}

func TestMemoryStoreKeepsArrivalOrder(t *testing.T) {
	store := NewMemoryStore()
	for _, id := range []string{"b", "a", "b"} {
		if err := store.Put(Version{ID: id}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	versions, _ := store.List()
	if len(versions) != 2 || versions[0].ID != "b" || versions[1].ID != "a" {
		t.Fatalf("versions = %+v", versions)
	}
}
