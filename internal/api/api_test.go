package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/egret-dev/egret/internal/projectservice"
	"github.com/egret-dev/egret/internal/storage"
)

// testEnv sets up a temp work directory, service, and router.
// authToken="" means auth disabled.
func testEnv(t *testing.T, authToken string, files map[string]string) (http.Handler, string) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, files, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, files map[string]string, sseHandler http.Handler) (http.Handler, string) {
	t.Helper()

	workDir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(workDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(workDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	svc := projectservice.NewService(store, projectservice.Options{
		StateDir:   t.TempDir(),
		ArchiveDir: "archive",
		Now: func() time.Time {
			return time.Date(2019, 6, 1, 12, 0, 0, 0, time.Local)
		},
	})
	return NewRouter(svc, authEnabled, authToken, sseHandler), workDir
}

func TestListProjectsEndpoint(t *testing.T) {
	router, _ := testEnv(t, "", map[string]string{
		"alpha.egret": "2019\n01 february: 09:00-10:00 1h\n",
		"beta.egret":  "2019\n01 february: 09:00-11:00 2h\n",
	})

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ProjectListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Total != 2 || len(resp.Projects) != 2 {
		t.Errorf("total = %d, projects = %d", resp.Total, len(resp.Projects))
	}
	if resp.Projects[0].Name != "alpha" {
		t.Errorf("first project = %q", resp.Projects[0].Name)
	}
}

func TestGetProjectEndpoint(t *testing.T) {
	router, _ := testEnv(t, "", map[string]string{
		"alpha.egret": "Tags: work\n\n2019\n01 february: 09:00-10:00 1h\n",
	})

	req := httptest.NewRequest(http.MethodGet, "/projects/alpha", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d, body = %s", w.Code, w.Body.String())
	}
	var detail ProjectDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if detail.Name != "alpha" {
		t.Errorf("name = %q", detail.Name)
	}
	if detail.Totals[""] != 60 {
		t.Errorf("totals = %v", detail.Totals)
	}
	if len(detail.Tags) != 1 || detail.Tags[0] != "work" {
		t.Errorf("tags = %v", detail.Tags)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	router, _ := testEnv(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/projects/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing project = %d, want 404", w.Code)
	}
}

func TestGetProjectRawEndpoint(t *testing.T) {
	text := "2019\n01 february: 09:00-10:00 1h\n"
	router, _ := testEnv(t, "", map[string]string{"alpha.egret": text})

	req := httptest.NewRequest(http.MethodGet, "/projects/alpha/raw", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("raw = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	if w.Body.String() != text {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestAnnotateEndpoint(t *testing.T) {
	router, workDir := testEnv(t, "", map[string]string{
		"alpha.egret": "2019\n01 february: 09:00-10:00 1h\n10:00\n",
	})

	req := httptest.NewRequest(http.MethodPost, "/projects/alpha/annotate", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("annotate = %d, body = %s", w.Code, w.Body.String())
	}
	var detail ProjectDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Contains([]byte(detail.Content), []byte("01 June: 10:00-")) {
		t.Errorf("content = %q", detail.Content)
	}

	onDisk, err := os.ReadFile(filepath.Join(workDir, "alpha.egret"))
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != detail.Content {
		t.Error("file on disk does not match response")
	}
}

func TestArchiveEndpoint(t *testing.T) {
	router, workDir := testEnv(t, "", map[string]string{
		"alpha.egret": "2019\n01 february: 09:00-10:00 1h\n01 april: 09:00-10:00 1h\n",
	})

	body, _ := json.Marshal(ArchiveRequest{Cutoff: "2019-04-01"})
	req := httptest.NewRequest(http.MethodPost, "/projects/alpha/archive", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("archive = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ArchiveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(resp.Archives) != 1 || resp.Archives[0].Path != "archive/201902-alpha.egret" {
		t.Errorf("archives = %+v", resp.Archives)
	}
	if _, err := os.Stat(filepath.Join(workDir, "archive", "201902-alpha.egret")); err != nil {
		t.Errorf("bundle not on disk: %v", err)
	}
}

func TestArchiveEndpoint_BadCutoff(t *testing.T) {
	router, _ := testEnv(t, "", map[string]string{
		"alpha.egret": "2019\n01 february: 09:00-10:00 1h\n",
	})

	body, _ := json.Marshal(ArchiveRequest{Cutoff: "april"})
	req := httptest.NewRequest(http.MethodPost, "/projects/alpha/archive", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad cutoff = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123", map[string]string{
		"alpha.egret": "2019\n01 february: 09:00-10:00 1h\n",
	})

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func newSSEStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvFull(t, true, "secret", nil, newSSEStub())

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router, _ := testEnvFull(t, true, "tok", nil, newSSEStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
