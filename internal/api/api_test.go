package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/gridcat/internal/catalog"
	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/collectionservice"
	"github.com/starford/gridcat/internal/parser"
	"github.com/starford/gridcat/internal/testutil"
)

// testEnv lays out a directory partition with children a and b and returns
// the archive root and a router over it.
func testEnv(t *testing.T, authToken string) (string, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (string, http.Handler) {
	t.Helper()

	root, _ := testutil.Archive(t)
	testutil.WriteFile(t, filepath.Join(root, "a", "f1.grib2"), 1000)
	testutil.WriteFile(t, filepath.Join(root, "b", "f2.grib2"), 1000)

	dbFile, err := os.CreateTemp("", "gridcat-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	spec, err := parser.Parse(root + "/.*\\.grib2$")
	if err != nil {
		t.Fatal(err)
	}
	targets := []catalog.Target{{
		Name:     "gfs",
		Spec:     spec,
		Strategy: collection.StrategyDirectory,
		Self:     collection.Test,
		Children: collection.Test,
	}}
	u := catalog.NewUpdater(db, slog.New(slog.NewJSONHandler(io.Discard, nil)), 1, nil)
	svc := collectionservice.NewService(targets, u, db)
	return root, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func indexQuery(path string) string {
	return "?path=" + url.QueryEscape(path)
}

func TestUpdateThenRead(t *testing.T) {
	root, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/collections/gfs/update?collection=always&children=always")
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var res UpdateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Result.Rebuilt || res.Result.Stats.Rebuilt != 3 {
		t.Errorf("update result = %+v", res.Result)
	}

	top := filepath.Join(root, filepath.Base(root)+".gcx")
	w = do(t, router, http.MethodGet, "/index/kind"+indexQuery(top))
	var kind IndexKindResponse
	_ = json.Unmarshal(w.Body.Bytes(), &kind)
	if w.Code != http.StatusOK || kind.Kind != "partition" {
		t.Fatalf("kind = %d %+v", w.Code, kind)
	}

	w = do(t, router, http.MethodGet, "/index/children"+indexQuery(top))
	var kids ChildrenResponse
	_ = json.Unmarshal(w.Body.Bytes(), &kids)
	if w.Code != http.StatusOK || len(kids.Children) != 2 {
		t.Fatalf("children = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/index/mfiles"+indexQuery(kids.Children[0].IndexPath))
	var files MFilesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &files)
	if w.Code != http.StatusOK || len(files.Files) != 1 || files.Files[0].Name() != "f1.grib2" {
		t.Fatalf("mfiles = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/nodes?collection=gfs")
	var nodes NodeListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &nodes)
	if w.Code != http.StatusOK || len(nodes.Nodes) != 3 {
		t.Errorf("nodes = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/collections/gfs/runs")
	var runs RunListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &runs)
	if w.Code != http.StatusOK || len(runs.Runs) != 1 {
		t.Errorf("runs = %d %s", w.Code, w.Body.String())
	}
}

func TestListCollections(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/collections")
	var resp CollectionListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Collections) != 1 || resp.Collections[0].Partition != collection.StrategyDirectory {
		t.Errorf("collections = %d %s", w.Code, w.Body.String())
	}
}

func TestUpdate_BadPolicy(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/collections/gfs/update?collection=sometimes"); w.Code != http.StatusBadRequest {
		t.Errorf("bad policy = %d, want 400", w.Code)
	}
}

func TestUpdate_UnknownCollection(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/collections/nam/update"); w.Code != http.StatusNotFound {
		t.Errorf("unknown collection = %d, want 404", w.Code)
	}
}

func TestUpdate_NeverWithoutIndex(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/collections/gfs/update?collection=never&children=never")
	if w.Code != http.StatusConflict {
		t.Fatalf("never = %d, want 409", w.Code)
	}
	var resp UpdateErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == "" || resp.Update.Collection != "gfs" {
		t.Errorf("body = %+v", resp)
	}
}

func TestIndexRead_Errors(t *testing.T) {
	root, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/collections/gfs/update"); w.Code != http.StatusOK {
		t.Fatalf("update = %d", w.Code)
	}

	top := filepath.Join(root, filepath.Base(root)+".gcx")
	leaf := filepath.Join(root, "a", "a.gcx")
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing path", "/index/kind", http.StatusBadRequest},
		{"outside catalog", "/index/kind" + indexQuery("/etc/other.gcx"), http.StatusNotFound},
		{"no such index", "/index/kind" + indexQuery(filepath.Join(root, "zz", "zz.gcx")), http.StatusNotFound},
		{"children of leaf", "/index/children" + indexQuery(leaf), http.StatusConflict},
		{"mfiles of partition", "/index/mfiles" + indexQuery(top), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, router, http.MethodGet, tt.target); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestIndexRead_Malformed(t *testing.T) {
	root, router := testEnv(t, "")
	bad := filepath.Join(root, "a", "a.gcx")
	if err := os.WriteFile(bad, []byte("GRIDCAT"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w := do(t, router, http.MethodGet, "/index/kind"+indexQuery(bad)); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed = %d, want 422", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/collections", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/collections"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/collections", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// blockingSSE writes stream headers and blocks until the request ends.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE)
	if w := do(t, router, http.MethodGet, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE)

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
