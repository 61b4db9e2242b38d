package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calmcall/calmcall/internal/adapters/signal"
	"github.com/calmcall/calmcall/internal/app"
	"github.com/calmcall/calmcall/internal/config"
	"github.com/calmcall/calmcall/internal/uploads"
	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *uploads.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Mode:       "test",
		StaticPath: t.TempDir(),
		Secret:     "test-secret",
		STUNURLs:   []string{"stun:stun.l.google.com:19302"},
	}

	store, err := uploads.NewStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	rooms := app.NewRooms(2)
	registry := app.NewRegistry()
	orch := &app.Orchestrator{
		Registry: registry,
		Rooms:    rooms,
		Relay:    app.NewRelay(rooms, registry),
	}
	ctl := signal.NewController(orch, store, 1<<20, time.Minute)

	return SetupRouter(context.Background(), cfg, ctl, store), store
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v, want status ok", body)
	}
}

func TestICEServersEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ice-servers", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		ICEServers []struct {
			URLs []string `json:"urls"`
		} `json:"iceServers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(body.ICEServers) != 1 || body.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("ice servers = %+v", body.ICEServers)
	}
}

func TestUploadsServing(t *testing.T) {
	r, store := newTestRouter(t)

	name, err := store.Save("sid", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "jpegbytes" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestUploadsRejectsTraversal(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/uploads/..%5cconfig.yaml", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestClientTokenMiddleware(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.ServeHTTP(w, req)

	var tokenCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "ct" {
			tokenCookie = c
		}
	}
	if tokenCookie == nil || tokenCookie.Value == "" {
		t.Fatalf("client token cookie not set")
	}

	// A second request carrying the cookie keeps its identity.
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req2.AddCookie(tokenCookie)
	r.ServeHTTP(w2, req2)
	for _, c := range w2.Result().Cookies() {
		if c.Name == "ct" && c.Value != tokenCookie.Value {
			t.Fatalf("token regenerated for returning client")
		}
	}
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}
