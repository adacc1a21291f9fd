package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/render"
	"github.com/meridian-platform/stackd/internal/route"
)

func upstreamFor(t *testing.T, srv *httptest.Server) render.Upstream {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse upstream port: %v", err)
	}
	return render.Upstream{Host: u.Hostname(), Port: port}
}

func newTestGateway(t *testing.T) (*Gateway, *httptest.Server, *httptest.Server) {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Served-By", "api")
		io.WriteString(w, "api:"+r.URL.Path)
	}))
	t.Cleanup(api.Close)
	web := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Served-By", "web")
		io.WriteString(w, "web:"+r.URL.Path)
	}))
	t.Cleanup(web.Close)

	gw, err := New(route.DefaultTable(), map[domain.Role]render.Upstream{
		domain.RoleAPI: upstreamFor(t, api),
		domain.RoleWeb: upstreamFor(t, web),
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gw, api, web
}

func TestAPIPrefixRoutesToAPIWithCORS(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	paths := []string{"/api", "/api/health", "/api/v1/chat"}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if got := rec.Header().Get("X-Served-By"); got != "api" {
			t.Errorf("GET %s served by %q, want api", path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("GET %s: Access-Control-Allow-Origin = %q, want *", path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
			t.Errorf("GET %s: Access-Control-Allow-Methods = %q", path, got)
		}
		if body := rec.Body.String(); body != "api:"+path {
			t.Errorf("GET %s: body = %q", path, body)
		}
	}
}

func TestOtherPathsRouteToWeb(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	for _, path := range []string{"/", "/index.html", "/static/app.js"} {
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if got := rec.Header().Get("X-Served-By"); got != "web" {
			t.Errorf("GET %s served by %q, want web", path, got)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Errorf("GET %s: web route should not carry CORS headers", path)
		}
	}
}

func TestPreflightAnsweredDirectly(t *testing.T) {
	hit := false
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit = true }))
	t.Cleanup(api.Close)
	web := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(web.Close)

	gw, err := New(route.DefaultTable(), map[domain.Role]render.Upstream{
		domain.RoleAPI: upstreamFor(t, api),
		domain.RoleWeb: upstreamFor(t, web),
	}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("preflight missing CORS headers")
	}
	if hit {
		t.Error("preflight was forwarded upstream")
	}
}

func TestUnreachableUpstreamIsBadGateway(t *testing.T) {
	gw, api, _ := newTestGateway(t)
	api.Close()

	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestMissingUpstreamRejectedAtConstruction(t *testing.T) {
	_, err := New(route.DefaultTable(), map[domain.Role]render.Upstream{
		domain.RoleAPI: {Host: "api", Port: 3000},
	}, time.Second)
	if err == nil {
		t.Error("expected error for missing web upstream")
	}
}
