package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/render"
	"github.com/meridian-platform/stackd/internal/route"
)

// Gateway is the reverse-proxy HTTP handler: it evaluates the route table in
// declared order and forwards to the matched upstream by internal name.
// There is exactly one upstream per role, so an unreachable upstream is a
// 502 to the caller with no retry and no fallback.
type Gateway struct {
	table     *route.Table
	upstreams map[domain.Role]render.Upstream
	timeout   time.Duration
}

// New creates a Gateway over a validated table and the upstream address map.
func New(table *route.Table, upstreams map[domain.Role]render.Upstream, timeout time.Duration) (*Gateway, error) {
	for _, r := range table.Rules() {
		up, ok := upstreams[r.Upstream]
		if !ok || up.Host == "" || up.Port <= 0 {
			return nil, fmt.Errorf("%w: no upstream address for role %q", domain.ErrInvalidInput, r.Upstream)
		}
	}
	return &Gateway{table: table, upstreams: upstreams, timeout: timeout}, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rule, ok := g.table.Match(r.URL.Path)
	if !ok {
		// Cannot happen once the table validated its catch-all; still a
		// client error rather than forwarding to an arbitrary upstream.
		http.Error(w, "no route", http.StatusNotFound)
		return
	}

	// CORS-tagged routes answer preflight directly, never forwarding it.
	if r.Method == http.MethodOptions && rule.Headers["Access-Control-Allow-Origin"] != "" {
		setHeaders(w, rule.Headers)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	setHeaders(w, rule.Headers)

	up := g.upstreams[rule.Upstream]
	target := &url.URL{
		Scheme:   "http",
		Host:     fmt.Sprintf("%s:%d", up.Host, up.Port),
		Path:     r.URL.Path, // no path components stripped
		RawQuery: r.URL.RawQuery,
	}

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL = target
			req.Host = target.Host
			req.Header.Set("X-Forwarded-Host", r.Host)
			if req.TLS != nil {
				req.Header.Set("X-Forwarded-Proto", "https")
			} else {
				req.Header.Set("X-Forwarded-Proto", "http")
			}
			if _, ok := req.Header["User-Agent"]; !ok {
				req.Header.Set("User-Agent", "")
			}
		},
		Transport: &http.Transport{
			ResponseHeaderTimeout: g.timeout,
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("proxy error",
				"upstream", rule.Upstream,
				"target", target.String(),
				"error", err,
			)
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
	}

	proxy.ServeHTTP(w, r)
}

func setHeaders(w http.ResponseWriter, headers map[string]string) {
	for name, value := range headers {
		w.Header().Set(name, value)
	}
}
