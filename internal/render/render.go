// Package render turns a route table into the gateway's proxy configuration
// file. Substitution is a fixed set of named slots, not a templating
// language: the ACME and HTTPS blocks are opaque pass-through text the
// renderer never parses.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/route"
)

// Upstream addresses one backend container by internal name, decoupled from
// any public hostname.
type Upstream struct {
	Host string
	Port int
}

// Params are the enumerated slot values consumed at render time.
type Params struct {
	ListenPort int
	ServerName string
	// ACMEChallengeBlock and HTTPSBlock are opaque text injected verbatim.
	// Both default to empty when unused. When HTTPSBlock is set it is
	// expected to redirect plain HTTP to HTTPS on its own.
	ACMEChallengeBlock string
	HTTPSBlock         string
	Upstreams          map[domain.Role]Upstream
}

const skeleton = `server {
    listen ${LISTEN_PORT};
    server_name ${SERVER_NAME};

${ACME_CHALLENGE_BLOCK}
${LOCATION_BLOCKS}}
${HTTPS_BLOCK}
`

// Config renders the proxy configuration for a validated route table.
func Config(table *route.Table, p Params) (string, error) {
	if p.ListenPort <= 0 {
		return "", fmt.Errorf("%w: listen port is required", domain.ErrInvalidInput)
	}
	if p.ServerName == "" {
		return "", fmt.Errorf("%w: server name is required", domain.ErrInvalidInput)
	}

	var locations strings.Builder
	for _, r := range table.Rules() {
		up, ok := p.Upstreams[r.Upstream]
		if !ok || up.Host == "" || up.Port <= 0 {
			return "", fmt.Errorf("%w: no upstream address for role %q", domain.ErrInvalidInput, r.Upstream)
		}
		locations.WriteString(locationBlock(r, up))
	}

	replacer := strings.NewReplacer(
		"${LISTEN_PORT}", fmt.Sprintf("%d", p.ListenPort),
		"${SERVER_NAME}", p.ServerName,
		"${ACME_CHALLENGE_BLOCK}", indentBlock(p.ACMEChallengeBlock),
		"${HTTPS_BLOCK}", p.HTTPSBlock,
		"${LOCATION_BLOCKS}", locations.String(),
	)
	return replacer.Replace(skeleton), nil
}

// locationBlock renders one route rule. The path is forwarded as-is, with the
// standard proxy headers preserved so upstreams see the real client.
func locationBlock(r route.Rule, up Upstream) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    location %s {\n", r.Prefix)
	fmt.Fprintf(&b, "        proxy_pass http://%s:%d;\n", up.Host, up.Port)
	b.WriteString("        proxy_set_header Host $host;\n")
	b.WriteString("        proxy_set_header X-Real-IP $remote_addr;\n")
	b.WriteString("        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;\n")
	b.WriteString("        proxy_set_header X-Forwarded-Proto $scheme;\n")
	for _, name := range sortedHeaderNames(r.Headers) {
		fmt.Fprintf(&b, "        add_header %s %q always;\n", name, r.Headers[name])
	}
	b.WriteString("    }\n")
	return b.String()
}

func indentBlock(block string) string {
	if block == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n") + "\n"
}

func sortedHeaderNames(headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	// Stable output keeps rendered configs diffable across deploys.
	sort.Strings(names)
	return names
}
