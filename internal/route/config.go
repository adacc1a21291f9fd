package route

import (
	"fmt"
	"os"

	"github.com/meridian-platform/stackd/internal/domain"
	"gopkg.in/yaml.v3"
)

// CORS headers attached to every /api response so the API stays consumable
// from arbitrary browser origins.
const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type, X-Request-Id"
)

// CORSHeaders returns the fixed permissive header set for API routes.
func CORSHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  corsAllowOrigin,
		"Access-Control-Allow-Methods": corsAllowMethods,
		"Access-Control-Allow-Headers": corsAllowHeaders,
	}
}

type routesFile struct {
	Routes []Rule `yaml:"routes"`
}

// LoadFromFile parses a YAML routes config file into a validated Table.
func LoadFromFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML bytes into a validated Table, declaration order kept.
func Parse(data []byte) (*Table, error) {
	var f routesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse routes config: %w", err)
	}
	if len(f.Routes) == 0 {
		return nil, fmt.Errorf("routes config: no routes defined")
	}
	return NewTable(f.Routes)
}

// DefaultTable returns the built-in rule set used when no YAML config is
// supplied: /api to the api upstream with CORS, everything else to web.
func DefaultTable() *Table {
	t, err := NewTable([]Rule{
		{Prefix: "/api", Upstream: domain.RoleAPI, Headers: CORSHeaders()},
		{Prefix: "/", Upstream: domain.RoleWeb},
	})
	if err != nil {
		panic(err) // built-in table is static
	}
	return t
}
