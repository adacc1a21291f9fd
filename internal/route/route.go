package route

import (
	"fmt"
	"strings"

	"github.com/meridian-platform/stackd/internal/domain"
)

// Rule maps a path prefix to an upstream container role, optionally tagging
// responses with extra headers (CORS and friends).
type Rule struct {
	Prefix   string            `yaml:"prefix"`
	Upstream domain.Role       `yaml:"upstream"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

// Table is an ordered rule set. Rules are evaluated in declared order and the
// first matching prefix wins; declaration order is the routing contract, so
// the table is never re-sorted.
type Table struct {
	rules []Rule
}

// NewTable builds a Table and validates it. The table must end with exactly
// one "/" catch-all routed to the web upstream; any rule declared after the
// catch-all is unreachable and rejected.
func NewTable(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: empty route table", domain.ErrInvalidInput)
	}
	catchAlls := 0
	for i, r := range rules {
		if r.Prefix == "" || !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("%w: rule %d: prefix %q must start with /", domain.ErrInvalidInput, i, r.Prefix)
		}
		switch r.Upstream {
		case domain.RoleAPI, domain.RoleWeb:
		default:
			return nil, fmt.Errorf("%w: rule %d: upstream %q is not routable", domain.ErrInvalidInput, i, r.Upstream)
		}
		if r.Prefix == "/" {
			catchAlls++
			if r.Upstream != domain.RoleWeb {
				return nil, fmt.Errorf("%w: catch-all must route to web, got %q", domain.ErrInvalidInput, r.Upstream)
			}
			if i != len(rules)-1 {
				return nil, fmt.Errorf("%w: rule %d is unreachable behind the catch-all", domain.ErrInvalidInput, i+1)
			}
		}
	}
	if catchAlls != 1 {
		return nil, fmt.Errorf("%w: exactly one \"/\" catch-all required, found %d", domain.ErrInvalidInput, catchAlls)
	}
	return &Table{rules: rules}, nil
}

// Rules returns the table in declared order.
func (t *Table) Rules() []Rule {
	return t.rules
}

// Match returns the first rule whose prefix matches the path.
func (t *Table) Match(path string) (Rule, bool) {
	for _, r := range t.rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return Rule{}, false
}
