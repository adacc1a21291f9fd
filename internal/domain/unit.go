package domain

import (
	"fmt"
	"time"
)

// Role identifies a container's function inside a ServiceUnit.
type Role string

const (
	RoleProxy Role = "proxy"
	RoleAPI   Role = "api"
	RoleWeb   Role = "web"
)

// Roles lists every role a complete unit must carry, in deploy order.
var Roles = []Role{RoleProxy, RoleAPI, RoleWeb}

// IngressPolicy controls which external traffic classes reach the unit.
type IngressPolicy string

const (
	IngressAll          IngressPolicy = "all"
	IngressInternalOnly IngressPolicy = "internal-only"
	IngressLoadBalancer IngressPolicy = "load-balancer-only"
)

// ProbeProtocol is the startup probe check type.
type ProbeProtocol string

const (
	ProbeTCP  ProbeProtocol = "tcp"
	ProbeHTTP ProbeProtocol = "http"
)

// StartupProbe gates a container's readiness. A container is ready after one
// successful check and failed after FailureThreshold consecutive failures,
// checked every Period.
type StartupProbe struct {
	Protocol         ProbeProtocol `json:"protocol" yaml:"protocol"`
	Path             string        `json:"path,omitempty" yaml:"path,omitempty"` // http only
	Port             int           `json:"port" yaml:"port"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	Period           time.Duration `json:"period" yaml:"period"`
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"`
}

// Container is one process image with a role inside a ServiceUnit.
type Container struct {
	Role      Role         `json:"role" yaml:"role"`
	Image     string       `json:"image,omitempty" yaml:"image,omitempty"` // pinned at deploy; empty on the definition
	CPU       string       `json:"cpu" yaml:"cpu"`     // e.g. "1000m"
	Memory    string       `json:"memory" yaml:"memory"`
	Port      int          `json:"port" yaml:"port"`
	Env       []EnvVar     `json:"env,omitempty" yaml:"env,omitempty"` // order preserved
	Probe     StartupProbe `json:"probe" yaml:"probe"`
	DependsOn []Role       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// ServiceUnit is the atomically scheduled group of containers forming one
// deployable revision. All containers are scheduled together, scale together
// and share a lifecycle; a deploy replaces the whole group, never a subset.
type ServiceUnit struct {
	Name         string        `json:"name" yaml:"name"`
	Project      string        `json:"project" yaml:"project"`
	Region       string        `json:"region" yaml:"region"`
	Ingress      IngressPolicy `json:"ingress" yaml:"ingress"`
	MinInstances int           `json:"min_instances" yaml:"min_instances"`
	MaxInstances int           `json:"max_instances" yaml:"max_instances"`
	Containers   []Container   `json:"containers" yaml:"containers"`
	CreatedAt    time.Time     `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time     `json:"updated_at" yaml:"-"`
}

// Container returns the container holding the given role.
func (u *ServiceUnit) Container(role Role) (*Container, bool) {
	for i := range u.Containers {
		if u.Containers[i].Role == role {
			return &u.Containers[i], true
		}
	}
	return nil, false
}

// ExternalPort is the unit's single externally exposed port, owned by the
// proxy container.
func (u *ServiceUnit) ExternalPort() int {
	if c, ok := u.Container(RoleProxy); ok {
		return c.Port
	}
	return 0
}

// Validate checks the unit invariants: exactly one container per role, unique
// ports, and the proxy declaring its dependency on api and web.
func (u *ServiceUnit) Validate() error {
	if err := ValidateResourceName(u.Name); err != nil {
		return err
	}
	if u.Project == "" || u.Region == "" {
		return fmt.Errorf("%w: project and region are required", ErrInvalidInput)
	}
	switch u.Ingress {
	case IngressAll, IngressInternalOnly, IngressLoadBalancer:
	default:
		return fmt.Errorf("%w: unknown ingress policy %q", ErrInvalidInput, u.Ingress)
	}
	if u.MinInstances < 0 || u.MaxInstances < u.MinInstances {
		return fmt.Errorf("%w: instance bounds %d..%d", ErrInvalidInput, u.MinInstances, u.MaxInstances)
	}

	seen := make(map[Role]bool, len(u.Containers))
	ports := make(map[int]Role, len(u.Containers))
	for i := range u.Containers {
		c := &u.Containers[i]
		if seen[c.Role] {
			return fmt.Errorf("%w: duplicate container role %q", ErrInvalidInput, c.Role)
		}
		seen[c.Role] = true
		if err := c.Validate(); err != nil {
			return fmt.Errorf("container %q: %w", c.Role, err)
		}
		if prev, taken := ports[c.Port]; taken {
			return fmt.Errorf("%w: port %d shared by %q and %q", ErrInvalidInput, c.Port, prev, c.Role)
		}
		ports[c.Port] = c.Role
	}
	for _, role := range Roles {
		if !seen[role] {
			return fmt.Errorf("%w: missing container role %q", ErrInvalidInput, role)
		}
	}

	proxy, _ := u.Container(RoleProxy)
	if !dependsOn(proxy, RoleAPI) || !dependsOn(proxy, RoleWeb) {
		return fmt.Errorf("%w: proxy container must depend on api and web", ErrInvalidInput)
	}
	return nil
}

// Validate checks a single container's invariants. Image may be empty: it is
// pinned per revision at deploy time, not on the unit definition.
func (c *Container) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidInput, c.Port)
	}
	switch c.Probe.Protocol {
	case ProbeTCP:
	case ProbeHTTP:
		if c.Probe.Path == "" {
			return fmt.Errorf("%w: http probe requires a path", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown probe protocol %q", ErrInvalidInput, c.Probe.Protocol)
	}
	if c.Probe.Port <= 0 {
		return fmt.Errorf("%w: probe port is required", ErrInvalidInput)
	}
	if c.Probe.FailureThreshold <= 0 || c.Probe.Period <= 0 || c.Probe.Timeout <= 0 {
		return fmt.Errorf("%w: probe timeout, period and failure threshold must be positive", ErrInvalidInput)
	}
	for _, dep := range c.DependsOn {
		if dep == c.Role {
			return fmt.Errorf("%w: container %q depends on itself", ErrInvalidInput, c.Role)
		}
	}
	return nil
}

func dependsOn(c *Container, role Role) bool {
	for _, dep := range c.DependsOn {
		if dep == role {
			return true
		}
	}
	return false
}
