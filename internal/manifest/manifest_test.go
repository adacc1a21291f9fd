package manifest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
)

const sampleManifest = `
unit:
  name: deepstack
  project: acme-prod
  region: us-central1
  ingress: all
  min_instances: 1
  max_instances: 4
  containers:
    - role: proxy
      port: 8080
      probe:
        protocol: tcp
        port: 8080
        timeout_seconds: 1
        period_seconds: 2
        failure_threshold: 3
      depends_on: [api, web]
    - role: api
      port: 3000
      env:
        - name: MODE
          value: production
        - name: API_KEY
          value: hunter2
          secret: true
      probe:
        protocol: http
        path: /health
        timeout_seconds: 1
        period_seconds: 2
        failure_threshold: 3
    - role: web
      port: 3001
      probe:
        protocol: tcp
        port: 3001
        timeout_seconds: 1
        period_seconds: 2
        failure_threshold: 3
fabric:
  name: deepstack-net
  region: us-central1
  subnet_cidr: 10.8.0.0/28
  router_name: deepstack-router
  nat_name: deepstack-nat
connector:
  name: deepstack-conn
  min_instances: 2
  max_instances: 3
  egress: all-traffic
identity:
  account_id: deepstack-runner
  roles: [run.developer]
  public_invoke: true
repositories:
  proxy: {repository_id: proxy-repo}
  api: {repository_id: api-repo}
  web: {repository_id: web-repo}
`

func TestParseToDomain(t *testing.T) {
	m, err := Parse([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	stack, err := m.ToDomain()
	if err != nil {
		t.Fatalf("to domain: %v", err)
	}

	if stack.Unit.Name != "deepstack" {
		t.Errorf("unit name = %q", stack.Unit.Name)
	}
	api, ok := stack.Unit.Container(domain.RoleAPI)
	if !ok {
		t.Fatal("api container missing")
	}
	if api.Probe.Period != 2*time.Second {
		t.Errorf("probe period = %v", api.Probe.Period)
	}
	// A probe with no port falls back to the container port.
	if api.Probe.Port != 3000 {
		t.Errorf("probe port = %d, want container port 3000", api.Probe.Port)
	}
	if len(api.Env) != 2 || !api.Env[1].Secret {
		t.Errorf("env not preserved: %+v", api.Env)
	}
	if api.Env[1].Value != "hunter2" {
		t.Error("secret value must survive manifest conversion")
	}

	// Repository project and region default to the unit's.
	repo := stack.Repositories[domain.RoleAPI]
	if repo.Project != "acme-prod" || repo.Region != "us-central1" {
		t.Errorf("repo defaults not applied: %+v", repo)
	}
	if stack.ProxyStableTag != "stable" {
		t.Errorf("proxy stable tag = %q", stack.ProxyStableTag)
	}
}

func TestToDomainValidates(t *testing.T) {
	broken := strings.Replace(sampleManifest, "name: deepstack\n", "name: Deep_Stack!\n", 1)
	m, err := Parse([]byte(broken))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := m.ToDomain(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("unit: [not a map")); err == nil {
		t.Fatal("expected parse error")
	}
}
