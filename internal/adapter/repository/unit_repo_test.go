package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
)

func TestUnitModelRoundTrip(t *testing.T) {
	unit := &domain.ServiceUnit{
		Name:         "deepstack",
		Project:      "acme-prod",
		Region:       "us-central1",
		Ingress:      domain.IngressAll,
		MinInstances: 1,
		MaxInstances: 4,
		Containers: []domain.Container{
			{
				Role: domain.RoleAPI,
				Port: 3000,
				Env: []domain.EnvVar{
					{Name: "MODE", Value: "production"},
					{Name: "API_KEY", Value: "hunter2", Secret: true},
				},
				Probe: domain.StartupProbe{Protocol: domain.ProbeHTTP, Path: "/health", Port: 3000, Timeout: time.Second, Period: 2 * time.Second, FailureThreshold: 3},
			},
		},
	}

	model, err := unitToModel(unit)
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	back, err := modelToUnit(model)
	if err != nil {
		t.Fatalf("from model: %v", err)
	}

	api := back.Containers[0]
	if len(api.Env) != 2 {
		t.Fatalf("env vars lost: %+v", api.Env)
	}
	// The domain type redacts Value from JSON; persistence must not.
	if api.Env[1].Value != "hunter2" || !api.Env[1].Secret {
		t.Errorf("secret env not persisted losslessly: %+v", api.Env[1])
	}
	if api.Env[0].Name != "MODE" || api.Env[1].Name != "API_KEY" {
		t.Errorf("env order not preserved: %+v", api.Env)
	}
	if api.Probe.Period != 2*time.Second {
		t.Errorf("probe period = %v", api.Probe.Period)
	}
}

func TestUnitModelRedactsNothingButLogsDo(t *testing.T) {
	// Guard against the opposite failure: the persisted JSON may carry the
	// raw value, but the env var's printed form must not.
	e := domain.EnvVar{Name: "API_KEY", Value: "hunter2", Secret: true}
	if strings.Contains(e.String(), "hunter2") {
		t.Error("String() leaked a secret value")
	}
}
