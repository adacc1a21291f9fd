package domain

import (
	"errors"
	"testing"
	"time"
)

func validUnit() *ServiceUnit {
	return &ServiceUnit{
		Name:         "deepstack",
		Project:      "acme-prod",
		Region:       "us-central1",
		Ingress:      IngressAll,
		MinInstances: 0,
		MaxInstances: 4,
		Containers: []Container{
			{
				Role:      RoleProxy,
				Image:     "us-central1/acme-prod/proxy-repo/proxy:stable",
				CPU:       "500m",
				Memory:    "256Mi",
				Port:      8080,
				Probe:     StartupProbe{Protocol: ProbeTCP, Port: 8080, Timeout: time.Second, Period: 2 * time.Second, FailureThreshold: 3},
				DependsOn: []Role{RoleAPI, RoleWeb},
			},
			{
				Role:   RoleAPI,
				Image:  "us-central1/acme-prod/api-repo/api:v1",
				CPU:    "1000m",
				Memory: "512Mi",
				Port:   3000,
				Probe:  StartupProbe{Protocol: ProbeHTTP, Path: "/health", Port: 3000, Timeout: time.Second, Period: 2 * time.Second, FailureThreshold: 3},
			},
			{
				Role:   RoleWeb,
				Image:  "us-central1/acme-prod/web-repo/web:v1",
				CPU:    "500m",
				Memory: "256Mi",
				Port:   3001,
				Probe:  StartupProbe{Protocol: ProbeTCP, Port: 3001, Timeout: time.Second, Period: 2 * time.Second, FailureThreshold: 3},
			},
		},
	}
}

func TestUnitValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(u *ServiceUnit)
		wantErr bool
	}{
		{"valid", func(u *ServiceUnit) {}, false},
		{"bad name", func(u *ServiceUnit) { u.Name = "Bad_Name" }, true},
		{"missing project", func(u *ServiceUnit) { u.Project = "" }, true},
		{"unknown ingress", func(u *ServiceUnit) { u.Ingress = "open-bar" }, true},
		{"max below min", func(u *ServiceUnit) { u.MinInstances = 3; u.MaxInstances = 1 }, true},
		{"missing web", func(u *ServiceUnit) { u.Containers = u.Containers[:2] }, true},
		{"duplicate port", func(u *ServiceUnit) { u.Containers[2].Port = 3000 }, true},
		{"duplicate role", func(u *ServiceUnit) { u.Containers[2].Role = RoleAPI }, true},
		{"proxy missing dependency", func(u *ServiceUnit) { u.Containers[0].DependsOn = []Role{RoleAPI} }, true},
		{"http probe without path", func(u *ServiceUnit) { u.Containers[1].Probe.Path = "" }, true},
		{"zero failure threshold", func(u *ServiceUnit) { u.Containers[1].Probe.FailureThreshold = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUnit()
			tt.mutate(u)
			err := u.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestExternalPortIsProxyPort(t *testing.T) {
	u := validUnit()
	if got := u.ExternalPort(); got != 8080 {
		t.Errorf("ExternalPort() = %d, want 8080", got)
	}
}
