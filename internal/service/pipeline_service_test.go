package service

import (
	"context"
	"errors"
	"testing"

	"github.com/meridian-platform/stackd/internal/domain"
)

type stubBuilder struct {
	built  []string // "role:tag"
	failOn domain.Role
}

func (b *stubBuilder) Build(_ context.Context, role domain.Role, _ domain.RegistryRepository, tag string) (string, error) {
	if role == b.failOn {
		return "", errors.New("build failed")
	}
	b.built = append(b.built, string(role)+":"+tag)
	return tag, nil
}

func TestPipeline_BuildsInOrderThenDeploys(t *testing.T) {
	dep := &stubDeployer{healthy: true}
	deploys, _ := newDeployService(dep, &stubRegistry{tags: allTags()}, &recordingProvider{})
	builder := &stubBuilder{}
	svc := NewPipelineService(builder, deploys)

	rev, err := svc.Run(context.Background(), testStack(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"proxy:stable", "api:v1", "web:v1"}
	if len(builder.built) != len(want) {
		t.Fatalf("built %v, want %v", builder.built, want)
	}
	for i, b := range want {
		if builder.built[i] != b {
			t.Errorf("build %d = %q, want %q", i, builder.built[i], b)
		}
	}

	// The pipeline re-pins the proxy: it just rebuilt the stable tag.
	if rev.Images[domain.RoleProxy] != "us-central1/acme-prod/proxy-repo/proxy:stable" {
		t.Errorf("proxy image = %q", rev.Images[domain.RoleProxy])
	}
	if rev.Status != domain.RevisionStatusServing {
		t.Errorf("status = %q, want serving", rev.Status)
	}
}

func TestPipeline_BuildFailureAbortsDeploy(t *testing.T) {
	dep := &stubDeployer{healthy: true}
	deploys, revRepo := newDeployService(dep, &stubRegistry{tags: allTags()}, &recordingProvider{})
	builder := &stubBuilder{failOn: domain.RoleAPI}
	svc := NewPipelineService(builder, deploys)

	_, err := svc.Run(context.Background(), testStack(), "v1")
	if err == nil {
		t.Fatal("expected build error")
	}
	if len(dep.deployed) != 0 {
		t.Error("nothing should deploy after a failed build")
	}
	if len(revRepo.revs) != 0 {
		t.Error("no revision should exist after a failed build")
	}
}
