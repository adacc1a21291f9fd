package kubernetes

import (
	"context"
	"testing"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	fakeclient "k8s.io/client-go/kubernetes/fake"
)

func testUnit() *domain.ServiceUnit {
	return &domain.ServiceUnit{
		Name:         "deepstack",
		Project:      "acme-prod",
		Region:       "us-central1",
		Ingress:      domain.IngressAll,
		MinInstances: 1,
		MaxInstances: 4,
		Containers: []domain.Container{
			{
				Role:   domain.RoleAPI,
				Image:  "unused",
				CPU:    "1000m",
				Memory: "512Mi",
				Port:   3000,
				Env: []domain.EnvVar{
					{Name: "PORT", Value: "3000"},
					{Name: "MODE", Value: "production"},
					{Name: "SECRET_KEY", Value: "s3cret", Secret: true},
				},
				Probe: domain.StartupProbe{Protocol: domain.ProbeHTTP, Path: "/health", Port: 3000, Timeout: time.Second, Period: 2 * time.Second, FailureThreshold: 3},
			},
			{
				Role:      domain.RoleProxy,
				Image:     "unused",
				CPU:       "500m",
				Memory:    "256Mi",
				Port:      8080,
				Probe:     domain.StartupProbe{Protocol: domain.ProbeTCP, Port: 8080, Timeout: time.Second, Period: 2 * time.Second, FailureThreshold: 3},
				DependsOn: []domain.Role{domain.RoleAPI, domain.RoleWeb},
			},
			{
				Role:  domain.RoleWeb,
				Image: "unused",
				Port:  3001,
				Env:   []domain.EnvVar{{Name: "PORT", Value: "3001"}},
				Probe: domain.StartupProbe{Protocol: domain.ProbeTCP, Port: 3001, Timeout: time.Second, Period: 2 * time.Second, FailureThreshold: 3},
			},
		},
	}
}

func testRevision() *domain.Revision {
	return &domain.Revision{
		ID:       "rev-1",
		UnitName: "deepstack",
		Version:  "v1",
		Images: map[domain.Role]string{
			domain.RoleProxy: "us-central1/acme-prod/proxy-repo/proxy:stable",
			domain.RoleAPI:   "us-central1/acme-prod/api-repo/api:v1",
			domain.RoleWeb:   "us-central1/acme-prod/web-repo/web:v1",
		},
	}
}

func TestApplyDeploymentSingleGroup(t *testing.T) {
	client := fakeclient.NewSimpleClientset()
	d := NewUnitDeployer(client, "default")

	if err := d.applyDeployment(context.Background(), testUnit(), testRevision()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deploy, err := client.AppsV1().Deployments("default").Get(context.Background(), "deepstack", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get deployment: %v", err)
	}

	containers := deploy.Spec.Template.Spec.Containers
	if len(containers) != 3 {
		t.Fatalf("got %d containers in one pod, want 3", len(containers))
	}
	// All three roles share the pod, in canonical role order.
	for i, want := range []string{"proxy", "api", "web"} {
		if containers[i].Name != want {
			t.Errorf("containers[%d] = %q, want %q", i, containers[i].Name, want)
		}
	}
	if containers[0].Image != "us-central1/acme-prod/proxy-repo/proxy:stable" {
		t.Errorf("proxy image = %q", containers[0].Image)
	}

	api := containers[1]
	if api.StartupProbe == nil || api.StartupProbe.HTTPGet == nil || api.StartupProbe.HTTPGet.Path != "/health" {
		t.Errorf("api startup probe not mapped: %+v", api.StartupProbe)
	}
	if api.StartupProbe.FailureThreshold != 3 {
		t.Errorf("failure threshold = %d, want 3", api.StartupProbe.FailureThreshold)
	}
	// Declared env order is preserved.
	var names []string
	for _, e := range api.Env {
		names = append(names, e.Name)
	}
	for i, want := range []string{"PORT", "MODE", "SECRET_KEY"} {
		if names[i] != want {
			t.Errorf("env[%d] = %q, want %q", i, names[i], want)
		}
	}
	if api.Resources.Limits.Memory().String() != "512Mi" {
		t.Errorf("api memory limit = %s", api.Resources.Limits.Memory())
	}

	if deploy.Annotations[annotationIngress] != "all" {
		t.Errorf("ingress annotation = %q", deploy.Annotations[annotationIngress])
	}
	if deploy.Annotations[annotationMaxInstances] != "4" {
		t.Errorf("max instances annotation = %q", deploy.Annotations[annotationMaxInstances])
	}
}

func TestApplyDeploymentReplacesWholesale(t *testing.T) {
	client := fakeclient.NewSimpleClientset()
	d := NewUnitDeployer(client, "default")
	unit := testUnit()

	if err := d.applyDeployment(context.Background(), unit, testRevision()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rev2 := testRevision()
	rev2.ID = "rev-2"
	rev2.Version = "v2"
	rev2.Images[domain.RoleAPI] = "us-central1/acme-prod/api-repo/api:v2"
	rev2.Images[domain.RoleWeb] = "us-central1/acme-prod/web-repo/web:v2"

	if err := d.applyDeployment(context.Background(), unit, rev2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deploy, _ := client.AppsV1().Deployments("default").Get(context.Background(), "deepstack", metav1.GetOptions{})
	containers := deploy.Spec.Template.Spec.Containers
	if containers[1].Image != "us-central1/acme-prod/api-repo/api:v2" {
		t.Errorf("api image not replaced: %q", containers[1].Image)
	}
	if containers[0].Image != "us-central1/acme-prod/proxy-repo/proxy:stable" {
		t.Errorf("proxy image should be untouched: %q", containers[0].Image)
	}
	if deploy.Annotations[annotationRevision] != "rev-2" {
		t.Errorf("revision annotation = %q", deploy.Annotations[annotationRevision])
	}
}

func TestApplyServiceExposesProxyPortOnly(t *testing.T) {
	client := fakeclient.NewSimpleClientset()
	d := NewUnitDeployer(client, "default")

	if err := d.applyService(context.Background(), testUnit()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc, err := client.CoreV1().Services("default").Get(context.Background(), "deepstack", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get service: %v", err)
	}
	if len(svc.Spec.Ports) != 1 {
		t.Fatalf("got %d service ports, want 1", len(svc.Spec.Ports))
	}
	if svc.Spec.Ports[0].Port != 8080 {
		t.Errorf("service port = %d, want the proxy's 8080", svc.Spec.Ports[0].Port)
	}
}

func TestApplyServiceRealizesIngressPolicy(t *testing.T) {
	cases := []struct {
		policy     domain.IngressPolicy
		wantType   corev1.ServiceType
		internalLB bool
	}{
		{domain.IngressAll, corev1.ServiceTypeLoadBalancer, false},
		{domain.IngressInternalOnly, corev1.ServiceTypeClusterIP, false},
		{domain.IngressLoadBalancer, corev1.ServiceTypeLoadBalancer, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			client := fakeclient.NewSimpleClientset()
			d := NewUnitDeployer(client, "default")
			unit := testUnit()
			unit.Ingress = tc.policy

			if err := d.applyService(context.Background(), unit); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			svc, err := client.CoreV1().Services("default").Get(context.Background(), "deepstack", metav1.GetOptions{})
			if err != nil {
				t.Fatalf("get service: %v", err)
			}
			if svc.Spec.Type != tc.wantType {
				t.Errorf("service type = %q, want %q", svc.Spec.Type, tc.wantType)
			}
			if got := svc.Annotations[annotationInternalLB] == "Internal"; got != tc.internalLB {
				t.Errorf("internal LB annotation present = %v, want %v", got, tc.internalLB)
			}
			if svc.Annotations[annotationIngress] != string(tc.policy) {
				t.Errorf("ingress annotation = %q", svc.Annotations[annotationIngress])
			}
		})
	}
}

func TestApplyServiceUpdateChangesType(t *testing.T) {
	client := fakeclient.NewSimpleClientset()
	d := NewUnitDeployer(client, "default")
	unit := testUnit()

	if err := d.applyService(context.Background(), unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Tightening the policy on an existing unit must reach the live Service.
	unit.Ingress = domain.IngressInternalOnly
	if err := d.applyService(context.Background(), unit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc, _ := client.CoreV1().Services("default").Get(context.Background(), "deepstack", metav1.GetOptions{})
	if svc.Spec.Type != corev1.ServiceTypeClusterIP {
		t.Errorf("service type after tightening = %q, want ClusterIP", svc.Spec.Type)
	}
}

func TestHealthFromPodStatuses(t *testing.T) {
	started := func(b bool) *bool { return &b }

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "deepstack-abc",
			Namespace: "default",
			Labels:    map[string]string{"unit": "deepstack"},
		},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "proxy", Started: started(true), Ready: true},
				{Name: "api", Started: started(false), Ready: false},
				{Name: "web", Started: started(true), Ready: true},
			},
		},
	}

	client := fakeclient.NewSimpleClientset(pod)
	d := NewUnitDeployer(client, "default")

	report, err := d.Health(context.Background(), testUnit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Healthy {
		t.Error("unit should be unhealthy while api probe is failing")
	}
	if !report.Containers[domain.RoleProxy].ProbeReady {
		t.Error("proxy probe should pass independently of api")
	}
	if report.Containers[domain.RoleProxy].Ready {
		t.Error("proxy must not be ready while api is down")
	}
}

func TestDeleteMissingResourcesTolerated(t *testing.T) {
	client := fakeclient.NewSimpleClientset()
	d := NewUnitDeployer(client, "default")
	if err := d.Delete(context.Background(), testUnit()); err != nil {
		t.Errorf("delete of absent unit should be idempotent, got %v", err)
	}
}
