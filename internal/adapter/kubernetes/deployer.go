package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/health"
	"github.com/meridian-platform/stackd/internal/port"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
)

var _ port.UnitDeployer = (*UnitDeployer)(nil)

const defaultNamespace = "default"

// Annotations carrying unit-level policy the scheduler itself does not model.
const (
	annotationIngress      = "stackd.dev/ingress"
	annotationMinInstances = "stackd.dev/min-instances"
	annotationMaxInstances = "stackd.dev/max-instances"
	annotationRevision     = "stackd.dev/revision"
	annotationVersion      = "stackd.dev/version"
)

// UnitDeployer realizes a ServiceUnit as a single Deployment whose pod
// template carries all three containers, so the group is scheduled, scaled
// and replaced as one. A Service exposes only the proxy's external port.
type UnitDeployer struct {
	client    kubernetes.Interface
	namespace string
}

func NewUnitDeployer(client kubernetes.Interface, namespace string) *UnitDeployer {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &UnitDeployer{client: client, namespace: namespace}
}

func (d *UnitDeployer) Deploy(ctx context.Context, unit *domain.ServiceUnit, rev *domain.Revision) error {
	if err := d.applyDeployment(ctx, unit, rev); err != nil {
		return fmt.Errorf("apply deployment: %w", err)
	}
	if err := d.applyService(ctx, unit); err != nil {
		return fmt.Errorf("apply service: %w", err)
	}
	if err := d.waitForRollout(ctx, unit.Name); err != nil {
		return fmt.Errorf("wait for rollout: %w", err)
	}
	return nil
}

func (d *UnitDeployer) Delete(ctx context.Context, unit *domain.ServiceUnit) error {
	if err := d.client.AppsV1().Deployments(d.namespace).Delete(ctx, unit.Name, metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("delete deployment %s: %w", unit.Name, err)
	}
	if err := d.client.CoreV1().Services(d.namespace).Delete(ctx, unit.Name, metav1.DeleteOptions{}); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("delete service %s: %w", unit.Name, err)
	}
	return nil
}

// Health derives the unit report from pod container statuses: a container's
// startup probe outcome surfaces as its Started flag.
func (d *UnitDeployer) Health(ctx context.Context, unit *domain.ServiceUnit) (health.Report, error) {
	pods, err := d.client.CoreV1().Pods(d.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "unit=" + unit.Name,
	})
	if err != nil {
		return health.Report{}, fmt.Errorf("list pods for %s: %w", unit.Name, err)
	}

	probeReady := make(map[domain.Role]bool, len(unit.Containers))
	for i := range pods.Items {
		for _, cs := range pods.Items[i].Status.ContainerStatuses {
			role := domain.Role(cs.Name)
			started := cs.Started != nil && *cs.Started && cs.Ready
			// Every replica must pass; one failing replica fails the role.
			if current, seen := probeReady[role]; seen {
				probeReady[role] = current && started
			} else {
				probeReady[role] = started
			}
		}
	}
	return health.Evaluate(unit, probeReady), nil
}

func (d *UnitDeployer) applyDeployment(ctx context.Context, unit *domain.ServiceUnit, rev *domain.Revision) error {
	labels := map[string]string{"unit": unit.Name}

	containers := make([]corev1.Container, 0, len(unit.Containers))
	for _, role := range domain.Roles {
		c, ok := unit.Container(role)
		if !ok {
			return fmt.Errorf("%w: missing container role %q", domain.ErrInvalidInput, role)
		}
		k8sContainer, err := toK8sContainer(c, rev.Images[role])
		if err != nil {
			return err
		}
		containers = append(containers, k8sContainer)
	}

	replicas := int32(unit.MinInstances)
	if replicas < 1 {
		replicas = 1
	}
	revisionHistoryLimit := int32(2)

	deploy := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      unit.Name,
			Namespace: d.namespace,
			Labels:    labels,
			Annotations: map[string]string{
				annotationIngress:      string(unit.Ingress),
				annotationMinInstances: fmt.Sprintf("%d", unit.MinInstances),
				annotationMaxInstances: fmt.Sprintf("%d", unit.MaxInstances),
				annotationRevision:     rev.ID,
				annotationVersion:      rev.Version,
			},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas:             &replicas,
			RevisionHistoryLimit: &revisionHistoryLimit,
			Selector:             &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: containers,
				},
			},
		},
	}

	existing, err := d.client.AppsV1().Deployments(d.namespace).Get(ctx, unit.Name, metav1.GetOptions{})
	if errors.IsNotFound(err) {
		_, err = d.client.AppsV1().Deployments(d.namespace).Create(ctx, deploy, metav1.CreateOptions{})
		return err
	}
	if err != nil {
		return err
	}
	existing.Annotations = deploy.Annotations
	existing.Spec = deploy.Spec
	_, err = d.client.AppsV1().Deployments(d.namespace).Update(ctx, existing, metav1.UpdateOptions{})
	return err
}

// annotationInternalLB marks a Service whose load balancer must not be
// reachable from outside the network fabric.
const annotationInternalLB = "networking.gke.io/load-balancer-type"

// serviceTypeFor maps the unit's ingress policy onto the Service. Only "all"
// and "load-balancer-only" get an external address; "internal-only" stays a
// ClusterIP so unauthenticated external requests have nothing to reach.
func serviceTypeFor(policy domain.IngressPolicy) (corev1.ServiceType, map[string]string) {
	annotations := map[string]string{annotationIngress: string(policy)}
	switch policy {
	case domain.IngressInternalOnly:
		return corev1.ServiceTypeClusterIP, annotations
	case domain.IngressLoadBalancer:
		annotations[annotationInternalLB] = "Internal"
		return corev1.ServiceTypeLoadBalancer, annotations
	default:
		return corev1.ServiceTypeLoadBalancer, annotations
	}
}

func (d *UnitDeployer) applyService(ctx context.Context, unit *domain.ServiceUnit) error {
	labels := map[string]string{"unit": unit.Name}
	externalPort := unit.ExternalPort()
	svcType, annotations := serviceTypeFor(unit.Ingress)

	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:        unit.Name,
			Namespace:   d.namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: corev1.ServiceSpec{
			Type:     svcType,
			Selector: labels,
			Ports: []corev1.ServicePort{
				{
					Port:       int32(externalPort),
					TargetPort: intstr.FromInt(externalPort),
				},
			},
		},
	}

	existing, err := d.client.CoreV1().Services(d.namespace).Get(ctx, unit.Name, metav1.GetOptions{})
	if errors.IsNotFound(err) {
		_, err = d.client.CoreV1().Services(d.namespace).Create(ctx, svc, metav1.CreateOptions{})
		return err
	}
	if err != nil {
		return err
	}
	existing.Annotations = svc.Annotations
	existing.Spec.Type = svc.Spec.Type
	existing.Spec.Ports = svc.Spec.Ports
	_, err = d.client.CoreV1().Services(d.namespace).Update(ctx, existing, metav1.UpdateOptions{})
	return err
}

func toK8sContainer(c *domain.Container, image string) (corev1.Container, error) {
	limits, err := resourceLimits(c)
	if err != nil {
		return corev1.Container{}, err
	}
	return corev1.Container{
		Name:  string(c.Role),
		Image: image,
		Ports: []corev1.ContainerPort{
			{ContainerPort: int32(c.Port)},
		},
		Env:          envsToK8s(c.Env),
		Resources:    corev1.ResourceRequirements{Limits: limits},
		StartupProbe: probeToK8s(c.Probe),
	}, nil
}

func resourceLimits(c *domain.Container) (corev1.ResourceList, error) {
	limits := corev1.ResourceList{}
	if c.CPU != "" {
		q, err := resource.ParseQuantity(c.CPU)
		if err != nil {
			return nil, fmt.Errorf("%w: container %q cpu %q: %v", domain.ErrInvalidInput, c.Role, c.CPU, err)
		}
		limits[corev1.ResourceCPU] = q
	}
	if c.Memory != "" {
		q, err := resource.ParseQuantity(c.Memory)
		if err != nil {
			return nil, fmt.Errorf("%w: container %q memory %q: %v", domain.ErrInvalidInput, c.Role, c.Memory, err)
		}
		limits[corev1.ResourceMemory] = q
	}
	return limits, nil
}

// envsToK8s preserves the declared order of the unit's environment entries.
func envsToK8s(envs []domain.EnvVar) []corev1.EnvVar {
	result := make([]corev1.EnvVar, 0, len(envs))
	for _, e := range envs {
		result = append(result, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}
	return result
}

func probeToK8s(p domain.StartupProbe) *corev1.Probe {
	probe := &corev1.Probe{
		TimeoutSeconds:   int32(p.Timeout / time.Second),
		PeriodSeconds:    int32(p.Period / time.Second),
		FailureThreshold: int32(p.FailureThreshold),
	}
	if probe.TimeoutSeconds < 1 {
		probe.TimeoutSeconds = 1
	}
	if probe.PeriodSeconds < 1 {
		probe.PeriodSeconds = 1
	}
	switch p.Protocol {
	case domain.ProbeHTTP:
		probe.HTTPGet = &corev1.HTTPGetAction{
			Path: p.Path,
			Port: intstr.FromInt(p.Port),
		}
	default:
		probe.TCPSocket = &corev1.TCPSocketAction{
			Port: intstr.FromInt(p.Port),
		}
	}
	return probe
}

const (
	rolloutTimeout  = 5 * time.Minute
	rolloutInterval = 3 * time.Second
)

// waitForRollout polls the Deployment until every replica is ready or the
// rollout is declared stuck.
func (d *UnitDeployer) waitForRollout(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, rolloutTimeout)
	defer cancel()

	ticker := time.NewTicker(rolloutInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("deployment %s rollout timed out after %s", name, rolloutTimeout)
		case <-ticker.C:
			deploy, err := d.client.AppsV1().Deployments(d.namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return fmt.Errorf("get deployment %s: %w", name, err)
			}

			for _, cond := range deploy.Status.Conditions {
				if cond.Type == appsv1.DeploymentProgressing && cond.Status == corev1.ConditionFalse {
					return fmt.Errorf("deployment %s is not progressing: %s", name, cond.Message)
				}
			}

			spec := deploy.Spec
			status := deploy.Status
			if status.ObservedGeneration >= deploy.Generation &&
				status.UpdatedReplicas == *spec.Replicas &&
				status.AvailableReplicas == *spec.Replicas {
				slog.Info("unit rollout complete", "unit", name)
				return nil
			}
		}
	}
}
