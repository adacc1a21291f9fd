package kubernetes

import (
	"context"
	"fmt"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/port"
)

var _ port.ImageBuilder = (*JobImageBuilder)(nil)

const labelBuildRole = "stackd.dev/build-role"

// JobImageBuilder builds one container role's image as an in-cluster kaniko
// job and blocks until the job finishes. The three roles of a unit build from
// subdirectories of a single source repository.
type JobImageBuilder struct {
	client         kubernetes.Interface
	namespace      string
	builderImage   string
	registrySecret string
	sourceRepo     string
	sourceRef      string
	contextDirs    map[domain.Role]string
	pollInterval   time.Duration
	timeout        time.Duration
}

type BuildConfig struct {
	Namespace      string
	BuilderImage   string
	RegistrySecret string
	SourceRepo     string
	SourceRef      string
	ContextDirs    map[domain.Role]string
	PollInterval   time.Duration
	Timeout        time.Duration
}

func NewJobImageBuilder(client kubernetes.Interface, cfg BuildConfig) *JobImageBuilder {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}
	return &JobImageBuilder{
		client:         client,
		namespace:      cfg.Namespace,
		builderImage:   cfg.BuilderImage,
		registrySecret: cfg.RegistrySecret,
		sourceRepo:     cfg.SourceRepo,
		sourceRef:      cfg.SourceRef,
		contextDirs:    cfg.ContextDirs,
		pollInterval:   cfg.PollInterval,
		timeout:        cfg.Timeout,
	}
}

func (b *JobImageBuilder) Build(ctx context.Context, role domain.Role, repo domain.RegistryRepository, tag string) (string, error) {
	dest := repo.ImageRef(string(role), tag)
	jobName := buildJobName(role, tag)
	ttl := int32(3600)
	backoff := int32(0)

	args := []string{
		fmt.Sprintf("--context=%s#%s", b.sourceRepo, b.sourceRef),
		fmt.Sprintf("--destination=%s", dest),
		"--cache=true",
	}
	if dir := b.contextDirs[role]; dir != "" && dir != "." {
		args = append(args, fmt.Sprintf("--context-sub-path=%s", dir))
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: b.namespace,
			Labels:    map[string]string{labelBuildRole: string(role)},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoff,
			TTLSecondsAfterFinished: &ttl,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{labelBuildRole: string(role)},
				},
				Spec: b.podSpec(args),
			},
		},
	}

	if _, err := b.client.BatchV1().Jobs(b.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return "", fmt.Errorf("submit build job %s: %w", jobName, err)
	}
	if err := b.waitForJob(ctx, jobName); err != nil {
		return "", err
	}
	return tag, nil
}

func (b *JobImageBuilder) podSpec(args []string) corev1.PodSpec {
	spec := corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyNever,
		Containers: []corev1.Container{
			{
				Name:  "kaniko",
				Image: b.builderImage,
				Args:  args,
			},
		},
	}
	if b.registrySecret != "" {
		volumeName := "docker-config"
		spec.Volumes = []corev1.Volume{
			{
				Name: volumeName,
				VolumeSource: corev1.VolumeSource{
					Secret: &corev1.SecretVolumeSource{
						SecretName: b.registrySecret,
						Items: []corev1.KeyToPath{
							{Key: ".dockerconfigjson", Path: "config.json"},
						},
					},
				},
			},
		}
		spec.Containers[0].VolumeMounts = []corev1.VolumeMount{
			{Name: volumeName, MountPath: "/kaniko/.docker", ReadOnly: true},
		}
	}
	return spec
}

func (b *JobImageBuilder) waitForJob(ctx context.Context, jobName string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("build job %s: %w", jobName, ctx.Err())
		case <-ticker.C:
			job, err := b.client.BatchV1().Jobs(b.namespace).Get(ctx, jobName, metav1.GetOptions{})
			if err != nil {
				return fmt.Errorf("get build job %s: %w", jobName, err)
			}
			done, failMsg := jobFinished(job)
			if !done {
				continue
			}
			if failMsg != "" {
				return fmt.Errorf("build job %s failed: %s", jobName, failMsg)
			}
			return nil
		}
	}
}

func jobFinished(job *batchv1.Job) (done bool, failMsg string) {
	for _, cond := range job.Status.Conditions {
		if cond.Type == batchv1.JobComplete && cond.Status == corev1.ConditionTrue {
			return true, ""
		}
		if cond.Type == batchv1.JobFailed && cond.Status == corev1.ConditionTrue {
			msg := cond.Message
			if msg == "" {
				msg = "job failed"
			}
			return true, msg
		}
	}
	return false, ""
}

// buildJobName derives a DNS-safe job name from the role and tag.
func buildJobName(role domain.Role, tag string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, tag)
	return fmt.Sprintf("build-%s-%s", role, sanitized)
}
