// Package registryapi talks to the image registry's v2 HTTP API to confirm
// that a deploy's tags actually exist before the unit pins them.
package registryapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/port"
)

var _ port.ImageRegistry = (*Client)(nil)

const manifestAccept = "application/vnd.docker.distribution.manifest.v2+json, application/vnd.oci.image.manifest.v1+json"

type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewClient creates a registry client against the given registry host.
// Transient registry errors are retried; 404 is a definitive answer.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
	}
}

func (c *Client) manifestURL(repo domain.RegistryRepository, imageName, tag string) string {
	return fmt.Sprintf("%s/v2/%s/%s/%s/manifests/%s", c.baseURL, repo.Project, repo.RepositoryID, imageName, tag)
}

// TagExists reports whether the tag is present in the repository.
func (c *Client) TagExists(ctx context.Context, repo domain.RegistryRepository, imageName, tag string) (bool, error) {
	resp, err := c.head(ctx, c.manifestURL(repo, imageName, tag))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("registry: unexpected status %d for %s:%s", resp.StatusCode, imageName, tag)
	}
}

// ResolveDigest returns the manifest digest a tag currently points at. Tags
// are immutable by convention here, so the digest is stable per tag.
func (c *Client) ResolveDigest(ctx context.Context, repo domain.RegistryRepository, imageName, tag string) (string, error) {
	resp, err := c.head(ctx, c.manifestURL(repo, imageName, tag))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s:%s", domain.ErrImageNotFound, imageName, tag)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry: unexpected status %d for %s:%s", resp.StatusCode, imageName, tag)
	}
	digest := resp.Header.Get("Docker-Content-Digest")
	if digest == "" {
		return "", fmt.Errorf("registry: no digest header for %s:%s", imageName, tag)
	}
	return digest, nil
}

func (c *Client) head(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: build request: %w", err)
	}
	req.Header.Set("Accept", manifestAccept)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry: request failed: %w", err)
	}
	return resp, nil
}
