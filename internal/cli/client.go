package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/manifest"
)

// Client talks to the stackd control-plane API. Requests are not retried:
// a deploy is not idempotent and the caller decides whether to try again.
type Client struct {
	baseURL  string
	apiToken string
	httpc    *http.Client
}

func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpc:    &http.Client{Timeout: 30 * time.Minute},
	}
}

type deployPayload struct {
	Stack         manifest.Stack `json:"stack"`
	Version       string         `json:"version"`
	RedeployProxy bool           `json:"redeploy_proxy"`
}

type deployResult struct {
	Revision *domain.Revision `json:"revision"`
	Message  string           `json:"message,omitempty"`
}

type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (c *Client) Deploy(ctx context.Context, m *manifest.Stack, version string, redeployProxy bool) (*domain.Revision, error) {
	payload := deployPayload{Stack: *m, Version: version, RedeployProxy: redeployProxy}
	var result deployResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/deploys", payload, &result); err != nil {
		return nil, err
	}
	if result.Message != "" {
		return result.Revision, fmt.Errorf("%s", result.Message)
	}
	return result.Revision, nil
}

func (c *Client) Status(ctx context.Context, unit string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v1/units/"+unit+"/status", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) Logs(ctx context.Context, unit, container, since string, limit int) (string, error) {
	path := fmt.Sprintf("/api/v1/units/%s/logs?since=%s&limit=%d", unit, since, limit)
	if container != "" {
		path += "&container=" + container
	}
	var result struct {
		Logs string `json:"logs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	return result.Logs, nil
}

func (c *Client) Teardown(ctx context.Context, m *manifest.Stack) error {
	return c.do(ctx, http.MethodPost, "/api/v1/units/"+m.Unit.Name+"/teardown", m, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("X-API-Key", c.apiToken)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, data)
	}
	if env.Error != "" {
		return fmt.Errorf("%s", env.Error)
	}
	if resp.StatusCode >= 400 && out == nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return err
		}
	}
	if resp.StatusCode >= 400 {
		if result, ok := out.(*deployResult); ok && result.Message != "" {
			return nil // caller surfaces the message with the revision
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
