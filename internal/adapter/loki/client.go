package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/meridian-platform/stackd/internal/port"
)

var _ port.LogQuerier = (*Client)(nil)

// Client queries container logs through the Loki HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// QueryUnitLogs fetches logs for one container of a unit's pods. An empty
// container selects all three.
func (c *Client) QueryUnitLogs(ctx context.Context, namespace, unitName, container string, start, end time.Time, limit int) (string, error) {
	query := fmt.Sprintf(`{namespace=%q, pod=~%q}`, namespace, unitName+"-.*")
	if container != "" {
		query = fmt.Sprintf(`{namespace=%q, pod=~%q, container=%q}`, namespace, unitName+"-.*", container)
	}
	if limit <= 0 {
		limit = 1000
	}

	params := url.Values{
		"query":     {query},
		"start":     {fmt.Sprintf("%d", start.UnixNano())},
		"end":       {fmt.Sprintf("%d", end.UnixNano())},
		"direction": {"forward"},
		"limit":     {fmt.Sprintf("%d", limit)},
	}

	reqURL := c.baseURL + "/loki/api/v1/query_range?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("loki: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("loki: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("loki: unexpected status %d", resp.StatusCode)
	}

	var result queryRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("loki: decode response: %w", err)
	}

	if result.Status != "success" {
		return "", fmt.Errorf("loki: query status %q", result.Status)
	}

	return extractLogs(result.Data), nil
}

// Loki query_range response, only the fields we consume.

type queryRangeResponse struct {
	Status string         `json:"status"`
	Data   queryRangeData `json:"data"`
}

type queryRangeData struct {
	ResultType string   `json:"resultType"`
	Result     []stream `json:"result"`
}

type stream struct {
	Values [][]string `json:"values"` // [[timestamp_ns, line], ...]
}

type logEntry struct {
	ts   string
	line string
}

func extractLogs(data queryRangeData) string {
	var entries []logEntry
	for _, s := range data.Result {
		for _, v := range s.Values {
			if len(v) >= 2 {
				entries = append(entries, logEntry{ts: v[0], line: v[1]})
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ts < entries[j].ts
	})

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.line)
		b.WriteByte('\n')
	}
	return b.String()
}
