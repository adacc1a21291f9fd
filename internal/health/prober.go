package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/meridian-platform/stackd/internal/domain"
)

// Checker performs a single probe attempt against a host.
type Checker interface {
	Check(ctx context.Context, host string, probe domain.StartupProbe) error
}

// NetChecker probes over the network: TCP dial or HTTP GET on the probe port.
type NetChecker struct {
	client *http.Client
}

func NewNetChecker() *NetChecker {
	return &NetChecker{client: &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (c *NetChecker) Check(ctx context.Context, host string, probe domain.StartupProbe) error {
	ctx, cancel := context.WithTimeout(ctx, probe.Timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(probe.Port))
	switch probe.Protocol {
	case domain.ProbeTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("tcp probe %s: %w", addr, err)
		}
		return conn.Close()
	case domain.ProbeHTTP:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+probe.Path, nil)
		if err != nil {
			return fmt.Errorf("http probe %s: %w", addr, err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("http probe %s: %w", addr, err)
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 400 {
			return fmt.Errorf("http probe %s: status %d", addr, resp.StatusCode)
		}
		return nil
	default:
		return fmt.Errorf("%w: probe protocol %q", domain.ErrInvalidInput, probe.Protocol)
	}
}

// Prober drives a container's startup probe: ready after the first successful
// check, failed after FailureThreshold consecutive failures at Period
// intervals.
type Prober struct {
	checker Checker
}

func NewProber(checker Checker) *Prober {
	return &Prober{checker: checker}
}

// WaitReady blocks until the probe succeeds once or the failure threshold is
// reached. The threshold is a hard stop, not a silent retry budget.
func (p *Prober) WaitReady(ctx context.Context, host string, probe domain.StartupProbe) error {
	ticker := time.NewTicker(probe.Period)
	defer ticker.Stop()

	failures := 0
	for {
		err := p.checker.Check(ctx, host, probe)
		if err == nil {
			return nil
		}
		failures++
		if failures >= probe.FailureThreshold {
			return fmt.Errorf("startup probe failed %d times: %w", failures, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
