package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// Prober performs the raw liveness checks for a single service: a TCP
// port-open probe, then an optional HTTP GET. Retry pacing belongs to the
// aggregator; the prober makes exactly one attempt per call.
type Prober struct {
	http *resty.Client
	host string
}

// NewProber creates a prober targeting localhost.
func NewProber() *Prober {
	// Transport from retryablehttp for its hardened defaults; retries are
	// driven by the aggregator, so both layers have them disabled.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	client := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetRetryCount(0).
		SetHeader("User-Agent", "browserbox-healthcheck/1.0")

	return &Prober{http: client, host: "127.0.0.1"}
}

// WithHost overrides the probe target host, useful in tests.
func (p *Prober) WithHost(host string) *Prober {
	p.host = host
	return p
}

// ProbePort reports whether something is listening on the port.
func (p *Prober) ProbePort(port int, timeout time.Duration) error {
	addr := net.JoinHostPort(p.host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("port %d not reachable: %w", port, err)
	}
	conn.Close()
	return nil
}

// ProbeHTTP performs a GET against the service path. Any non-2xx status
// or transport error (including timeout) counts as a failure.
func (p *Prober) ProbeHTTP(ctx context.Context, port int, path string, timeout time.Duration) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(p.host, fmt.Sprintf("%d", port)), path)
	resp, err := p.http.R().SetContext(reqCtx).Get(url)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", url, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fmt.Errorf("GET %s returned %d", url, resp.StatusCode())
	}
	return nil
}

// Attempt runs one full probe attempt for a spec: port first, then the
// HTTP path when configured. Returns httpOk=nil when no path is set.
func (p *Prober) Attempt(ctx context.Context, spec ServiceSpec) (reachable bool, httpOk *bool, err error) {
	if err := p.ProbePort(spec.Port, spec.Timeout); err != nil {
		return false, nil, err
	}
	if spec.Path == "" {
		return true, nil, nil
	}
	ok := true
	if err := p.ProbeHTTP(ctx, spec.Port, spec.Path, spec.Timeout); err != nil {
		ok = false
		return true, &ok, err
	}
	return true, &ok, nil
}
