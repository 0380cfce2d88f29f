package opendap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shauryavardhanm/IITK/internal/config"
	"github.com/shauryavardhanm/IITK/internal/domain"
	"github.com/shauryavardhanm/IITK/internal/observability"
)

// Client fetches CYGNSS L1 granules from an OpenDAP (DAP4) endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialProvider
	retries    int
	backoff    time.Duration
	maxBackoff time.Duration
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client from the remote settings in cfg.
func NewClient(cfg *config.Config, creds CredentialProvider, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.OpenDAPBaseURL,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		creds:      creds,
		retries:    cfg.Retries,
		backoff:    cfg.FetchBackoff,
		maxBackoff: cfg.FetchMaxBackoff,
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger,
	}
}

// GranuleURL builds the DAP4 subset URL for one satellite-day. The
// constraint expression lists variables as /name separated by semicolons.
func GranuleURL(baseURL string, date time.Time, satellite int, vars []string) string {
	ymd := date.UTC().Format("20060102")
	ce := make([]string, len(vars))
	for i, v := range vars {
		ce[i] = "/" + v
	}
	return fmt.Sprintf("%s/granules/cyg%02d.ddmi.s%s-000000-e%s-235959.l1.power-brcs.a31.d32.dap.nc4?dap4.ce=%s",
		baseURL, satellite, ymd, ymd, strings.Join(ce, ";"))
}

// Fetch retrieves the granule for (date, satellite) restricted to vars.
//
// Interrupted transfers and 5xx responses are retried up to the configured
// count; request-level faults stop at once with ErrPermanentRequest; 404
// yields ErrGranuleNotFound. Treating 5xx as transient is broader than
// retrying interrupted bodies alone: a server error that persists costs the
// full retry count before the granule is skipped. When every attempt is interrupted the error
// wraps ErrRetriesExhausted. The returned Granule carries the attempt count
// even on failure.
func (c *Client) Fetch(ctx context.Context, date time.Time, satellite int, vars []string) (domain.Granule, error) {
	g := domain.Granule{Date: date, Satellite: satellite}
	if satellite < 1 || satellite > domain.Satellites {
		return g, fmt.Errorf("%w: satellite %d out of range [1,%d]", domain.ErrPermanentRequest, satellite, domain.Satellites)
	}
	if len(vars) == 0 {
		return g, fmt.Errorf("%w: no variables requested", domain.ErrPermanentRequest)
	}

	user, pass, err := c.creds.Credentials(ctx)
	if err != nil {
		return g, fmt.Errorf("%w: credentials: %w", domain.ErrPermanentRequest, err)
	}

	start := c.clock.Now()
	defer func() { c.metrics.FetchDuration.Observe(c.clock.Since(start).Seconds()) }()

	u := GranuleURL(c.baseURL, date, satellite, vars)
	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.retries; attempt++ {
		g.Attempts = attempt
		c.metrics.FetchAttempts.Inc()

		body, err := c.get(ctx, u, user, pass)
		if err == nil {
			g.Body = body
			c.metrics.FetchOutcomes.WithLabelValues("ok").Inc()
			c.metrics.GranuleBytes.Observe(float64(len(body)))
			return g, nil
		}
		if ctx.Err() != nil {
			return g, ctx.Err()
		}

		switch {
		case errors.Is(err, domain.ErrTransientTransport):
			lastErr = err
			c.logger.Warn("granule transfer interrupted, retrying",
				"date", date.Format(time.DateOnly),
				"satellite", satellite,
				"attempt", attempt,
				"retries", c.retries,
				"error", err,
			)
		case errors.Is(err, domain.ErrGranuleNotFound):
			c.metrics.FetchOutcomes.WithLabelValues("not_found").Inc()
			c.logger.Info("granule not found",
				"date", date.Format(time.DateOnly),
				"satellite", satellite,
			)
			return g, err
		default:
			c.metrics.FetchOutcomes.WithLabelValues("permanent").Inc()
			c.logger.Error("granule request failed",
				"date", date.Format(time.DateOnly),
				"satellite", satellite,
				"attempt", attempt,
				"error", err,
			)
			return g, err
		}

		if attempt < c.retries {
			if !sleepWithContext(ctx, c.clock, backoff) {
				return g, ctx.Err()
			}
			backoff = nextBackoff(backoff, c.maxBackoff)
		}
	}

	c.metrics.FetchOutcomes.WithLabelValues("exhausted").Inc()
	return g, fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, c.retries, lastErr)
}

// get performs one authenticated GET and classifies its failure.
func (c *Client) get(ctx context.Context, u, user, pass string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrPermanentRequest, err)
	}
	req.SetBasicAuth(user, pass)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPermanentRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: status %d", domain.ErrGranuleNotFound, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", domain.ErrTransientTransport, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrPermanentRequest, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrTransientTransport, err)
	}
	return body, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
