// Package upstream implements the ENTSOE Transparency Platform client: a
// circuit-breaker-wrapped, retrying HTTP client that fetches day-ahead price
// documents and turns them into store.Point values.
package upstream

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"emarket/libs/resilience"
	"emarket/libs/store"
)

const baseURL = "https://transparency.entsoe.eu/api"

// Client fetches day-ahead price documents from the ENTSOE Transparency
// Platform for a single (document type, domain) pair.
type Client struct {
	httpClient *http.Client
	breaker    *resilience.HTTPClientWrapper
	baseURL    string
	document   string
	domain     string
	key        string

	// maxAttempts bounds the retry loop in do. Each attempt beyond the
	// first backs off exponentially starting at retryBaseDelay.
	maxAttempts   int
	retryBaseDelay time.Duration
}

// New creates a Client for the given document type (e.g. "A44") and EIC
// domain code, authenticating with key.
func New(document, domain, key string) *Client {
	return NewWithBreakerHook(document, domain, key, nil)
}

// NewWithBreakerHook is like New but additionally invokes onTrip whenever the
// circuit breaker opens, so callers can feed a metric.
func NewWithBreakerHook(document, domain, key string, onTrip func()) *Client {
	config := resilience.DefaultConfig("entsoe")
	defaultOnStateChange := config.OnStateChange
	config.OnStateChange = func(name string, from, to gobreaker.State) {
		defaultOnStateChange(name, from, to)
		if onTrip != nil && to == gobreaker.StateOpen {
			onTrip()
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext

	return &Client{
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		breaker:        resilience.NewHTTPClientWrapperWithConfig(config),
		baseURL:        baseURL,
		document:       document,
		domain:         domain,
		key:            key,
		maxAttempts:    5,
		retryBaseDelay: 200 * time.Millisecond,
	}
}

// Live performs a minimal authenticated request against the API root, used
// as a startup liveness check. ENTSOE responds 400 (no time range given) to
// this request when the API is up; that is the success case, not an error.
func (c *Client) Live(ctx context.Context) (string, error) {
	u := fmt.Sprintf("%s?securityToken=%s", c.baseURL, url.QueryEscape(c.key))
	body, err := c.do(ctx, u, c.fetchLive)
	if err != nil {
		return "", fmt.Errorf("upstream: live check: %w", err)
	}
	return body, nil
}

// Retrieve fetches every point published for [from, to) and returns them as
// store.Point values, sorted the way ENTSOE returns them (ascending by
// instant within each period).
func (c *Client) Retrieve(ctx context.Context, from, to time.Time) ([]store.Point, error) {
	u := fmt.Sprintf(
		"%s?securityToken=%s&documentType=%s&in_Domain=%s&out_Domain=%s&periodStart=%s&periodEnd=%s",
		c.baseURL, url.QueryEscape(c.key), url.QueryEscape(c.document),
		url.QueryEscape(c.domain), url.QueryEscape(c.domain),
		toTimeStr(from), toTimeStr(to),
	)

	body, err := c.do(ctx, u, c.fetch)
	if err != nil {
		return nil, fmt.Errorf("upstream: retrieve: %w", err)
	}

	var doc entSOEDoc
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("upstream: parse document: %w", err)
	}

	return mapToPoints(doc)
}

// do issues a GET through the circuit breaker, retrying transient failures
// (network errors and 5xx responses) with exponential backoff. fetchFn
// performs the request and interprets the response status; Retrieve and
// Live each pass a different one, since the same status code means
// different things to each (see fetch and fetchLive).
func (c *Client) do(ctx context.Context, rawURL string, fetchFn func(ctx context.Context, rawURL string) (any, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.breaker.Execute(ctx, func() (any, error) {
			return fetchFn(ctx, rawURL)
		})
		if err == nil {
			return result.(string), nil
		}
		lastErr = err
		if !isTransient(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted %d attempts: %w", c.maxAttempts, lastErr)
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// fetch performs a GET for Retrieve: any status >= 400 is an error, 5xx
// retryable via transientError, 4xx fatal.
func (c *Client) fetch(ctx context.Context, rawURL string) (any, error) {
	status, body, err := c.rawGet(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if status >= 500 {
		return nil, &transientError{fmt.Errorf("upstream status %d", status)}
	}
	if status >= 400 {
		return nil, fmt.Errorf("upstream status %d: %s", status, body)
	}
	return body, nil
}

// fetchLive performs a GET for Live. ENTSOE answers this deliberately
// underspecified request with 400 when the API is reachable, so 400 is the
// success case here; any other status is a liveness failure, 5xx retryable
// the same as in fetch.
func (c *Client) fetchLive(ctx context.Context, rawURL string) (any, error) {
	status, body, err := c.rawGet(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if status == http.StatusBadRequest {
		return body, nil
	}
	if status >= 500 {
		return nil, &transientError{fmt.Errorf("upstream status %d", status)}
	}
	return nil, fmt.Errorf("upstream status %d: %s", status, body)
}

// rawGet issues the HTTP request and returns its status and body, wrapping
// network-level failures as transientError so do's retry loop backs off and
// retries them regardless of which caller's status interpretation is used.
func (c *Client) rawGet(ctx context.Context, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", &transientError{err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", &transientError{err}
	}

	return resp.StatusCode, string(body), nil
}

func toTimeStr(t time.Time) string {
	return t.UTC().Format("200601021504")
}

func mapToPoints(doc entSOEDoc) ([]store.Point, error) {
	var out []store.Point
	for _, ts := range doc.TimeSeries {
		for _, period := range ts.Periods {
			pts, err := periodToPoints(period)
			if err != nil {
				continue
			}
			out = append(out, pts...)
		}
	}
	return out, nil
}

func periodToPoints(p entSOEPeriod) ([]store.Point, error) {
	start, err := time.Parse("2006-01-02T15:04Z", p.TimeInterval.Start)
	if err != nil {
		return nil, fmt.Errorf("upstream: parse period start %q: %w", p.TimeInterval.Start, err)
	}

	out := make([]store.Point, 0, len(p.Points))
	for _, pt := range p.Points {
		at := start.Add(time.Duration(int64(pt.Position)-1) * time.Hour)
		out = append(out, store.Point{At: at, Price: pt.Price})
	}
	return out, nil
}

type entSOEDoc struct {
	XMLName    xml.Name             `xml:"Publication_MarketDocument"`
	DocType    string               `xml:"type"`
	TimeSeries []entSOETimeseries   `xml:"TimeSeries"`
}

type entSOETimeseries struct {
	ID      string          `xml:"mRID"`
	Periods []entSOEPeriod  `xml:"Period"`
}

type entSOEPeriod struct {
	TimeInterval entSOETimeInterval `xml:"timeInterval"`
	Points       []entSOEPoint      `xml:"Point"`
}

type entSOETimeInterval struct {
	Start string `xml:"start"`
	End   string `xml:"end"`
}

type entSOEPoint struct {
	Position uint32  `xml:"position"`
	Price    float64 `xml:"price.amount"`
}
