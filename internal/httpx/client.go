package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

const DefaultUserAgent = "orderfill/1.0"

// maxRetryAfter caps how long a Retry-After header may stall a command.
const maxRetryAfter = 10 * time.Second

type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
	headers    map[string]string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  DefaultUserAgent,
		headers:    map[string]string{},
	}
}

// WithHeader returns a copy of c that sends key on every request unless the
// request already sets it.
func (c *Client) WithHeader(key, value string) *Client {
	clone := *c
	clone.headers = make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		clone.headers[k] = v
	}
	if strings.TrimSpace(value) != "" {
		clone.headers[key] = value
	}
	return &clone
}

// result is the outcome of one HTTP exchange.
type result struct {
	header    http.Header
	body      []byte
	err       error
	retryable bool
	wait      time.Duration
}

// DoJSON sends req, retrying transport failures, 429 and 5xx responses, and
// decodes a 2xx body into out.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	var last result
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			if last.wait > 0 {
				wait = last.wait
			}
			select {
			case <-ctx.Done():
				return nil, clierr.Wrap(clierr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(wait):
			}
		}
		last = c.once(ctx, req)
		if last.err == nil || !last.retryable {
			break
		}
	}
	if last.err != nil {
		return last.header, last.err
	}

	if out == nil {
		return last.header, nil
	}
	if len(bytes.TrimSpace(last.body)) == 0 {
		return last.header, clierr.New(clierr.CodeUnavailable, "upstream returned empty response")
	}
	if err := json.Unmarshal(last.body, out); err != nil {
		return last.header, clierr.Wrap(clierr.CodeUnavailable, "decode upstream JSON", err)
	}
	return last.header, nil
}

func (c *Client) once(ctx context.Context, req *http.Request) result {
	cloneReq := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return result{err: clierr.Wrap(clierr.CodeInternal, "clone request body", err)}
		}
		cloneReq.Body = body
	}

	resp, err := c.httpClient.Do(cloneReq)
	if err != nil {
		return result{err: mapNetError(err), retryable: true}
	}
	buf, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return result{header: resp.Header, err: clierr.Wrap(clierr.CodeUnavailable, "read upstream response", readErr)}
	}

	res := result{header: resp.Header, body: buf}
	switch status := resp.StatusCode; {
	case status == http.StatusTooManyRequests:
		res.err = statusError(clierr.CodeRateLimited, "upstream rate limited request", status)
		res.retryable = true
		res.wait = retryAfter(resp.Header.Get("Retry-After"))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		res.err = statusError(clierr.CodeAuth, "upstream authentication failed", status)
	case status >= http.StatusInternalServerError:
		res.err = statusError(clierr.CodeUnavailable, fmt.Sprintf("upstream unavailable (status %d)", status), status)
		res.retryable = true
	case status < 200 || status >= 300:
		res.err = statusError(clierr.CodeUnsupported, fmt.Sprintf("upstream returned unexpected status %d", status), status)
	}
	return res
}

// GetJSON issues a GET to url and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	_, err = c.DoJSON(ctx, req, out)
	return err
}

// DoBodyJSON sends a JSON body with method. The body is replayed on retries.
func DoBodyJSON(ctx context.Context, c *Client, method, url string, body []byte, headers map[string]string, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

// IsNotFound reports whether err came from a 404 upstream response.
func IsNotFound(err error) bool {
	cErr, ok := clierr.As(err)
	if !ok {
		return false
	}
	status, _ := cErr.Details["status"].(int)
	return status == http.StatusNotFound
}

func statusError(code clierr.Code, message string, status int) error {
	return clierr.New(code, message).WithDetail("status", status)
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			return clierr.Wrap(clierr.CodeUnavailable, "upstream timeout", err)
		}
	}
	return clierr.Wrap(clierr.CodeUnavailable, "upstream request failed", err)
}

// retryAfter reads a delay-seconds Retry-After value. HTTP dates fall back to
// the regular backoff.
func retryAfter(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
