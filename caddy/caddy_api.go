package caddy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/openrport/devhost/share/logger"
)

const (
	DefaultAdminURL       = "http://127.0.0.1:2019"
	DefaultRequestTimeout = 5 * time.Second

	// unixAdminPrefix is the caddy admin address syntax for a unix socket,
	// e.g. "unix//run/caddy/admin.sock".
	unixAdminPrefix = "unix/"
	unixBaseURL     = "http://unix"

	maxResponseBytes = 16 << 20
)

// RequestFailedError is returned when a mutating admin API call gets a non-2xx response.
type RequestFailedError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestFailedError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("caddy admin API %s %s failed: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("caddy admin API %s %s failed: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), body)
}

// Client talks JSON to the caddy admin API. It performs every call exactly once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a client for adminURL, which is either an http(s) URL,
// a bare host:port, or a unix socket in caddy's "unix/<path>" notation.
func NewClient(adminURL string, timeout time.Duration, l *logger.Logger) (*Client, error) {
	if l == nil {
		l = logger.Discard()
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if adminURL == "" {
		adminURL = DefaultAdminURL
	}

	c := &Client{
		logger: l,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	if strings.HasPrefix(adminURL, unixAdminPrefix) {
		socket := strings.TrimPrefix(adminURL, unixAdminPrefix)
		if socket == "" {
			return nil, ErrAdminSocketPathMissing
		}
		c.baseURL = unixBaseURL
		c.httpClient.Transport = newDomainSocketTransport(socket)
		return c, nil
	}

	if !strings.Contains(adminURL, "://") {
		adminURL = "http://" + adminURL
	}
	u, err := url.Parse(adminURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid admin url %q", adminURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid admin url %q: unsupported scheme %q", adminURL, u.Scheme)
	}
	c.baseURL = strings.TrimSuffix(u.String(), "/")

	return c, nil
}

func newDomainSocketTransport(socket string) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		},
	}
}

// FetchJSON performs method on path. A non-nil body is sent JSON encoded and a
// successful, non-empty, non-null response is decoded into out.
//
// found is false when the response carries no value. Non-2xx answers to GET
// mean "absent" and are not an error; for every other method they produce a
// *RequestFailedError.
func (c *Client) FetchJSON(ctx context.Context, method, path string, body, out interface{}) (found bool, err error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return false, errors.Wrapf(err, "unable to encode %s %s request body", method, path)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return false, errors.Wrap(err, "unable to make new request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debugf("%s %s", method, path)
	res, err := c.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "unable to send %s %s request", method, path)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return false, errors.Wrapf(err, "unable to read %s %s response", method, path)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		if method == http.MethodGet {
			c.logger.Debugf("%s %s: %d, treating as absent", method, path, res.StatusCode)
			return false, nil
		}
		return false, &RequestFailedError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Body:       string(resBody),
		}
	}

	resBody = bytes.TrimSpace(resBody)
	if len(resBody) == 0 || bytes.Equal(resBody, []byte("null")) {
		return false, nil
	}

	if out != nil {
		if err := json.Unmarshal(resBody, out); err != nil {
			return false, errors.Wrapf(err, "malformed JSON in %s %s response", method, path)
		}
	}

	return true, nil
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) (bool, error) {
	return c.FetchJSON(ctx, http.MethodGet, path, nil, out)
}

// Post sets a value at path, or appends it when path holds an array.
func (c *Client) Post(ctx context.Context, path string, body interface{}) error {
	_, err := c.FetchJSON(ctx, http.MethodPost, path, body, nil)
	return err
}

// Put creates a value at path, or inserts it when path is an array index.
func (c *Client) Put(ctx context.Context, path string, body interface{}) error {
	_, err := c.FetchJSON(ctx, http.MethodPut, path, body, nil)
	return err
}

// Patch replaces the existing value at path.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) error {
	_, err := c.FetchJSON(ctx, http.MethodPatch, path, body, nil)
	return err
}

func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.FetchJSON(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// configPath builds an admin API path below /config/ from unescaped segments.
func configPath(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return "/config/" + strings.Join(escaped, "/")
}
