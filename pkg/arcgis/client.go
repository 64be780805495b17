// Package arcgis provides a thin typed client for ArcGIS-style feature
// service REST endpoints: layer queries, batch feature adds, attachment
// transfer, and token-based authentication.
package arcgis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/blue-raster/workforce-bridge/internal/resilience"
)

// Client defines the feature-service operations the bridge depends on.
type Client interface {
	// Query runs a layer query and returns the parsed features.
	Query(ctx context.Context, layerURL string, q Query) (*QueryResponse, error)
	// AddFeatures submits a batch to a layer's addFeatures endpoint. The
	// returned AddResults preserve the batch order.
	AddFeatures(ctx context.Context, layerURL string, features any) (*AddResponse, error)
	// ListAttachments returns attachment metadata for a source record.
	ListAttachments(ctx context.Context, layerURL string, objectID int64) ([]AttachmentInfo, error)
	// FetchAttachment downloads one attachment's bytes.
	FetchAttachment(ctx context.Context, layerURL string, objectID int64, att AttachmentInfo) ([]byte, error)
	// AddAttachment uploads an attachment to a target record.
	AddAttachment(ctx context.Context, layerURL string, objectID int64, name, contentType string, data []byte) error
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

// WithTimeout sets the per-call timeout. The upstream services have no
// timeout of their own; leaving this unset defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *client) { c.timeout = d }
}

// WithRateLimit sets a per-second request rate limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithTokenAuth enables generateToken authentication. Tokens are cached
// and refreshed ahead of expiry; a 498/499 response invalidates the cache
// and the request is retried once with a fresh token.
func WithTokenAuth(tokenURL, username, password, referer string) Option {
	return func(c *client) {
		c.tokens = &tokenProvider{
			tokenURL: tokenURL,
			username: username,
			password: password,
			referer:  referer,
		}
	}
}

// WithRetry overrides the transient-error retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) { c.retry = cfg }
}

type client struct {
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	tokens  *tokenProvider
	retry   resilience.RetryConfig
}

// New creates a feature-service client.
func New(opts ...Option) Client {
	c := &client{
		http:    &http.Client{},
		timeout: 30 * time.Second,
		retry:   resilience.RetryConfig{MaxAttempts: 3},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens != nil {
		c.tokens.http = c.http
	}
	return c
}

func (c *client) Query(ctx context.Context, layerURL string, q Query) (*QueryResponse, error) {
	params := url.Values{
		"f":              {"json"},
		"where":          {q.Where},
		"outFields":      {strings.Join(q.OutFields, ",")},
		"returnGeometry": {strconv.FormatBool(q.ReturnGeometry)},
	}

	var resp QueryResponse
	if err := c.call(ctx, "query", layerURL+"/query", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, eris.Wrap(resp.Error, "arcgis: query")
	}
	return &resp, nil
}

func (c *client) AddFeatures(ctx context.Context, layerURL string, features any) (*AddResponse, error) {
	payload, err := json.Marshal(features)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: marshal features")
	}
	params := url.Values{
		"f":        {"json"},
		"features": {string(payload)},
	}

	var resp AddResponse
	if err := c.call(ctx, "addFeatures", layerURL+"/addFeatures", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, eris.Wrap(resp.Error, "arcgis: add features")
	}
	return &resp, nil
}

func (c *client) ListAttachments(ctx context.Context, layerURL string, objectID int64) ([]AttachmentInfo, error) {
	endpoint := attachmentsURL(layerURL, objectID)
	params := url.Values{"f": {"json"}}

	var resp attachmentsResponse
	if err := c.call(ctx, "attachments", endpoint, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, eris.Wrap(resp.Error, "arcgis: list attachments")
	}
	return resp.AttachmentInfos, nil
}

func (c *client) FetchAttachment(ctx context.Context, layerURL string, objectID int64, att AttachmentInfo) ([]byte, error) {
	endpoint := attachmentsURL(layerURL, objectID) + "/" + strconv.FormatInt(att.ID, 10)

	return resilience.DoVal(ctx, c.retryCfg("fetchAttachment"), func(ctx context.Context) ([]byte, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, "")
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "arcgis: fetch attachment %d", att.ID)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return nil, statusError("fetch attachment", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "arcgis: read attachment %d", att.ID)
		}
		return data, nil
	})
}

func attachmentsURL(layerURL string, objectID int64) string {
	return layerURL + "/" + strconv.FormatInt(objectID, 10) + "/attachments"
}

// statusError converts a non-200 status into an error, marking retryable
// codes as transient.
func statusError(op string, statusCode int) error {
	err := eris.Errorf("arcgis: %s returned status %d", op, statusCode)
	if resilience.IsTransientHTTPStatus(statusCode) {
		return resilience.NewTransientError(err, statusCode)
	}
	return err
}

func (c *client) retryCfg(op string) resilience.RetryConfig {
	cfg := c.retry
	cfg.Operation = "arcgis." + op
	return cfg
}

// call posts form params to an endpoint and decodes the JSON body into
// out, handling rate limiting, per-call timeouts, transient retries, and
// one token refresh on 498/499.
func (c *client) call(ctx context.Context, op, endpoint string, params url.Values, out any) error {
	return resilience.Do(ctx, c.retryCfg(op), func(ctx context.Context) error {
		refreshed := false
		for {
			body, err := c.doForm(ctx, op, endpoint, params)
			if err != nil {
				return err
			}

			var envelope struct {
				Error *ServiceError `json:"error"`
			}
			if err := json.Unmarshal(body, &envelope); err != nil {
				return eris.Wrapf(err, "arcgis: %s parse response", op)
			}
			if envelope.Error != nil && envelope.Error.isTokenError() && c.tokens != nil && !refreshed {
				c.tokens.invalidate()
				refreshed = true
				continue
			}

			if err := json.Unmarshal(body, out); err != nil {
				return eris.Wrapf(err, "arcgis: %s parse response", op)
			}
			return nil
		}
	})
}

// doForm executes one POST with the token appended when auth is enabled.
func (c *client) doForm(ctx context.Context, op, endpoint string, params url.Values) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "arcgis: %s rate limit", op)
		}
	}

	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	if c.tokens != nil {
		token, err := c.tokens.get(ctx)
		if err != nil {
			return nil, err
		}
		form.Set("token", token)
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "arcgis: %s request", op)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "arcgis: %s read body", op)
	}
	return body, nil
}

func (c *client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, eris.Wrap(err, "arcgis: build request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}
