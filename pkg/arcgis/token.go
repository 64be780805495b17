package arcgis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// refreshMargin is how far ahead of expiry a cached token is considered
// stale.
const refreshMargin = time.Minute

// tokenProvider fetches and caches credentials from a generateToken
// endpoint. Safe for concurrent use.
type tokenProvider struct {
	tokenURL string
	username string
	password string
	referer  string
	http     *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// get returns a valid token, fetching a fresh one when the cache is empty
// or near expiry.
func (p *tokenProvider) get(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Until(p.expires) > refreshMargin {
		return p.token, nil
	}

	form := url.Values{
		"f":          {"json"},
		"username":   {p.username},
		"password":   {p.password},
		"client":     {"referer"},
		"referer":    {p.referer},
		"expiration": {"60"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "arcgis: build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "arcgis: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("arcgis: token endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "arcgis: read token response")
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", eris.Wrap(err, "arcgis: parse token response")
	}
	if parsed.Error != nil {
		return "", eris.Wrap(parsed.Error, "arcgis: generate token")
	}
	if parsed.Token == "" {
		return "", eris.New("arcgis: token endpoint returned no token")
	}

	p.token = parsed.Token
	p.expires = time.UnixMilli(parsed.Expires)
	return p.token, nil
}

// invalidate drops the cached token so the next get fetches fresh.
func (p *tokenProvider) invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expires = time.Time{}
	p.mu.Unlock()
}
