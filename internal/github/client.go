// Package github is a thin client over the repository contents API: enough
// to tell whether a student's repository exists, list its root, and build an
// authenticated clone URL. The clone itself is an external git invocation.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/lussekatt/internal/models"
)

const (
	defaultAPIBaseURL = "https://api.github.com"
	defaultCloneHost  = "github.com"
)

// ErrNotFound means the API positively reported the repository missing, as
// opposed to a failure to determine anything at all.
var ErrNotFound = errors.New("repository not found")

type Client struct {
	http       *http.Client
	apiBaseURL string
	cloneHost  string
	account    string
	token      string
}

type Option func(*Client)

// WithAPIBaseURL points the client at an alternative API endpoint, e.g. a
// test server or a GitHub Enterprise host.
func WithAPIBaseURL(url string) Option {
	return func(c *Client) { c.apiBaseURL = url }
}

func WithCloneHost(host string) Option {
	return func(c *Client) { c.cloneHost = host }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a client authenticating as the course's bot account with its
// API token. The token must never appear in logs; it only ever travels in
// the basic-auth header and the clone URL.
func New(account, token string, opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: 30 * time.Second},
		apiBaseURL: defaultAPIBaseURL,
		cloneHost:  defaultCloneHost,
		account:    account,
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) contentsURL(account, repository string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/", c.apiBaseURL, account, repository)
}

// Exists reports whether the repository has a readable contents listing.
// Only a 404 counts as "does not exist"; any other non-2xx status is an
// error because the answer could not be determined.
func (c *Client) Exists(ctx context.Context, account, repository string) (bool, error) {
	resp, err := c.get(ctx, c.contentsURL(account, repository))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, fmt.Errorf("repository %s/%s existence check failed: status %d", account, repository, resp.StatusCode)
	}
}

// Contents lists the repository root. Nested paths are not traversed;
// trigger matching is root-level only.
func (c *Client) Contents(ctx context.Context, account, repository string) ([]models.RepoEntry, error) {
	resp, err := c.get(ctx, c.contentsURL(account, repository))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("repository %s/%s: %w", account, repository, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to list repository %s/%s contents: status %d", account, repository, resp.StatusCode)
	}

	var entries []models.RepoEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode repository %s/%s contents: %w", account, repository, err)
	}
	return entries, nil
}

// CloneURL builds the authenticated transfer URL. Callers must keep it out
// of logs: it embeds the token in cleartext.
func (c *Client) CloneURL(account, repository string) string {
	return fmt.Sprintf(
		"https://%s:x-oauth-basic@%s/%s/%s.git",
		c.token,
		c.cloneHost,
		account,
		repository,
	)
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.account, c.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github api request failed: %w", err)
	}
	return resp, nil
}
