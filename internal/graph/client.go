// Package graph is the client for the tenant content API: OAuth2
// client-credentials token acquisition, paginated children listings, and
// per-item permission lookups.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultScope    = "https://graph.microsoft.com/.default"
	defaultTokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

	// Per-request timeout; the overall crawl deadline is the caller's context.
	requestTimeout = 90 * time.Second

	pageSize = 200
)

var (
	// ErrThrottled is returned on a 429-class response and feeds the
	// crawler's backoff branch.
	ErrThrottled = errors.New("throttled by upstream")
	// ErrNotFound covers 404 and other 4xx responses: the resource has no
	// collectible data, which is not a crawl failure.
	ErrNotFound = errors.New("resource not found")
	// ErrAuth is a token acquisition failure and is fatal for a whole pass.
	ErrAuth = errors.New("authentication failed")
)

// StatusError is a non-2xx response outside the named taxonomy (5xx).
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Code, e.URL)
}

// Config holds the credentials and endpoints for one tenant.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// BaseURL and TokenURL override the real service endpoints in tests.
	BaseURL  string
	TokenURL string
}

// Client talks to the content API with automatic token refresh.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger
}

// NewClient builds a client whose transport injects and refreshes the
// client-credentials token.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) *Client {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf(defaultTokenURL, cfg.TenantID)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{defaultScope},
	}

	httpClient := cc.Client(ctx)
	httpClient.Timeout = requestTimeout

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		log:        log.Named("graph"),
	}
}

// ListSites returns every site of the tenant, following pagination.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	return collectPages[Site](ctx, c, fmt.Sprintf("%s/sites?$top=100", c.baseURL))
}

// GetSite fetches a single site by id.
func (c *Client) GetSite(ctx context.Context, siteID string) (*Site, error) {
	var site Site
	if err := c.getJSON(ctx, fmt.Sprintf("%s/sites/%s", c.baseURL, url.PathEscape(siteID)), &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// ListDrives returns the drives (document libraries) of a site.
func (c *Client) ListDrives(ctx context.Context, siteID string) ([]Drive, error) {
	return collectPages[Drive](ctx, c, fmt.Sprintf("%s/sites/%s/drives", c.baseURL, url.PathEscape(siteID)))
}

// ListChildren returns the children of a folder, following continuation links
// until the listing is exhausted. An empty folderID means the drive root.
func (c *Client) ListChildren(ctx context.Context, driveID, folderID string) ([]DriveItem, error) {
	var u string
	if folderID == "" {
		u = fmt.Sprintf("%s/drives/%s/root/children?$top=%d", c.baseURL, url.PathEscape(driveID), pageSize)
	} else {
		u = fmt.Sprintf("%s/drives/%s/items/%s/children?$top=%d", c.baseURL, url.PathEscape(driveID), url.PathEscape(folderID), pageSize)
	}
	return collectPages[DriveItem](ctx, c, u)
}

// ListPermissions returns the access-control entries of a drive item.
func (c *Client) ListPermissions(ctx context.Context, driveID, itemID string) ([]Permission, error) {
	u := fmt.Sprintf("%s/drives/%s/items/%s/permissions", c.baseURL, url.PathEscape(driveID), url.PathEscape(itemID))
	return collectPages[Permission](ctx, c, u)
}

// listEnvelope is the paged response shape shared by every collection endpoint.
type listEnvelope[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

func collectPages[T any](ctx context.Context, c *Client, firstURL string) ([]T, error) {
	var out []T
	next := firstURL
	for next != "" {
		var page listEnvelope[T]
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Value...)
		next = page.NextLink
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %v", ErrAuth, retrieveErr)
		}
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(dst)
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrThrottled, rawURL)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		io.Copy(io.Discard, resp.Body)
		c.log.Debug("upstream has no data", zap.Int("status", resp.StatusCode), zap.String("url", rawURL))
		return fmt.Errorf("%w (%d): %s", ErrNotFound, resp.StatusCode, rawURL)
	default:
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
}
