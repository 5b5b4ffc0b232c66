// Package listingclient is a typed HTTP client for the property map API. It
// satisfies the bounds and similar-listing querier interfaces used by the
// map view.
package listingclient

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

	"github.com/sells-group/property-map/internal/model"
	"github.com/sells-group/property-map/internal/resilience"
)

const maxBodyBytes = 32 << 20

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the outbound requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithToken sets the bearer token sent to authenticated endpoints.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithBreaker makes the client fail fast once the API has failed threshold
// times in a row, until cooldown elapses.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breaker = resilience.NewBreaker("listing-api", threshold, cooldown)
	}
}

// Client calls the property map API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breaker    *resilience.Breaker
	token      string
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryInBounds fetches the listings inside v that pass f.
func (c *Client) QueryInBounds(ctx context.Context, v model.Viewport, f model.FilterCriteria) (model.FeatureCollection, error) {
	var fc model.FeatureCollection
	err := c.get(ctx, "bounds", "/properties/bounds", BoundsParams(v, f), false, &fc)
	if err != nil {
		return model.FeatureCollection{}, err
	}
	return fc, nil
}

// FindSimilar fetches up to limit listings similar to id.
func (c *Client) FindSimilar(ctx context.Context, id string, limit int) ([]model.Listing, error) {
	params := url.Values{"id": {id}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out []model.Listing
	if err := c.get(ctx, "similar", "/properties/similar", params, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a single listing.
func (c *Client) Get(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	if err := c.get(ctx, "get", "/properties/"+url.PathEscape(id), nil, false, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Health checks that the API is up.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "health", "/health", nil, false, &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return eris.Errorf("listingclient: health status %q", body.Status)
	}
	return nil
}

// BoundsParams encodes a bounds query the way the API expects it.
func BoundsParams(v model.Viewport, f model.FilterCriteria) url.Values {
	formatF := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	params := url.Values{
		"swLng": {formatF(v.SouthWest.Lng)},
		"swLat": {formatF(v.SouthWest.Lat)},
		"neLng": {formatF(v.NorthEast.Lng)},
		"neLat": {formatF(v.NorthEast.Lat)},
	}
	if f.MinPrice != nil {
		params.Set("minPrice", formatF(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		params.Set("maxPrice", formatF(*f.MaxPrice))
	}
	if f.MinBedrooms != nil {
		params.Set("bedrooms", strconv.Itoa(*f.MinBedrooms))
	}
	if f.PropertyType != "" {
		params.Set("type", string(f.PropertyType))
	}
	return params
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsBadRequest reports whether err is a 400 from the API.
func IsBadRequest(err error) bool {
	return statusOf(err) == http.StatusBadRequest
}

func statusOf(err error) int {
	var se *resilience.StatusError
	if eris.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, auth bool, out any) error {
	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(op)
	}

	call := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, resilience.Do(ctx, retry, func(ctx context.Context) error {
			return c.do(ctx, op, path, params, auth, out)
		})
	}
	if c.breaker != nil {
		_, err := resilience.Execute(ctx, c.breaker, call)
		return err
	}
	_, err := call(ctx)
	return err
}

func (c *Client) do(ctx context.Context, op, path string, params url.Values, auth bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "listingclient: %s rate limit", op)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrapf(err, "listingclient: %s build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "listingclient: %s request", op)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return eris.Wrapf(err, "listingclient: %s read body", op)
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Wrapf(&resilience.StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}, "listingclient: %s", op)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "listingclient: %s parse response", op)
	}
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
