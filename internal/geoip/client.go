package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dukaan-dev/backend-dukaan/internal/obs"
	"github.com/dukaan-dev/backend-dukaan/internal/resilience"
)

// ErrNotConfigured is returned when the client has no endpoint to call.
var ErrNotConfigured = errors.New("geoip: client not configured")

// Client resolves an ISO country code for an IP address via an external
// geo-IP HTTP service. Lookups are bounded by the resilience layer's timeout
// and circuit breaker; callers must treat any error as "unknown country".
type Client struct {
	Endpoint string
	HTTP     resilience.HTTPClient
	Cache    *redis.Client
	CacheTTL time.Duration
}

type lookupResponse struct {
	CountryCode string `json:"countryCode"`
}

// Country returns the upper-cased ISO 3166-1 alpha-2 country code for the IP.
func (c *Client) Country(ctx context.Context, ip string) (string, error) {
	if c == nil || strings.TrimSpace(c.Endpoint) == "" {
		return "", ErrNotConfigured
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", errors.New("geoip: ip is required")
	}
	if country, ok := c.cached(ctx, ip); ok {
		countLookup("cache_hit")
		return country, nil
	}

	endpoint := strings.TrimRight(c.Endpoint, "/") + "/" + url.PathEscape(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		countLookup("error")
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		countLookup("error")
		return "", fmt.Errorf("geoip: unexpected status %s", resp.Status)
	}
	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		countLookup("error")
		return "", fmt.Errorf("geoip: decode response: %w", err)
	}
	country := strings.ToUpper(strings.TrimSpace(payload.CountryCode))
	if country == "" {
		countLookup("error")
		return "", errors.New("geoip: empty country code")
	}
	c.store(ctx, ip, country)
	countLookup("ok")
	return country, nil
}

func countLookup(result string) {
	if obs.GeoIPLookupTotal != nil {
		obs.GeoIPLookupTotal.WithLabelValues(result).Inc()
	}
}

func (c *Client) cached(ctx context.Context, ip string) (string, bool) {
	if c.Cache == nil {
		return "", false
	}
	value, err := c.Cache.Get(ctx, cacheKey(ip)).Result()
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

func (c *Client) store(ctx context.Context, ip, country string) {
	if c.Cache == nil {
		return
	}
	ttl := c.CacheTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	_ = c.Cache.Set(ctx, cacheKey(ip), country, ttl).Err()
}

func cacheKey(ip string) string {
	return "geoip:" + ip
}
