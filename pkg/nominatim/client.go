// Package nominatim provides a cached, rate-limited client for the
// OpenStreetMap Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cityatlas/resolver-cli/internal/cache"
	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/resilience"
)

// Hit is a single candidate location returned for a search query.
type Hit struct {
	PlaceID     int64           `json:"place_id"`
	Lat         string          `json:"lat"`
	Lon         string          `json:"lon"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
	AddressType string          `json:"addresstype"`
	OSMType     string          `json:"osm_type"`
	OSMID       int64           `json:"osm_id"`
	PlaceRank   int             `json:"place_rank"`
	DisplayName string          `json:"display_name"`
	Address     json.RawMessage `json:"address,omitempty"`
}

// Coordinates parses the hit's coordinate strings.
func (h Hit) Coordinates() (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(h.Lat, 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "nominatim: parse lat %q", h.Lat)
	}
	lon, err = strconv.ParseFloat(h.Lon, 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "nominatim: parse lon %q", h.Lon)
	}
	return lat, lon, nil
}

// Client defines the geocoding search operation.
type Client interface {
	// Search returns ranked candidate locations for a free-text query.
	// Cached responses are replayed without any network call.
	Search(ctx context.Context, query string) ([]Hit, error)
}

type httpClient struct {
	baseURL     string
	userAgent   string
	resultLimit int
	hc          *http.Client
	limiter     *rate.Limiter
	store       *cache.Store
	retry       resilience.Policy
	breaker     *resilience.Breaker
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.hc = hc
	}
}

// New creates a Nominatim client backed by the given response cache.
func New(cfg config.NominatimConfig, store *cache.Store, retry resilience.Policy, opts ...Option) Client {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	limit := cfg.ResultLimit
	if limit <= 0 {
		limit = 5
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &httpClient{
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
		resultLimit: limit,
		hc:          &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		store:       store,
		retry:       retry,
		breaker:     resilience.NewBreaker("nominatim", 5, 30*time.Second),
	}
	c.retry.OnRetry = resilience.RetryLogger("nominatim", "search")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Hit, error) {
	key := cache.NormalizeKey(query)

	if payload, ok, err := c.store.Get(ctx, cache.StageGeocode, key); err != nil {
		return nil, err
	} else if ok {
		return decodeHits(payload)
	}

	payload, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, query)
		})
	})
	if err != nil {
		return nil, err
	}

	hits, err := decodeHits(payload)
	if err != nil {
		return nil, err
	}

	// Persist only payloads that decoded cleanly, so a cached entry is
	// always replayable.
	if err := c.store.Put(ctx, cache.StageGeocode, key, payload); err != nil {
		return nil, err
	}

	zap.L().Debug("nominatim search",
		zap.String("query", query),
		zap.Int("hits", len(hits)),
	)
	return hits, nil
}

// fetch performs one live request. The limiter waits here, not on cache
// hits, so replayed runs finish without pacing delays.
func (c *httpClient) fetch(ctx context.Context, query string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit")
	}

	params := url.Values{
		"q":              {query},
		"format":         {"jsonv2"},
		"limit":          {strconv.Itoa(c.resultLimit)},
		"addressdetails": {"1"},
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: read body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("nominatim: status %d: %s", resp.StatusCode, truncate(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}

func decodeHits(payload []byte) ([]Hit, error) {
	var hits []Hit
	if err := json.Unmarshal(payload, &hits); err != nil {
		return nil, eris.Wrap(err, "nominatim: decode response")
	}
	return hits, nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return fmt.Sprintf("%s...", b[:max])
	}
	return string(b)
}
