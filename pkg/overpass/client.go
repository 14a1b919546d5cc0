// Package overpass provides a cached, rate-limited client for the Overpass
// spatial-query API, returning building candidates as go-geom features.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cityatlas/resolver-cli/internal/cache"
	"github.com/cityatlas/resolver-cli/internal/config"
	"github.com/cityatlas/resolver-cli/internal/resilience"
)

// Client defines the spatial query operations the matcher needs.
type Client interface {
	// BuildingsAround returns all building and building-part features within
	// radiusM meters of the coordinate.
	BuildingsAround(ctx context.Context, lat, lon, radiusM float64) ([]Feature, error)

	// Element fetches a single way or relation by its identifier. Returns
	// nil when the element does not exist or carries no usable geometry.
	Element(ctx context.Context, osmType string, osmID int64) (*Feature, error)
}

type httpClient struct {
	baseURL      string
	queryTimeout int
	hc           *http.Client
	limiter      *rate.Limiter
	store        *cache.Store
	retry        resilience.Policy
	breaker      *resilience.Breaker
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.hc = hc
	}
}

// New creates an Overpass client backed by the given response cache.
func New(cfg config.OverpassConfig, store *cache.Store, retry resilience.Policy, opts ...Option) Client {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 0.5
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	qt := cfg.QueryTimeout
	if qt <= 0 {
		qt = 25
	}

	c := &httpClient{
		baseURL:      cfg.BaseURL,
		queryTimeout: qt,
		hc:           &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		store:        store,
		retry:        retry,
		breaker:      resilience.NewBreaker("overpass", 5, 30*time.Second),
	}
	c.retry.OnRetry = resilience.RetryLogger("overpass", "query")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) BuildingsAround(ctx context.Context, lat, lon, radiusM float64) ([]Feature, error) {
	// Keys are rounded so that float formatting cannot split equivalent
	// queries across cache entries.
	key := fmt.Sprintf("around:%.7f,%.7f,r=%.0f", lat, lon, radiusM)
	ql := fmt.Sprintf(`[out:json][timeout:%d];
(
  way(around:%.0f,%.7f,%.7f)["building"];
  relation(around:%.0f,%.7f,%.7f)["building"];
  relation(around:%.0f,%.7f,%.7f)["type"="building"];
  way(around:%.0f,%.7f,%.7f)["building:part"];
  relation(around:%.0f,%.7f,%.7f)["building:part"];
);
out tags geom;`,
		c.queryTimeout,
		radiusM, lat, lon,
		radiusM, lat, lon,
		radiusM, lat, lon,
		radiusM, lat, lon,
		radiusM, lat, lon,
	)

	elems, err := c.query(ctx, key, ql)
	if err != nil {
		return nil, err
	}

	features := make([]Feature, 0, len(elems))
	for _, el := range elems {
		f, convErr := featureFromElement(el)
		if convErr != nil {
			zap.L().Debug("overpass: skipping element",
				zap.String("type", el.Type),
				zap.Int64("id", el.ID),
				zap.Error(convErr),
			)
			continue
		}
		if f != nil {
			features = append(features, *f)
		}
	}
	return features, nil
}

func (c *httpClient) Element(ctx context.Context, osmType string, osmID int64) (*Feature, error) {
	if osmType != "way" && osmType != "relation" {
		return nil, eris.Errorf("overpass: unsupported element type %q", osmType)
	}

	key := fmt.Sprintf("elem:%s/%d", osmType, osmID)
	ql := fmt.Sprintf("[out:json][timeout:%d];\n%s(%d);\nout tags geom;",
		c.queryTimeout, osmType, osmID)

	elems, err := c.query(ctx, key, ql)
	if err != nil {
		return nil, err
	}

	for _, el := range elems {
		if el.Type == osmType && el.ID == osmID {
			return featureFromElement(el)
		}
	}
	return nil, nil
}

// query runs an Overpass QL statement through the cache, returning the raw
// element list.
func (c *httpClient) query(ctx context.Context, key, ql string) ([]element, error) {
	if payload, ok, err := c.store.Get(ctx, cache.StageSpatial, key); err != nil {
		return nil, err
	} else if ok {
		return decodeElements(payload)
	}

	payload, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, ql)
		})
	})
	if err != nil {
		return nil, err
	}

	elems, err := decodeElements(payload)
	if err != nil {
		return nil, err
	}

	if err := c.store.Put(ctx, cache.StageSpatial, key, payload); err != nil {
		return nil, err
	}

	zap.L().Debug("overpass query", zap.String("key", key), zap.Int("elements", len(elems)))
	return elems, nil
}

func (c *httpClient) fetch(ctx context.Context, ql string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limit")
	}

	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("overpass: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}

// element mirrors one entry of the Overpass element graph. With `out geom`
// way geometry is inline and relation members carry their own geometry.
type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []latLon          `json:"geometry"`
	Members  []member          `json:"members"`
}

type member struct {
	Type     string   `json:"type"`
	Ref      int64    `json:"ref"`
	Role     string   `json:"role"`
	Geometry []latLon `json:"geometry"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type overpassResponse struct {
	Elements []element `json:"elements"`
}

func decodeElements(payload []byte) ([]element, error) {
	var resp overpassResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	return resp.Elements, nil
}
