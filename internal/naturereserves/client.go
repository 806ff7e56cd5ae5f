// Package naturereserves provides a client for the nature reserves REST API
// and its vector tile source.
package naturereserves

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/reservemap/reservemap/internal/provider/resilience"
	"github.com/reservemap/reservemap/internal/reserve"
)

const (
	// ProviderName identifies the REST API in health reports and metrics.
	ProviderName = "naturereserves"

	// TileProviderName identifies the vector tile source.
	TileProviderName = "naturereserves-tiles"

	maxBodySize = 16 << 20
)

var (
	// ErrNotFound is returned when a reserve does not exist.
	ErrNotFound = reserve.ErrNotFound

	// ErrTileNotFound is returned when the tile source has no tile at z/x/y.
	ErrTileNotFound = errors.New("tile not found")
)

// ClientConfig holds configuration for the client.
type ClientConfig struct {
	// BaseURL is the API origin, e.g. "https://reserves.example". Required.
	BaseURL string

	// TileURL is the vector tile template containing {z}, {x} and {y}.
	// Default: BaseURL + "/tiles/{z}/{x}/{y}.pbf"
	TileURL string

	// HTTPClient executes requests. If nil, a resilient client without
	// retries is created.
	HTTPClient HTTPDoer

	// TileHTTPClient executes tile requests. If nil, a separate resilient
	// client is created so tile failures do not open the API breaker.
	TileHTTPClient HTTPDoer

	// Timeout for individual requests (default: 10s).
	Timeout time.Duration

	// Registry receives health reports from the default HTTP clients.
	Registry *resilience.Registry

	// Metrics records request metrics when set.
	Metrics *Metrics
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a nature reserves API client.
type Client struct {
	baseURL    string
	tileURL    string
	httpClient HTTPDoer
	tileClient HTTPDoer
	metrics    *Metrics
}

// NewClient creates a new client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:     ProviderName,
			Timeout:  timeout,
			Retry:    resilience.NoRetry,
			Registry: cfg.Registry,
		})
	}

	tileClient := cfg.TileHTTPClient
	if tileClient == nil {
		if cfg.HTTPClient != nil {
			tileClient = cfg.HTTPClient
		} else {
			tileClient = resilience.NewClient(resilience.ClientConfig{
				Name:     TileProviderName,
				Timeout:  timeout,
				Retry:    resilience.NoRetry,
				Registry: cfg.Registry,
			})
		}
	}

	tileURL := cfg.TileURL
	if tileURL == "" {
		tileURL = baseURL + "/tiles/{z}/{x}/{y}.pbf"
	}

	return &Client{
		baseURL:    baseURL,
		tileURL:    tileURL,
		httpClient: httpClient,
		tileClient: tileClient,
		metrics:    cfg.Metrics,
	}
}

// Operators retrieves every operator.
func (c *Client) Operators(ctx context.Context) (ops []reserve.Operator, err error) {
	defer c.observe("operators", time.Now(), &err)

	body, err := c.get(ctx, "/api/operators/", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch operators: %w", err)
	}
	items, err := decodeList[operatorData](body)
	if err != nil {
		return nil, fmt.Errorf("decode operators response: %w", err)
	}

	ops = make([]reserve.Operator, 0, len(items))
	for _, op := range items {
		ops = append(ops, reserve.Operator(op))
	}
	return ops, nil
}

// Config retrieves the backend configuration.
func (c *Client) Config(ctx context.Context) (cfg reserve.BackendConfig, err error) {
	defer c.observe("config", time.Now(), &err)

	body, err := c.get(ctx, "/api/config/", nil)
	if err != nil {
		return reserve.BackendConfig{}, fmt.Errorf("fetch config: %w", err)
	}
	var data configData
	if err := json.Unmarshal(body, &data); err != nil {
		return reserve.BackendConfig{}, fmt.Errorf("decode config response: %w", err)
	}
	if data.VectorTileMaxZoom <= 0 {
		data.VectorTileMaxZoom = reserve.DefaultVectorTileMaxZoom
	}
	return reserve.BackendConfig{VectorTileMaxZoom: data.VectorTileMaxZoom}, nil
}

// SearchReserves searches reserves by name.
func (c *Client) SearchReserves(ctx context.Context, query string, pageSize int) (out []reserve.Summary, err error) {
	defer c.observe("search", time.Now(), &err)

	params := url.Values{}
	params.Set("search", query)
	params.Set("page_size", strconv.Itoa(pageSize))

	body, err := c.get(ctx, "/api/nature-reserves/", params)
	if err != nil {
		return nil, fmt.Errorf("search reserves: %w", err)
	}
	return decodeSummaries(body)
}

// ReservesAtPoint returns every reserve whose geometry contains the point.
func (c *Client) ReservesAtPoint(ctx context.Context, lat, lon float64) (out []reserve.Summary, err error) {
	defer c.observe("at_point", time.Now(), &err)

	params := url.Values{}
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lon))

	body, err := c.get(ctx, "/api/nature-reserves/at_point/", params)
	if err != nil {
		return nil, fmt.Errorf("reserves at point: %w", err)
	}
	return decodeSummaries(body)
}

// Reserve retrieves the detail of one reserve.
func (c *Client) Reserve(ctx context.Context, id string) (d *reserve.Detail, err error) {
	defer c.observe("detail", time.Now(), &err)

	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}

	body, err := c.get(ctx, "/api/nature-reserves/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch reserve %s: %w", id, err)
	}
	var data detailData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode reserve response: %w", err)
	}
	d = data.toDetail()
	if d.ID == "" {
		d.ID = id
	}
	return d, nil
}

// Tile fetches the raw vector tile at z/x/y. The payload may be gzipped.
func (c *Client) Tile(ctx context.Context, z, x, y uint32) (data []byte, err error) {
	defer c.observe("tile", time.Now(), &err)

	u := strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(z), 10),
		"{x}", strconv.FormatUint(uint64(x), 10),
		"{y}", strconv.FormatUint(uint64(y), 10),
	).Replace(c.tileURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.tileClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tile: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return nil, ErrTileNotFound
	default:
		return nil, fmt.Errorf("unexpected status %d from tile source", resp.StatusCode)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read tile: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrTileNotFound
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (c *Client) observe(op string, start time.Time, err *error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordRequest(op, time.Since(start), *err)
}

func decodeSummaries(body []byte) ([]reserve.Summary, error) {
	items, err := decodeList[summaryData](body)
	if err != nil {
		return nil, fmt.Errorf("decode reserves response: %w", err)
	}
	out := make([]reserve.Summary, 0, len(items))
	for _, s := range items {
		out = append(out, s.toSummary())
	}
	return out, nil
}
