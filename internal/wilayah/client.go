// Package wilayah предоставляет клиент справочника административных единиц Индонезии.
package wilayah

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// DefaultBaseURL указывает на публичный справочник emsifa.
const DefaultBaseURL = "https://www.emsifa.com/api-wilayah-indonesia/api"

// Region описывает административную единицу (провинцию, город/округ или район).
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client инкапсулирует HTTP-взаимодействие со справочником.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
}

// NewClient создаёт HTTP-клиент справочника по указанному адресу.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 50 * time.Millisecond
	httpClient.RetryWaitMax = 200 * time.Millisecond
	httpClient.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Provinces возвращает список провинций.
func (c *Client) Provinces(ctx context.Context) ([]Region, error) {
	return c.fetch(ctx, "/provinces.json")
}

// Regencies возвращает города и округа провинции.
func (c *Client) Regencies(ctx context.Context, provinceID string) ([]Region, error) {
	return c.fetch(ctx, "/regencies/"+url.PathEscape(provinceID)+".json")
}

// Districts возвращает районы города или округа.
func (c *Client) Districts(ctx context.Context, regencyID string) ([]Region, error) {
	return c.fetch(ctx, "/districts/"+url.PathEscape(regencyID)+".json")
}

func (c *Client) fetch(ctx context.Context, path string) ([]Region, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("wilayah client not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result []Region
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result, nil
}
