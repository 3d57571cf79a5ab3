package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/common/model"
)

// ApiClient defines the lower-level HTTP operations against the booking API.
// Credentials are attached and refreshed by the underlying HttpClient; callers
// never pass tokens here.
type ApiClient interface {
	GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error
	GetCachedJSON(ctx context.Context, endpoint string, params url.Values, out any) error
	PostJSON(ctx context.Context, endpoint string, body, out any, expectedStatusCodes ...int) error
	PutJSON(ctx context.Context, endpoint string, body, out any, expectedStatusCodes ...int) error
	PatchJSON(ctx context.Context, endpoint string, body, out any, expectedStatusCodes ...int) error
	DoRequest(ctx context.Context, method, urlStr string, body io.Reader, expectedStatus ...int) ([]byte, error)
	Stats() common.StatsSnapshot
	FlushCache()
}

type apiClient struct {
	baseURL    string
	httpClient common.HttpClient
	cache      *cache.Cache
	cacheTTL   time.Duration
	stats      common.Stats
}

// DefaultCacheTTL is how long catalogue responses (rooms) are reused.
const DefaultCacheTTL = time.Minute

// NewApiClient creates an ApiClient rooted at baseURL. A cacheTTL of zero
// disables the catalogue cache.
func NewApiClient(baseURL string, httpClient common.HttpClient, cacheTTL time.Duration) ApiClient {
	c := &apiClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		cacheTTL:   cacheTTL,
	}
	if cacheTTL > 0 {
		c.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return c
}

// FlushCache drops every cached catalogue response.
func (c *apiClient) FlushCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// GetJSON fetches endpoint and decodes the response into out. Gateway and
// server errors are retried with exponential backoff.
func (c *apiClient) GetJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	data, err := c.getBytes(ctx, endpoint, params)
	if err != nil {
		return err
	}
	return decode(data, out)
}

// GetCachedJSON is GetJSON with a short-lived in-memory cache in front.
func (c *apiClient) GetCachedJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.cache == nil {
		return c.GetJSON(ctx, endpoint, params, out)
	}

	key := buildCacheKey(endpoint, params)
	if cached, found := c.cache.Get(key); found {
		return decode(cached.([]byte), out)
	}
	data, err := c.getBytes(ctx, endpoint, params)
	if err != nil {
		return err
	}
	c.cache.Set(key, data, c.cacheTTL)
	return decode(data, out)
}

func (c *apiClient) getBytes(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	urlStr, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}
	operation := func() (any, error) {
		return c.DoRequest(ctx, http.MethodGet, urlStr, nil)
	}
	result, err := c.httpClient.RetryWithExponentialBackoff(ctx, operation)
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *apiClient) PostJSON(ctx context.Context, endpoint string, body, out any, expectedStatusCodes ...int) error {
	return c.send(ctx, http.MethodPost, endpoint, body, out, expectedStatusCodes)
}

func (c *apiClient) PutJSON(ctx context.Context, endpoint string, body, out any, expectedStatusCodes ...int) error {
	return c.send(ctx, http.MethodPut, endpoint, body, out, expectedStatusCodes)
}

func (c *apiClient) PatchJSON(ctx context.Context, endpoint string, body, out any, expectedStatusCodes ...int) error {
	return c.send(ctx, http.MethodPatch, endpoint, body, out, expectedStatusCodes)
}

func (c *apiClient) send(ctx context.Context, method, endpoint string, body, out any, expected []int) error {
	urlStr, err := c.buildURL(endpoint, nil)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	data, err := c.DoRequest(ctx, method, urlStr, reader, expected...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(data, out)
}

// DoRequest performs one HTTP request and returns the body. A status outside
// expectedStatus (default 200 and 201) becomes a *common.HTTPError.
func (c *apiClient) DoRequest(ctx context.Context, method, urlStr string, body io.Reader, expectedStatus ...int) ([]byte, error) {
	if len(expectedStatus) == 0 {
		expectedStatus = []int{http.StatusOK, http.StatusCreated}
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.stats.Record(0)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.stats.Record(resp.StatusCode)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if !statusMatches(resp.StatusCode, expectedStatus) {
		log.WithFields(log.Fields{
			"method": method,
			"url":    urlStr,
			"status": resp.StatusCode,
		}).Debug("unexpected status from booking API")
		return nil, &common.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}
	return data, nil
}

func (c *apiClient) Stats() common.StatsSnapshot {
	return c.stats.Snapshot()
}

// buildURL joins baseURL and endpoint and sets the query parameters.
func (c *apiClient) buildURL(endpoint string, params url.Values) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	full := base.JoinPath(strings.Split(strings.Trim(endpoint, "/"), "/")...)
	if len(params) > 0 {
		full.RawQuery = params.Encode()
	}
	return full.String(), nil
}

func buildCacheKey(endpoint string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "&%s=%s", k, strings.Join(params[k], ","))
	}
	return fmt.Sprintf("booking:%s:%s", endpoint, sb.String())
}

func statusMatches(statusCode int, expected []int) bool {
	for _, s := range expected {
		if statusCode == s {
			return true
		}
	}
	return false
}

func decode(data []byte, out any) error {
	if err := model.JSONUnmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ErrorMessage extracts the API's human-readable message from an error
// returned by ApiClient, falling back to err.Error().
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if httpErr, ok := asHTTPError(err); ok {
		if msg := gjson.GetBytes(httpErr.Body, "message").String(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
