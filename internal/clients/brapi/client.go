// Package brapi provides a client for the brapi.dev quote API.
package brapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hbarro/lares/internal/common"
	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

const (
	DefaultBaseURL   = "https://brapi.dev/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// Client fetches market quotes from brapi.dev.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new brapi client
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brapi API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.token != "" {
		params.Set("token", c.token)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("brapi API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// quoteResponse represents the API response for quote data
type quoteResponse struct {
	Results []struct {
		Symbol             string      `json:"symbol"`
		RegularMarketPrice flexFloat64 `json:"regularMarketPrice"`
		Currency           string      `json:"currency"`
		RegularMarketTime  string      `json:"regularMarketTime"`
	} `json:"results"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// GetQuote retrieves the current price for a single ticker.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	quotes, err := c.GetQuotes(ctx, []string{ticker})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quote returned for %s", ticker)
	}
	return quotes[0], nil
}

// GetQuotes retrieves current prices for multiple tickers in one call.
func (c *Client) GetQuotes(ctx context.Context, tickers []string) ([]*models.Quote, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	path := fmt.Sprintf("/quote/%s", strings.Join(tickers, ","))

	var resp quoteResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error {
		return nil, fmt.Errorf("brapi quote lookup failed: %s", resp.Message)
	}

	quotes := make([]*models.Quote, 0, len(resp.Results))
	for _, r := range resp.Results {
		updatedAt, err := time.Parse(time.RFC3339, r.RegularMarketTime)
		if err != nil {
			updatedAt = time.Now().UTC()
		}
		quotes = append(quotes, &models.Quote{
			Ticker:    r.Symbol,
			Price:     float64(r.RegularMarketPrice),
			Currency:  r.Currency,
			UpdatedAt: updatedAt,
		})
	}

	c.logger.Debug().Int("quotes", len(quotes)).Msg("brapi returned quotes")

	return quotes, nil
}

// Ensure Client implements QuoteClient
var _ interfaces.QuoteClient = (*Client)(nil)
