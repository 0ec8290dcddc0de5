// Copyright 2024 Fireplexity Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package firecrawl is a client for the Firecrawl search API.
package firecrawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the hosted Firecrawl API
	DefaultBaseURL = "https://api.firecrawl.dev"
	// DefaultTimeout bounds a single search request
	DefaultTimeout = 30 * time.Second
	// DefaultLimit is the number of results requested when none is given
	DefaultLimit = 6
	// MaxLimit caps the number of results per search
	MaxLimit = 10

	searchPath = "/v1/search"
)

// ErrMissingAPIKey is returned when Search is called without a key
var ErrMissingAPIKey = errors.New("firecrawl API key is required")

// Options configures a Client
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
}

// Client issues search requests against Firecrawl
type Client struct {
	client       *resty.Client
	logger       *zap.Logger
	baseURL      string
	defaultLimit int
	maxLimit     int
}

// SearchRequest is the body of a search call
type SearchRequest struct {
	Query         string         `json:"query"`
	Limit         int            `json:"limit"`
	ScrapeOptions *ScrapeOptions `json:"scrapeOptions,omitempty"`
}

// ScrapeOptions asks Firecrawl to scrape each result page
type ScrapeOptions struct {
	Formats []string `json:"formats"`
}

// SearchResult is a single search hit
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Markdown    string `json:"markdown,omitempty"`
}

// SearchResponse is the body returned by a successful search
type SearchResponse struct {
	Success bool           `json:"success"`
	Data    []SearchResult `json:"data"`
	Warning string         `json:"warning,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// APIError is a non-2xx answer from Firecrawl
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl API error (status %d): %s", e.StatusCode, e.Message)
}

// NewClient creates a Firecrawl client. Zero option values fall back to the
// package defaults.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = min(DefaultLimit, maxLimit)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "fireplexity/1.0").
		SetTimeout(timeout)

	return &Client{
		client:       client,
		logger:       logger,
		baseURL:      baseURL,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// BaseURL returns the API base address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Limit clamps a requested result count to the configured bounds
func (c *Client) Limit(requested int) int {
	switch {
	case requested <= 0:
		return c.defaultLimit
	case requested > c.maxLimit:
		return c.maxLimit
	default:
		return requested
	}
}

// Search runs a query with the given API key
func (c *Client) Search(ctx context.Context, apiKey string, req SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	req.Limit = c.Limit(req.Limit)

	c.logger.Debug("Sending search request to Firecrawl",
		zap.String("query", req.Query),
		zap.Int("limit", req.Limit),
		zap.Bool("scrape", req.ScrapeOptions != nil),
	)

	var result SearchResponse
	var apiErr errorBody
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post(searchPath)
	if err != nil {
		return nil, fmt.Errorf("firecrawl search request failed: %w", err)
	}

	if resp.IsError() {
		message := apiErr.Error
		if message == "" {
			message = http.StatusText(resp.StatusCode())
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: message}
	}

	if !result.Success {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: "search was not successful"}
	}

	if len(result.Data) > req.Limit {
		result.Data = result.Data[:req.Limit]
	}

	c.logger.Debug("Firecrawl search completed",
		zap.String("query", req.Query),
		zap.Int("results_count", len(result.Data)),
		zap.Duration("duration", resp.Time()),
	)

	return &result, nil
}
