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

// Package search answers questions by searching the web with Firecrawl and
// summarising the results with an Azure OpenAI deployment.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/fireplexity/internal/apierror"
	"github.com/your-org/fireplexity/internal/config"
	"github.com/your-org/fireplexity/internal/firecrawl"
	"github.com/your-org/fireplexity/internal/openai"
	"github.com/your-org/fireplexity/internal/telemetry"
)

const (
	// MaxQueryLength is the longest query forwarded upstream
	MaxQueryLength = 500

	upstreamFirecrawl = "firecrawl"
	upstreamOpenAI    = "azure_openai"
)

// Searcher runs web searches
type Searcher interface {
	Search(ctx context.Context, apiKey string, req firecrawl.SearchRequest) (*firecrawl.SearchResponse, error)
	Limit(requested int) int
}

// ChatClient sends chat completions to one deployment
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
	Mode() openai.Mode
	Model() string
}

// ClientFactory builds a chat client from the current provider configuration
type ClientFactory func(lookup config.Lookup, logger *zap.Logger) (ChatClient, error)

// NewOpenAIClient is the ClientFactory backed by the Azure OpenAI client
func NewOpenAIClient(lookup config.Lookup, logger *zap.Logger) (ChatClient, error) {
	client, err := openai.NewClient(lookup, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Options tunes the answer service
type Options struct {
	MaxTokens     int
	Temperature   float64
	ChatTimeout   time.Duration
	SearchTimeout time.Duration
	ScrapeContent bool
	Now           func() time.Time
}

// Source is a cited search result
type Source struct {
	Index       int    `json:"index"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Usage reports token consumption
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is the answer to a query
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Model   string   `json:"model"`
	Mode    string   `json:"mode"`
	Usage   Usage    `json:"usage"`
}

// Service answers queries
type Service struct {
	lookup   config.Lookup
	searcher Searcher
	factory  ClientFactory
	opts     Options
	logger   *zap.Logger
	metrics  *telemetry.Metrics
}

// NewService creates an answer service. The chat client is built per request
// so configuration changes apply without a restart.
func NewService(lookup config.Lookup, searcher Searcher, factory ClientFactory, opts Options, logger *zap.Logger, metrics *telemetry.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = NewOpenAIClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		lookup:   lookup,
		searcher: searcher,
		factory:  factory,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Answer searches the web for query and summarises the results. Errors are
// *apierror.ServiceError values carrying the HTTP status to report.
func (s *Service) Answer(ctx context.Context, query string, limit int) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apierror.NewBadRequestError("Query cannot be empty", nil)
	}
	query = truncateQuery(query, MaxQueryLength)

	apiKey := config.FirecrawlAPIKey(s.lookup)
	if apiKey == "" {
		return nil, apierror.NewServiceUnavailableError(config.EnvFirecrawlAPIKey+" is not configured", nil)
	}

	results, err := s.search(ctx, apiKey, query, limit)
	if err != nil {
		return nil, err
	}

	client, err := s.factory(s.lookup, s.logger)
	s.metrics.RecordClientBuild(clientMode(client), err)
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, apierror.NewConfigurationError(cfgErr.Message, err)
		}
		return nil, apierror.NewInternalError("Failed to create Azure OpenAI client", err)
	}

	chatCtx := ctx
	if s.opts.ChatTimeout > 0 {
		var cancel context.CancelFunc
		chatCtx, cancel = context.WithTimeout(ctx, s.opts.ChatTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(chatCtx, openai.ChatCompletionRequest{
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: BuildSystemPrompt(s.opts.Now())},
			{Role: goopenai.ChatMessageRoleUser, Content: BuildUserPrompt(query, results)},
		},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: float32(s.opts.Temperature),
	})
	s.metrics.ObserveUpstream(upstreamOpenAI, err, time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierror.NewTimeoutError("Azure OpenAI request timed out", err)
		}
		return nil, apierror.NewDependencyFailureError("Failed to generate answer", err)
	}
	s.metrics.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	sources := make([]Source, 0, len(results))
	for i, result := range results {
		sources = append(sources, Source{
			Index:       i + 1,
			URL:         result.URL,
			Title:       result.Title,
			Description: result.Description,
		})
	}

	s.logger.Info("Answer generated",
		zap.String("query", query),
		zap.Int("sources", len(sources)),
		zap.String("mode", string(client.Mode())),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return &Response{
		Query:   query,
		Answer:  resp.Content,
		Sources: sources,
		Model:   client.Model(),
		Mode:    string(client.Mode()),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (s *Service) search(ctx context.Context, apiKey, query string, limit int) ([]firecrawl.SearchResult, error) {
	searchCtx := ctx
	if s.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
	}

	req := firecrawl.SearchRequest{
		Query: query,
		Limit: s.searcher.Limit(limit),
	}
	if s.opts.ScrapeContent {
		req.ScrapeOptions = &firecrawl.ScrapeOptions{Formats: []string{"markdown"}}
	}

	start := time.Now()
	resp, err := s.searcher.Search(searchCtx, apiKey, req)
	s.metrics.ObserveUpstream(upstreamFirecrawl, err, time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierror.NewTimeoutError("Search request timed out", err)
		}
		return nil, apierror.NewDependencyFailureError("Search failed", err)
	}

	return resp.Data, nil
}

func clientMode(client ChatClient) string {
	if client == nil {
		return ""
	}
	return string(client.Mode())
}
