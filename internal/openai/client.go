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

// Package openai builds Azure OpenAI chat clients in direct or gateway mode.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/fireplexity/internal/config"
)

const (
	// APIKeyHeader carries the Azure OpenAI key
	APIKeyHeader = "api-key"
	// SubscriptionKeyHeader carries the API Management subscription key
	SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
)

// Mode is the connection mode selected for a client
type Mode string

const (
	// ModeDirect talks to https://{resource}.openai.azure.com
	ModeDirect Mode = "direct"
	// ModeGateway talks to an API Management gateway in front of Azure OpenAI
	ModeGateway Mode = "gateway"
)

// Client is a chat completion client bound to one deployment
type Client struct {
	client     *openai.Client
	logger     *zap.Logger
	mode       Mode
	baseURL    string
	model      string
	apiVersion string
	headers    http.Header
}

// NewClient resolves the provider configuration through lookup and builds a
// client for it. Resolution failures are returned unchanged.
func NewClient(lookup config.Lookup, logger *zap.Logger) (*Client, error) {
	cfg, err := config.ResolveProvider(lookup)
	if err != nil {
		return nil, err
	}
	return NewClientFromConfig(cfg, logger)
}

// NewClientFromConfig selects gateway mode when both gateway fields are set
// and direct mode otherwise. Both modes use the deployment path
// {base}/openai/deployments/{deployment}/chat/completions.
func NewClientFromConfig(cfg *config.ProviderConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := cfg.CheckGateway(); err != nil {
		return nil, err
	}

	c := &Client{
		logger:     logger,
		model:      cfg.DeploymentName,
		apiVersion: cfg.APIVersion,
		headers:    http.Header{},
	}
	c.headers.Set(APIKeyHeader, cfg.APIKey)

	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, "")
	clientConfig.APIVersion = cfg.APIVersion
	deployment := cfg.DeploymentName
	clientConfig.AzureModelMapperFunc = func(string) string {
		return deployment
	}

	if cfg.UsesGateway() {
		c.mode = ModeGateway
		c.baseURL = strings.TrimRight(cfg.GatewayEndpoint, "/")
		c.headers.Set(SubscriptionKeyHeader, cfg.GatewaySubscriptionKey)
		clientConfig.HTTPClient = &http.Client{
			Transport: &subscriptionKeyTransport{
				key:  cfg.GatewaySubscriptionKey,
				base: http.DefaultTransport,
			},
		}
	} else {
		resource, err := config.ExtractResourceName(cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		c.mode = ModeDirect
		c.baseURL = config.DirectBaseURL(resource)
	}

	clientConfig.BaseURL = c.baseURL
	c.client = openai.NewClientWithConfig(clientConfig)

	logger.Debug("Azure OpenAI client configured",
		zap.String("mode", string(c.mode)),
		zap.String("base_url", c.baseURL),
		zap.String("chat_url", c.ChatCompletionsURL()),
		zap.String("deployment", c.model),
		zap.String("api_version", c.apiVersion),
	)

	return c, nil
}

// Mode returns the selected connection mode
func (c *Client) Mode() Mode { return c.mode }

// BaseURL returns the base address requests are sent to
func (c *Client) BaseURL() string { return c.baseURL }

// Model returns the deployment name used as the model identifier
func (c *Client) Model() string { return c.model }

// Headers returns a copy of the credential headers sent with every request
func (c *Client) Headers() http.Header { return c.headers.Clone() }

// ChatCompletionsURL returns the URL chat completion requests are posted to
func (c *Client) ChatCompletionsURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiVersion))
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Messages    []openai.ChatCompletionMessage
	MaxTokens   int
	Temperature float32
}

// ChatCompletionResponse represents the response from a chat completion
type ChatCompletionResponse struct {
	Content      string
	FinishReason string
	Usage        openai.Usage
}

// CreateChatCompletion sends a single chat completion request to the
// configured deployment.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	c.logger.Debug("Creating chat completion",
		zap.String("mode", string(c.mode)),
		zap.String("deployment", c.model),
		zap.Int("max_tokens", req.MaxTokens),
		zap.Float64("temperature", float64(req.Temperature)),
		zap.Int("message_count", len(req.Messages)),
	)

	resp, err := c.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, c.handleAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from Azure OpenAI")
	}

	c.logger.Debug("Chat completion successful",
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return &ChatCompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage:        resp.Usage,
	}, nil
}

// APIError is an error status returned by Azure OpenAI or the gateway
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Azure OpenAI API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (c *Client) handleAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			message = "invalid API key or unauthorized access: " + message
		}
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: message, Err: err}
	}

	// gateways answer with bodies that are not in the OpenAI error format
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: http.StatusText(reqErr.HTTPStatusCode), Err: err}
	}

	return fmt.Errorf("Azure OpenAI client error: %w", err)
}

// subscriptionKeyTransport adds the gateway subscription key to every request
type subscriptionKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *subscriptionKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set(SubscriptionKeyHeader, t.key)
	return t.base.RoundTrip(clone)
}
