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

package config

import (
	"errors"
	"strings"
)

// Environment variables read through a Lookup
const (
	EnvFirecrawlAPIKey        = "FIRECRAWL_API_KEY"
	EnvAzureEndpoint          = "AZURE_OPENAI_ENDPOINT"
	EnvAzureAPIKey            = "AZURE_OPENAI_API_KEY"
	EnvAzureAPIVersion        = "AZURE_OPENAI_API_VERSION"
	EnvAzureDeploymentName    = "AZURE_OPENAI_DEPLOYMENT_NAME"
	EnvGatewayEndpoint        = "AZURE_APIM_ENDPOINT"
	EnvGatewaySubscriptionKey = "AZURE_APIM_SUBSCRIPTION_KEY"
)

const (
	// DefaultAzureAPIVersion is used when AZURE_OPENAI_API_VERSION is unset
	DefaultAzureAPIVersion = "2024-02-15-preview"
	// DefaultAzureDeployment is used when AZURE_OPENAI_DEPLOYMENT_NAME is unset
	DefaultAzureDeployment = "gpt-4o"
)

// Messages reported by the resolver and the validator
const (
	MsgProviderMissing        = "Azure OpenAI configuration missing. Please set AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_API_KEY environment variables."
	MsgGatewayKeyMissing      = "AZURE_APIM_SUBSCRIPTION_KEY is required when using AZURE_APIM_ENDPOINT"
	MsgGatewayEndpointMissing = "AZURE_APIM_ENDPOINT is required when using AZURE_APIM_SUBSCRIPTION_KEY"
	MsgEndpointFormat         = "AZURE_OPENAI_ENDPOINT must be an Azure OpenAI endpoint (https://<resource>.openai.azure.com/) or AZURE_APIM_ENDPOINT must be set"
	MsgDeploymentMissing      = "AZURE_OPENAI_DEPLOYMENT_NAME is required"
)

// ErrConfiguration matches every ConfigurationError via errors.Is
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports required provider variables that are absent or
// malformed.
type ConfigurationError struct {
	Variables []string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// Is reports whether target is ErrConfiguration
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ProviderConfig describes how to reach the chat completion backend. A
// gateway field left empty means it is absent.
type ProviderConfig struct {
	Endpoint               string
	APIKey                 string
	APIVersion             string
	DeploymentName         string
	GatewayEndpoint        string
	GatewaySubscriptionKey string
}

// UsesGateway reports whether both gateway fields are present
func (p *ProviderConfig) UsesGateway() bool {
	return p.GatewayEndpoint != "" && p.GatewaySubscriptionKey != ""
}

// CheckGateway returns a ConfigurationError when exactly one of the gateway
// fields is present.
func (p *ProviderConfig) CheckGateway() error {
	switch {
	case p.GatewayEndpoint != "" && p.GatewaySubscriptionKey == "":
		return &ConfigurationError{
			Variables: []string{EnvGatewaySubscriptionKey},
			Message:   MsgGatewayKeyMissing,
		}
	case p.GatewayEndpoint == "" && p.GatewaySubscriptionKey != "":
		return &ConfigurationError{
			Variables: []string{EnvGatewayEndpoint},
			Message:   MsgGatewayEndpointMissing,
		}
	}
	return nil
}

// MaskSensitiveValues returns a copy with credentials masked
func (p ProviderConfig) MaskSensitiveValues() ProviderConfig {
	masked := p
	if masked.APIKey != "" {
		masked.APIKey = maskValue(masked.APIKey)
	}
	if masked.GatewaySubscriptionKey != "" {
		masked.GatewaySubscriptionKey = maskValue(masked.GatewaySubscriptionKey)
	}
	return masked
}

// ResolveProvider reads the provider variables through lookup. It fails with
// a ConfigurationError when the endpoint or API key is missing. Gateway
// variables are passed through without validation.
func ResolveProvider(lookup Lookup) (*ProviderConfig, error) {
	endpoint := lookup.get(EnvAzureEndpoint)
	apiKey := lookup.get(EnvAzureAPIKey)

	if endpoint == "" || apiKey == "" {
		return nil, &ConfigurationError{
			Variables: []string{EnvAzureEndpoint, EnvAzureAPIKey},
			Message:   MsgProviderMissing,
		}
	}

	return &ProviderConfig{
		Endpoint:               endpoint,
		APIKey:                 apiKey,
		APIVersion:             lookup.getOrDefault(EnvAzureAPIVersion, DefaultAzureAPIVersion),
		DeploymentName:         lookup.getOrDefault(EnvAzureDeploymentName, DefaultAzureDeployment),
		GatewayEndpoint:        lookup.get(EnvGatewayEndpoint),
		GatewaySubscriptionKey: lookup.get(EnvGatewaySubscriptionKey),
	}, nil
}

// FirecrawlAPIKey returns the search API key, or "" when unset
func FirecrawlAPIKey(lookup Lookup) string {
	return lookup.get(EnvFirecrawlAPIKey)
}

// HasFirecrawlKey reports whether the search API key is present
func HasFirecrawlKey(lookup Lookup) bool {
	return FirecrawlAPIKey(lookup) != ""
}

// maskValue masks sensitive values, showing only the first 4 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", len(value)-4)
}
