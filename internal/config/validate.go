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

import "strings"

// ValidationResult lists every problem found in the provider configuration
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ValidateProvider checks the provider variables and returns all problems
// instead of failing. The resolver's message comes first; the gateway pair is
// checked on the raw variables even when resolution failed.
func ValidateProvider(lookup Lookup) ValidationResult {
	errs := []string{}

	resolved, err := ResolveProvider(lookup)
	if err != nil {
		errs = append(errs, err.Error())
	}

	endpoint := lookup.get(EnvAzureEndpoint)
	gatewayEndpoint := lookup.get(EnvGatewayEndpoint)
	gatewayKey := lookup.get(EnvGatewaySubscriptionKey)

	// an absent endpoint is already covered by the resolver message
	if endpoint != "" && !strings.Contains(endpoint, AzureEndpointDomain) && gatewayEndpoint == "" {
		errs = append(errs, MsgEndpointFormat)
	}

	pair := ProviderConfig{GatewayEndpoint: gatewayEndpoint, GatewaySubscriptionKey: gatewayKey}
	if err := pair.CheckGateway(); err != nil {
		errs = append(errs, err.Error())
	}

	if resolved != nil && strings.TrimSpace(resolved.DeploymentName) == "" {
		errs = append(errs, MsgDeploymentMissing)
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}
