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
	"fmt"
	"regexp"
	"strings"
)

// AzureEndpointDomain is the host suffix of direct Azure OpenAI endpoints
const AzureEndpointDomain = "openai.azure.com"

var azureEndpointPattern = regexp.MustCompile(`^https://([A-Za-z0-9][A-Za-z0-9-]*)\.openai\.azure\.com(?:/.*)?$`)

// ExtractResourceName returns the resource segment of an endpoint shaped
// like https://{resource}.openai.azure.com/.
func ExtractResourceName(endpoint string) (string, error) {
	match := azureEndpointPattern.FindStringSubmatch(strings.TrimSpace(endpoint))
	if match == nil {
		return "", &ConfigurationError{
			Variables: []string{EnvAzureEndpoint},
			Message: fmt.Sprintf("invalid %s %q: expected https://<resource>.%s/",
				EnvAzureEndpoint, endpoint, AzureEndpointDomain),
		}
	}
	return match[1], nil
}

// DirectBaseURL returns the canonical base address for a resource
func DirectBaseURL(resource string) string {
	return "https://" + resource + "." + AzureEndpointDomain
}
