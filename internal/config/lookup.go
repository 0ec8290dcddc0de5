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
	"os"
	"strings"
)

// Lookup returns the value of a named variable and whether it was set.
type Lookup func(key string) (string, bool)

// EnvLookup reads variables from the process environment.
func EnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapLookup serves variables from a fixed map.
func MapLookup(values map[string]string) Lookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

// get returns the variable verbatim, or "" when it is unset or blank.
func (l Lookup) get(key string) string {
	if l == nil {
		return ""
	}
	value, ok := l(key)
	if !ok || strings.TrimSpace(value) == "" {
		return ""
	}
	return value
}

// getOrDefault returns the variable, or def when it is unset or blank.
func (l Lookup) getOrDefault(key, def string) string {
	if value := l.get(key); value != "" {
		return value
	}
	return def
}
