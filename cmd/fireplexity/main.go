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

// Package main provides the fireplexity command: the search API server and a
// configuration check for Azure OpenAI deployments.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	serviceName    = "fireplexity"
	serviceVersion = "1.0.0"
)

// defaultEnvFiles are loaded in order; variables already set are never
// overwritten, so earlier files win.
var defaultEnvFiles = []string{".env.local", ".env"}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInvalidConfig) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "AI search answers with Firecrawl and Azure OpenAI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd(), newCheckCmd())
	return rootCmd
}

// loadEnvFiles loads an explicit env file, which must exist, or the default
// files, which may be missing.
func loadEnvFiles(explicit string) error {
	if explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", explicit, err)
		}
		return nil
	}

	for _, file := range defaultEnvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}
