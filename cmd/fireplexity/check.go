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

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/your-org/fireplexity/internal/config"
)

// errInvalidConfig makes the process exit 1 after the report was printed
var errInvalidConfig = errors.New("azure openai configuration is invalid")

func newCheckCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the Azure OpenAI configuration",
		Long: "Validate the Azure OpenAI configuration from the environment and print the result as JSON.\n" +
			"Exits with status 1 when the configuration is invalid.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFiles(envFile); err != nil {
				return err
			}
			return runCheck(config.EnvLookup, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Load variables from this file instead of .env.local and .env")
	return cmd
}

func runCheck(lookup config.Lookup, out io.Writer) error {
	result := config.ValidateProvider(lookup)

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if !result.IsValid {
		return errInvalidConfig
	}
	return nil
}
