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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/fireplexity/internal/config"
	"github.com/your-org/fireplexity/internal/health"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadWithOptions(config.LoadOptions{ConfigPath: "", ValidateRequired: false})
	require.NoError(t, err)
	return cfg
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := []string{}
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "check")

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	for _, flag := range []string{"config", "port", "env-file", "watch"} {
		assert.NotNil(t, serve.Flags().Lookup(flag), "serve should have --%s", flag)
	}
}

func TestRunCheck(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantValid bool
		wantErrs  []string
	}{
		{
			name: "valid direct configuration",
			env: map[string]string{
				config.EnvAzureEndpoint: "https://foo.openai.azure.com/",
				config.EnvAzureAPIKey:   "k",
			},
			wantValid: true,
			wantErrs:  []string{},
		},
		{
			name:      "gateway endpoint only",
			env:       map[string]string{config.EnvGatewayEndpoint: "https://gw/"},
			wantValid: false,
			wantErrs:  []string{config.MsgProviderMissing, config.MsgGatewayKeyMissing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runCheck(config.MapLookup(tt.env), &out)
			if tt.wantValid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, errInvalidConfig)
			}

			var result config.ValidationResult
			require.NoError(t, json.Unmarshal(out.Bytes(), &result))
			assert.Equal(t, tt.wantValid, result.IsValid)
			assert.Equal(t, tt.wantErrs, result.Errors)
		})
	}
}

func TestCheckCommand_EnvFile(t *testing.T) {
	for _, key := range []string{
		config.EnvAzureEndpoint, config.EnvAzureAPIKey,
		config.EnvGatewayEndpoint, config.EnvGatewaySubscriptionKey,
		config.EnvAzureDeploymentName, config.EnvAzureAPIVersion,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	envFile := filepath.Join(t.TempDir(), "test.env")
	content := config.EnvAzureEndpoint + "=https://foo.openai.azure.com/\n" +
		config.EnvAzureAPIKey + "=k\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0600))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "--env-file", envFile})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"isValid": true`)
}

func TestLoadEnvFiles_MissingExplicitFile(t *testing.T) {
	err := loadEnvFiles(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"unknown": zapcore.InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLevel(input), input)
	}
}

func TestInitializeLogger(t *testing.T) {
	logger, level, err := initializeLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, zapcore.WarnLevel, level.Level())

	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lookup := config.MapLookup(map[string]string{
		config.EnvAzureEndpoint: "https://foo.openai.azure.com/",
		config.EnvAzureAPIKey:   "k",
	})
	router := newRouter(testConfig(t), lookup, zaptest.NewLogger(t), prometheus.NewRegistry())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"check env", http.MethodGet, "/api/check-env", "", http.StatusOK, `"hasAzureOpenAI":true`},
		{"check azure env", http.MethodGet, "/api/check-azure-env", "", http.StatusOK, `"configured":true`},
		{"health degraded without firecrawl key", http.MethodGet, "/health", "", http.StatusOK, health.StatusDegraded},
		{"search without firecrawl key", http.MethodPost, "/api/fireplexity/search", `{"query":"q"}`, http.StatusServiceUnavailable, "FIRECRAWL_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}

	// metrics are exported once a status check has been counted
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fireplexity_config_checks_total")
}

func TestRouter_InvalidProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := newRouter(testConfig(t), config.MapLookup(nil), zaptest.NewLogger(t), prometheus.NewRegistry())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/check-azure-env", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"configured":false`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInitializeLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, _, err := initializeLogger(config.LoggingConfig{Level: "info", Format: "text", Output: path})
	require.NoError(t, err)

	logger.Info("written to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
