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

// Package status serves the configuration status endpoints used by the UI to
// decide whether search can be offered.
package status

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/fireplexity/internal/config"
	"github.com/your-org/fireplexity/internal/telemetry"
)

const (
	// CheckEnvPath reports which credentials are present
	CheckEnvPath = "/api/check-env"
	// CheckAzureEnvPath reports whether the Azure OpenAI configuration is usable
	CheckAzureEnvPath = "/api/check-azure-env"

	// MsgConfigured is returned when validation passes
	MsgConfigured = "Azure OpenAI configuration is valid"
	// MsgInvalid is returned when validation fails
	MsgInvalid = "Azure OpenAI configuration is invalid"
	// MsgValidationFailed is returned when validation could not run
	MsgValidationFailed = "Failed to validate Azure OpenAI configuration"

	endpointCheckEnv      = "check-env"
	endpointCheckAzureEnv = "check-azure-env"
)

// EnvStatus is the body of the check-env endpoint
type EnvStatus struct {
	HasFirecrawlKey   bool     `json:"hasFirecrawlKey"`
	HasAzureOpenAI    bool     `json:"hasAzureOpenAI"`
	AzureOpenAIErrors []string `json:"azureOpenAIErrors"`
}

// ConfiguredResponse is the success body of the check-azure-env endpoint
type ConfiguredResponse struct {
	Message    string `json:"message"`
	Configured bool   `json:"configured"`
}

// NotConfiguredResponse is the failure body of the check-azure-env endpoint
type NotConfiguredResponse struct {
	Error      string   `json:"error"`
	Details    []string `json:"details"`
	Configured bool     `json:"configured"`
}

// Handler serves the status endpoints
type Handler struct {
	lookup   config.Lookup
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	validate func(config.Lookup) config.ValidationResult
}

// NewHandler creates a status handler reading configuration through lookup.
// metrics may be nil.
func NewHandler(lookup config.Lookup, logger *zap.Logger, metrics *telemetry.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		lookup:   lookup,
		logger:   logger,
		metrics:  metrics,
		validate: config.ValidateProvider,
	}
}

// Register mounts both endpoints on routes
func (h *Handler) Register(routes gin.IRoutes) {
	routes.GET(CheckEnvPath, h.CheckEnv)
	routes.GET(CheckAzureEnvPath, h.CheckAzureEnv)
}

// CheckEnv reports credential presence. It always answers 200; a failure
// while validating is reported as an Azure OpenAI error.
func (h *Handler) CheckEnv(c *gin.Context) {
	result, err := h.safeValidate()
	if err != nil {
		h.logger.Error("Configuration validation failed", zap.Error(err))
		result = config.ValidationResult{Errors: []string{err.Error()}}
	}

	h.metrics.RecordConfigCheck(endpointCheckEnv, resultLabel(result, err))

	c.JSON(http.StatusOK, EnvStatus{
		HasFirecrawlKey:   config.HasFirecrawlKey(h.lookup),
		HasAzureOpenAI:    result.IsValid,
		AzureOpenAIErrors: result.Errors,
	})
}

// CheckAzureEnv answers 200 when the Azure OpenAI configuration is valid and
// 500 with the list of problems otherwise.
func (h *Handler) CheckAzureEnv(c *gin.Context) {
	result, err := h.safeValidate()
	h.metrics.RecordConfigCheck(endpointCheckAzureEnv, resultLabel(result, err))

	if err != nil {
		h.logger.Error("Configuration validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NotConfiguredResponse{
			Error:      MsgValidationFailed,
			Details:    []string{err.Error()},
			Configured: false,
		})
		return
	}

	if !result.IsValid {
		h.logger.Warn("Azure OpenAI configuration invalid", zap.Strings("errors", result.Errors))
		c.JSON(http.StatusInternalServerError, NotConfiguredResponse{
			Error:      MsgInvalid,
			Details:    result.Errors,
			Configured: false,
		})
		return
	}

	c.JSON(http.StatusOK, ConfiguredResponse{
		Message:    MsgConfigured,
		Configured: true,
	})
}

// safeValidate runs the validator and turns a panic into an error
func (h *Handler) safeValidate() (result config.ValidationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return h.validate(h.lookup), nil
}

func resultLabel(result config.ValidationResult, err error) string {
	switch {
	case err != nil:
		return telemetry.ResultError
	case result.IsValid:
		return telemetry.ResultValid
	default:
		return telemetry.ResultInvalid
	}
}
