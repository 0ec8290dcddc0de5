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

// Package health reports service readiness from its configured dependencies
package health

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/fireplexity/internal/config"
)

const (
	// StatusHealthy represents healthy status
	StatusHealthy = "healthy"
	// StatusUnhealthy represents unhealthy status
	StatusUnhealthy = "unhealthy"
	// StatusDegraded represents degraded status
	StatusDegraded = "degraded"
	// DefaultTimeout is the default timeout for health checks
	DefaultTimeout = 5 * time.Second
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Status    string                 `json:"status"`
	Latency   time.Duration          `json:"latency"`
	Error     string                 `json:"error,omitempty"`
	Details   []string               `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Response is the body served by the health endpoint
type Response struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Version      string                 `json:"version"`
	Uptime       string                 `json:"uptime"`
	GoVersion    string                 `json:"go_version"`
	Dependencies map[string]CheckResult `json:"dependencies"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Checker interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc is a function adapter for the Checker interface
type CheckerFunc func(ctx context.Context) CheckResult

// Check implements the Checker interface
func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Manager runs the registered checkers and folds their results
type Manager struct {
	serviceName string
	version     string
	startTime   time.Time
	timeout     time.Duration
	logger      *zap.Logger

	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewManager creates a new health check manager
func NewManager(serviceName, version string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		timeout:     DefaultTimeout,
		logger:      logger,
		checkers:    make(map[string]Checker),
	}
}

// SetTimeout sets the timeout for health checks
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// AddChecker registers checker under name, replacing any previous one
func (m *Manager) AddChecker(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// Check performs all health checks. Any unhealthy dependency makes the
// service unhealthy; any degraded one makes it degraded.
func (m *Manager) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	dependencies := make(map[string]CheckResult, len(names))
	overall := StatusHealthy

	for _, name := range names {
		m.mu.RLock()
		checker := m.checkers[name]
		m.mu.RUnlock()

		start := time.Now()
		result := checker.Check(ctx)
		result.Latency = time.Since(start)
		result.Timestamp = time.Now()
		dependencies[name] = result

		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall != StatusUnhealthy {
				overall = StatusDegraded
			}
		}
	}

	return Response{
		Status:       overall,
		Service:      m.serviceName,
		Version:      m.version,
		Uptime:       time.Since(m.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		Dependencies: dependencies,
		Timestamp:    time.Now(),
	}
}

// Handler serves the health report. Degraded stays 200; unhealthy is 503.
func (m *Manager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result := m.Check(c.Request.Context())

		statusCode := http.StatusOK
		if result.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
			m.logger.Warn("Health check failed", zap.Any("dependencies", result.Dependencies))
		}

		c.JSON(statusCode, result)
	}
}

// ProviderChecker reports the Azure OpenAI configuration. Any validation
// error makes it unhealthy.
func ProviderChecker(lookup config.Lookup) Checker {
	return CheckerFunc(func(_ context.Context) CheckResult {
		result := config.ValidateProvider(lookup)
		if !result.IsValid {
			return CheckResult{
				Status:  StatusUnhealthy,
				Error:   "Azure OpenAI configuration invalid",
				Details: result.Errors,
			}
		}

		cfg, err := config.ResolveProvider(lookup)
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
		}

		mode := "direct"
		if cfg.UsesGateway() {
			mode = "gateway"
		}
		return CheckResult{
			Status: StatusHealthy,
			Metadata: map[string]interface{}{
				"mode":        mode,
				"deployment":  cfg.DeploymentName,
				"api_version": cfg.APIVersion,
			},
		}
	})
}

// FirecrawlKeyChecker reports whether a search key is configured. Without
// one the service still answers status calls, so it is only degraded.
func FirecrawlKeyChecker(lookup config.Lookup) Checker {
	return CheckerFunc(func(_ context.Context) CheckResult {
		if !config.HasFirecrawlKey(lookup) {
			return CheckResult{
				Status: StatusDegraded,
				Error:  config.EnvFirecrawlAPIKey + " is not set",
			}
		}
		return CheckResult{Status: StatusHealthy}
	})
}
