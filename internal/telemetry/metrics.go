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

// Package telemetry holds the Prometheus metrics exported by the service.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultSuccess = "success"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ConfigChecks     *prometheus.CounterVec
	SearchRequests   *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	ClientBuilds     *prometheus.CounterVec
	TokensTotal      *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg. A nil
// registerer leaves the metrics unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConfigChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fireplexity_config_checks_total",
			Help: "Total number of configuration status checks served.",
		}, []string{"endpoint", "result"}),

		SearchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fireplexity_search_requests_total",
			Help: "Total number of answer requests by outcome.",
		}, []string{"status"}),

		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fireplexity_upstream_duration_seconds",
			Help:    "Latency of calls to Firecrawl and Azure OpenAI.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"upstream", "outcome"}),

		ClientBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fireplexity_client_builds_total",
			Help: "Chat client constructions by connection mode.",
		}, []string{"mode", "result"}),

		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fireplexity_tokens_total",
			Help: "Total tokens reported by the chat deployment.",
		}, []string{"direction"}),
	}
}

// RecordConfigCheck counts a status endpoint call.
func (m *Metrics) RecordConfigCheck(endpoint, result string) {
	if m == nil {
		return
	}
	m.ConfigChecks.WithLabelValues(endpoint, result).Inc()
}

// RecordSearch counts a finished answer request.
func (m *Metrics) RecordSearch(status string) {
	if m == nil {
		return
	}
	m.SearchRequests.WithLabelValues(status).Inc()
}

// ObserveUpstream records the latency of one upstream call.
func (m *Metrics) ObserveUpstream(upstream string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := ResultSuccess
	if err != nil {
		outcome = ResultError
	}
	m.UpstreamDuration.WithLabelValues(upstream, outcome).Observe(elapsed.Seconds())
}

// RecordClientBuild counts a chat client construction. mode is empty when
// the build failed before a mode was chosen.
func (m *Metrics) RecordClientBuild(mode string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	if mode == "" {
		mode = "unknown"
	}
	m.ClientBuilds.WithLabelValues(mode, result).Inc()
}

// RecordTokens adds prompt and completion token counts.
func (m *Metrics) RecordTokens(prompt, completion int) {
	if m == nil {
		return
	}
	if prompt > 0 {
		m.TokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.TokensTotal.WithLabelValues("completion").Add(float64(completion))
	}
}
