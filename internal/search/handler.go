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

package search

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/fireplexity/internal/apierror"
	"github.com/your-org/fireplexity/internal/telemetry"
)

// Path is the route of the search endpoint
const Path = "/api/fireplexity/search"

// Request is the body of a search call
type Request struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit,omitempty"`
}

// Handler exposes the Service over HTTP
type Handler struct {
	service *Service
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// NewHandler creates a search handler
func NewHandler(service *Service, logger *zap.Logger, metrics *telemetry.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger, metrics: metrics}
}

// Register mounts the search endpoint on routes
func (h *Handler) Register(routes gin.IRoutes) {
	routes.POST(Path, h.Search)
}

// Search answers a query
func (h *Handler) Search(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid search request", zap.Error(err))
		h.metrics.RecordSearch(statusLabel(http.StatusBadRequest))
		apierror.Respond(c, nil, apierror.NewBadRequestError("Invalid request format", err))
		return
	}

	resp, err := h.service.Answer(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		status := http.StatusInternalServerError
		var serviceErr *apierror.ServiceError
		if errors.As(err, &serviceErr) {
			status = serviceErr.StatusCode
		}
		h.metrics.RecordSearch(statusLabel(status))
		apierror.Respond(c, h.logger, err)
		return
	}

	h.metrics.RecordSearch(statusLabel(http.StatusOK))
	c.JSON(http.StatusOK, resp)
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
