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

package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestServiceErrorConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name       string
		err        *ServiceError
		wantCode   ErrorCode
		wantStatus int
	}{
		{"bad request", NewBadRequestError("bad", cause), ErrorCodeBadRequest, http.StatusBadRequest},
		{"internal", NewInternalError("internal", cause), ErrorCodeInternalError, http.StatusInternalServerError},
		{"configuration", NewConfigurationError("config", cause), ErrorCodeConfiguration, http.StatusInternalServerError},
		{"unavailable", NewServiceUnavailableError("down", cause), ErrorCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"timeout", NewTimeoutError("slow", cause), ErrorCodeTimeout, http.StatusGatewayTimeout},
		{"dependency", NewDependencyFailureError("upstream", cause), ErrorCodeDependencyFailure, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.ErrorIs(t, tt.err, cause)
		})
	}
}

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   ErrorResponse
	}{
		{
			name:       "service error",
			err:        NewDependencyFailureError("Search provider failed", errors.New("502")),
			wantStatus: http.StatusBadGateway,
			wantBody:   ErrorResponse{Error: "Search provider failed", Code: string(ErrorCodeDependencyFailure)},
		},
		{
			name: "wrapped service error with details",
			err: fmt.Errorf("answer: %w", &ServiceError{
				Message:    "Configuration invalid",
				Code:       ErrorCodeConfiguration,
				StatusCode: http.StatusInternalServerError,
				Details:    []string{"missing key"},
			}),
			wantStatus: http.StatusInternalServerError,
			wantBody: ErrorResponse{
				Error:   "Configuration invalid",
				Code:    string(ErrorCodeConfiguration),
				Details: []string{"missing key"},
			},
		},
		{
			name:       "plain error",
			err:        errors.New("secret internals"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorResponse{Error: "An unexpected error occurred", Code: string(ErrorCodeInternalError)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Respond(c, zaptest.NewLogger(t), tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody.Error, body.Error)
			assert.Equal(t, tt.wantBody.Code, body.Code)
			assert.Equal(t, tt.wantBody.Details, body.Details)
			assert.False(t, body.Timestamp.IsZero())
			assert.NotContains(t, w.Body.String(), "secret internals")
		})
	}
}
