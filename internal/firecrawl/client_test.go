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

package firecrawl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const searchResponseBody = `{
	"success": true,
	"data": [
		{"url": "https://example.com/a", "title": "A", "description": "first", "markdown": "# A"},
		{"url": "https://example.com/b", "title": "B", "description": "second"},
		{"url": "https://example.com/c", "title": "C", "description": "third"}
	]
}`

func TestSearch(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	var gotBody SearchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponseBody))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL + "/"}, zaptest.NewLogger(t))
	resp, err := client.Search(context.Background(), "fc-key", SearchRequest{
		Query:         "latest go release",
		Limit:         3,
		ScrapeOptions: &ScrapeOptions{Formats: []string{"markdown"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer fc-key", gotAuth)
	assert.Equal(t, "/v1/search", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "latest go release", gotBody.Query)
	assert.Equal(t, 3, gotBody.Limit)
	require.NotNil(t, gotBody.ScrapeOptions)
	assert.Equal(t, []string{"markdown"}, gotBody.ScrapeOptions.Formats)

	require.Len(t, resp.Data, 3)
	assert.Equal(t, "https://example.com/a", resp.Data[0].URL)
	assert.Equal(t, "# A", resp.Data[0].Markdown)
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchResponseBody))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL}, zaptest.NewLogger(t))
	resp, err := client.Search(context.Background(), "fc-key", SearchRequest{Query: "q", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 2)
}

func TestSearch_APIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantMessage string
	}{
		{
			name:        "firecrawl error body",
			status:      http.StatusPaymentRequired,
			contentType: "application/json",
			body:        `{"success": false, "error": "Insufficient credits"}`,
			wantMessage: "Insufficient credits",
		},
		{
			name:        "empty error body",
			status:      http.StatusBadGateway,
			contentType: "text/plain",
			body:        ``,
			wantMessage: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Options{BaseURL: server.URL}, zaptest.NewLogger(t))
			_, err := client.Search(context.Background(), "fc-key", SearchRequest{Query: "q"})
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
		})
	}
}

func TestSearch_UnsuccessfulBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "data": []}`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL}, zaptest.NewLogger(t))
	_, err := client.Search(context.Background(), "fc-key", SearchRequest{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search was not successful")
}

func TestSearch_InputValidation(t *testing.T) {
	client := NewClient(Options{}, zaptest.NewLogger(t))

	_, err := client.Search(context.Background(), " ", SearchRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = client.Search(context.Background(), "fc-key", SearchRequest{Query: "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search query cannot be empty")
}

func TestSearch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(Options{BaseURL: server.URL}, zaptest.NewLogger(t))
	_, err := client.Search(ctx, "fc-key", SearchRequest{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firecrawl search request failed")
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Options{}, nil)
	assert.Equal(t, DefaultBaseURL, client.BaseURL())
	assert.Equal(t, DefaultLimit, client.Limit(0))
	assert.Equal(t, MaxLimit, client.Limit(50))
	assert.Equal(t, 3, client.Limit(3))

	small := NewClient(Options{MaxLimit: 4, DefaultLimit: 9}, nil)
	assert.Equal(t, 4, small.Limit(0))
	assert.Equal(t, 4, small.Limit(5))
}
