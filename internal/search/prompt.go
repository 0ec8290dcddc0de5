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
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/your-org/fireplexity/internal/firecrawl"
)

// maxSourceTokens caps the page content included per source
const maxSourceTokens = 750

// BuildSystemPrompt returns the instructions for answering from web sources
func BuildSystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are Fireplexity, a search assistant that answers questions using the web sources provided.
Today's date is %s.

Guidelines:
- Answer directly and concisely, then add supporting detail.
- Cite sources inline with their number in square brackets, for example [1] or [2][3].
- Only use information from the sources. If they do not answer the question, say so.
- Use markdown for lists and emphasis. Do not include a separate list of sources.
`, now.Format("January 2, 2006"))
}

// BuildUserPrompt combines the query with numbered source excerpts
func BuildUserPrompt(query string, results []firecrawl.SearchResult) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("User Query: %s\n\n", query))

	if len(results) == 0 {
		prompt.WriteString("No web sources were found for this query.\n")
	} else {
		prompt.WriteString("--- Web Sources ---\n")
		for i, result := range results {
			prompt.WriteString(fmt.Sprintf("[%d] %s\nURL: %s\n", i+1, result.Title, result.URL))
			content := result.Markdown
			if strings.TrimSpace(content) == "" {
				content = result.Description
			}
			if content != "" {
				prompt.WriteString(TruncateToTokenLimit(content, maxSourceTokens))
				prompt.WriteString("\n")
			}
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("\nAnswer the query using the sources above:")
	return prompt.String()
}

// EstimateTokens provides a rough estimate of token count (4 characters per token)
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// TruncateToTokenLimit truncates text to fit within token limit
func TruncateToTokenLimit(text string, maxTokens int) string {
	if EstimateTokens(text) <= maxTokens {
		return text
	}

	targetChars := maxTokens * 4
	runes := []rune(text)
	if len(runes) > targetChars {
		return string(runes[:targetChars]) + "..."
	}
	return text
}

// truncateQuery limits a query to limit runes
func truncateQuery(query string, limit int) string {
	runes := []rune(query)
	if len(runes) <= limit {
		return query
	}
	return string(runes[:limit])
}
