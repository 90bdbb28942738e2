// Package docsearch exposes the per-agent document index to the model as a
// tool, letting a turn ground its answers in ingested documents.
package docsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rivoli-ai/andy-agentic-sub001/internal/agent"
	"github.com/rivoli-ai/andy-agentic-sub001/internal/rag/index"
	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

const defaultTopK = 5

// Tool searches the calling agent's document collection. The agent scope
// comes from the turn context, never from model-supplied parameters.
type Tool struct {
	index *index.Upserter
}

var _ agent.Tool = (*Tool)(nil)

// New creates the document_search tool over the given index.
func New(idx *index.Upserter) *Tool {
	return &Tool{index: idx}
}

// Name returns the tool name exposed to the model.
func (t *Tool) Name() string {
	return "document_search"
}

// Description tells the model what the tool does.
func (t *Tool) Description() string {
	return "Search the agent's ingested documents for passages relevant to a query. " +
		"Returns the best-matching excerpts with their source documents."
}

// Schema returns the JSON Schema for the tool parameters.
func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Natural-language search query"
			},
			"top_k": {
				"type": "integer",
				"description": "Maximum number of passages to return",
				"minimum": 1,
				"maximum": 20
			}
		},
		"required": ["query"]
	}`)
}

type searchParams struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Execute runs the search for the agent bound to the turn context.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	agentID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return nil, errors.New("document_search requires an agent-scoped turn")
	}

	var p searchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return &models.ToolResult{
			Content: "invalid parameters: " + err.Error(),
			IsError: true,
		}, nil
	}
	if strings.TrimSpace(p.Query) == "" {
		return &models.ToolResult{
			Content: "query must not be empty",
			IsError: true,
		}, nil
	}
	topK := p.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > 20 {
		topK = 20
	}

	matches, err := t.index.Search(ctx, agentID, p.Query, topK)
	if err != nil {
		return &models.ToolResult{
			Content: "search failed: " + err.Error(),
			IsError: true,
		}, nil
	}
	if len(matches) == 0 {
		return &models.ToolResult{Content: "No matching documents found."}, nil
	}

	var b strings.Builder
	for i, m := range matches {
		source := m.Record.SourceName
		if source == "" {
			source = m.Record.DocumentID
		}
		fmt.Fprintf(&b, "%d. [%s] (score %.2f)\n%s\n", i+1, source, m.Score, m.Record.Content)
		if i < len(matches)-1 {
			b.WriteString("\n")
		}
	}
	return &models.ToolResult{Content: b.String()}, nil
}
