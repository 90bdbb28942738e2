package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rivoli-ai/andy-agentic-sub001/pkg/models"
)

// TextExtractor pulls indexable text out of a document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *models.Document) (string, error)
}

// PlainTextExtractor handles text-bearing content types by returning the
// stored content unchanged.
type PlainTextExtractor struct{}

var _ TextExtractor = (*PlainTextExtractor)(nil)

// Extract returns the document's content. Content types that are not
// text-bearing are rejected.
func (PlainTextExtractor) Extract(_ context.Context, doc *models.Document) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(doc.ContentType))
	switch {
	case ct == "", strings.HasPrefix(ct, "text/"),
		ct == "application/json", ct == "application/xml", ct == "application/x-yaml":
		return doc.Content, nil
	default:
		return "", fmt.Errorf("unsupported content type %q", doc.ContentType)
	}
}
