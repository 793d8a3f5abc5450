// Package markdown renders Markdown to HTML, preferring the server's
// renderer and falling back to a local GFM renderer when it is unavailable.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/metrics"
)

// Remote renders Markdown on the server.
type Remote interface {
	RenderMarkdown(ctx context.Context, text, project string) (string, error)
}

var _ Remote = (*api.Client)(nil)

// The goldmark instance is immutable after construction and safe to share.
var (
	localRenderer     goldmark.Markdown
	localRendererOnce sync.Once
)

func getLocalRenderer() goldmark.Markdown {
	localRendererOnce.Do(func() {
		localRenderer = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		)
	})
	return localRenderer
}

// RenderLocal converts GFM text to HTML without contacting the server.
// Raw HTML in the input is omitted.
func RenderLocal(text string) (string, error) {
	var buf bytes.Buffer
	if err := getLocalRenderer().Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Rendered is the outcome of Service.Render.
type Rendered struct {
	HTML string
	// Local is set when the server could not be used.
	Local bool
}

// Service renders through the server with a local fallback.
type Service struct {
	remote Remote
}

// NewService creates a Service. A nil remote always renders locally.
func NewService(remote Remote) *Service {
	return &Service{remote: remote}
}

// Render converts text to HTML. project gives the server context for
// references such as #123; it is ignored by the local renderer.
// Cancellation is returned as-is and never triggers the fallback.
func (s *Service) Render(ctx context.Context, text, project string) (Rendered, error) {
	if s.remote != nil {
		html, err := s.remote.RenderMarkdown(ctx, text, project)
		if err == nil {
			return Rendered{HTML: html}, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Rendered{}, err
		}
		log.Info("server markdown rendering failed, rendering locally", "error", err)
		metrics.MarkdownFallbacks.Inc()
	}

	html, err := RenderLocal(text)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{HTML: html, Local: true}, nil
}
