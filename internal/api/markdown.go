package api

import (
	"context"
	"encoding/json"
	"fmt"
)

type markdownRequest struct {
	Text    string `json:"text"`
	GFM     bool   `json:"gfm"`
	Project string `json:"project,omitempty"`
}

type markdownResponse struct {
	HTML string `json:"html"`
}

// RenderMarkdown renders text to HTML on the server.
func (c *Client) RenderMarkdown(ctx context.Context, text, project string) (string, error) {
	body, err := json.Marshal(markdownRequest{Text: text, GFM: true, Project: project})
	if err != nil {
		return "", fmt.Errorf("encode markdown request: %w", err)
	}
	ep := Post("/markdown", body)
	ep.Options.CachePolicy = CachePolicyNoStore
	ep.Options.AuthorizationOptional = true
	resp, err := Send[markdownResponse](ctx, c, ep)
	if err != nil {
		return "", err
	}
	return resp.HTML, nil
}
