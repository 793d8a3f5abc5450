package api

import (
	"context"
	"fmt"
	"net/url"
)

// RawFile fetches the raw bytes of a repository file. The file path is
// percent-encoded as a single path segment, so "a/b.go" travels as
// "a%2Fb.go".
func (c *Client) RawFile(ctx context.Context, projectID int64, filePath, ref string) ([]byte, error) {
	path := fmt.Sprintf("/projects/%d/repository/files/%s/raw", projectID, url.PathEscape(filePath))
	var query []QueryItem
	if ref != "" {
		query = append(query, Q("ref", ref))
	}
	ep := Get(path, query...)
	ep.Headers = map[string]string{"Accept": "*/*"}
	ep.Options.AuthorizationOptional = true
	return Send[[]byte](ctx, c, ep)
}
