package output

import (
	"encoding/json"
	"io"

	"github.com/spiffcs/tanuki/internal/model"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// FormatPage outputs a page as one JSON document. Streams with a cached and
// a fresh emission therefore produce two documents.
func (f *JSONFormatter) FormatPage(page ProjectPage, w io.Writer) error {
	if page.Items == nil {
		page.Items = []model.Project{}
	}
	return f.encode(page, w)
}

type projectOutput struct {
	model.Project
	Stale bool `json:"stale"`
}

// FormatProject outputs a single project as JSON
func (f *JSONFormatter) FormatProject(project model.Project, stale bool, w io.Writer) error {
	return f.encode(projectOutput{Project: project, Stale: stale}, w)
}

// Encode writes any value using the formatter's settings.
func (f *JSONFormatter) Encode(v any, w io.Writer) error {
	return f.encode(v, w)
}

func (f *JSONFormatter) encode(v any, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
