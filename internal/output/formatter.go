// Package output renders projects and command results for the terminal.
package output

import (
	"fmt"
	"io"

	"github.com/spiffcs/tanuki/internal/model"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be table or json)", s)
	}
}

// ProjectPage is one rendered emission of a project feed.
type ProjectPage struct {
	Feed     string          `json:"feed"`
	Page     int             `json:"page"`
	NextPage *int            `json:"nextPage,omitempty"`
	Stale    bool            `json:"stale"`
	Items    []model.Project `json:"items"`
}

// Formatter defines the interface for output formatters
type Formatter interface {
	FormatPage(page ProjectPage, w io.Writer) error
	FormatProject(project model.Project, stale bool, w io.Writer) error
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	default:
		return NewTableFormatter()
	}
}
