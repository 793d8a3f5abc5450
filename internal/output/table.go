package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/spiffcs/tanuki/internal/format"
	"github.com/spiffcs/tanuki/internal/model"
)

// Column widths
const (
	colID       = 9
	colProject  = 40
	colStars    = 6
	colVisible  = 8
	colActivity = 8
)

// TableFormatter formats output as a terminal table
type TableFormatter struct {
	now func() time.Time
	// links forces OSC 8 hyperlinks on or off; nil detects a terminal.
	links *bool
}

// NewTableFormatter creates a table formatter using the wall clock.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{now: time.Now}
}

// hyperlink wraps text in an OSC 8 link when w is a terminal.
func (f *TableFormatter) hyperlink(w io.Writer, text, url string) string {
	if url == "" || !f.linksEnabled(w) {
		return text
	}
	return fmt.Sprintf("\033]8;;%s\033\\%s\033]8;;\033\\", url, text)
}

func (f *TableFormatter) linksEnabled(w io.Writer) bool {
	if f.links != nil {
		return *f.links
	}
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// FormatPage outputs a page of projects as a table
func (f *TableFormatter) FormatPage(page ProjectPage, w io.Writer) error {
	header := fmt.Sprintf("%s  page %d", Heading(page.Feed), page.Page)
	if page.Stale {
		header += "  " + StaleMarker()
	}
	fmt.Fprintln(w, header)

	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		format.Cell("ID", colID),
		format.Cell("Project", colProject),
		format.Cell("Stars", colStars),
		format.Cell("Access", colVisible),
		"Activity")
	fmt.Fprintln(w, strings.Repeat("-", colID+colProject+colStars+colVisible+colActivity+8))

	now := f.now()
	for _, p := range page.Items {
		name := format.Truncate(p.PathWithNamespace, colProject)
		if p.Archived {
			name = format.Truncate(p.PathWithNamespace, colProject-11) + color.HiBlackString(" [archived]")
		}
		name = format.Pad(name, colProject)
		// The link wraps already padded text so the escape codes do not
		// disturb the column width.
		name = f.hyperlink(w, name, p.WebURL)

		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			format.Cell(strconv.FormatInt(p.ID, 10), colID),
			name,
			format.Cell(format.Count(p.StarCount), colStars),
			format.Cell(colorVisibility(p.Visibility), colVisible),
			format.Since(p.LastActivityAt, now),
		)
	}

	footer := fmt.Sprintf("%d projects", len(page.Items))
	if page.NextPage != nil {
		footer += fmt.Sprintf(" · next page %d", *page.NextPage)
	} else {
		footer += " · last page"
	}
	fmt.Fprintln(w, color.HiBlackString(footer))
	return nil
}

// FormatProject outputs a single project as a detail view
func (f *TableFormatter) FormatProject(p model.Project, stale bool, w io.Writer) error {
	title := Heading(p.NameWithNamespace)
	if stale {
		title += "  " + StaleMarker()
	}
	fmt.Fprintln(w, title)
	if p.Description != "" {
		fmt.Fprintln(w, format.SingleLine(p.Description))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, Field("ID", strconv.FormatInt(p.ID, 10)))
	fmt.Fprintln(w, Field("Path", p.PathWithNamespace))
	fmt.Fprintln(w, Field("URL", f.hyperlink(w, p.WebURL, p.WebURL)))
	fmt.Fprintln(w, Field("Access", colorVisibility(p.Visibility)))
	if p.DefaultBranch != "" {
		fmt.Fprintln(w, Field("Default branch", p.DefaultBranch))
	}
	fmt.Fprintln(w, Field("Stars", strconv.Itoa(p.StarCount)))
	fmt.Fprintln(w, Field("Forks", strconv.Itoa(p.ForksCount)))
	now := f.now()
	if p.CreatedAt != nil {
		fmt.Fprintln(w, Field("Created", format.Since(p.CreatedAt, now)+" ago"))
	}
	if p.LastActivityAt != nil {
		fmt.Fprintln(w, Field("Last activity", format.Since(p.LastActivityAt, now)+" ago"))
	}
	if p.Archived {
		fmt.Fprintln(w, Warning("archived"))
	}
	return nil
}

func colorVisibility(v model.Visibility) string {
	switch v {
	case model.VisibilityPublic:
		return color.GreenString(string(v))
	case model.VisibilityInternal:
		return color.YellowString(string(v))
	case model.VisibilityPrivate:
		return color.RedString(string(v))
	case "":
		return "-"
	default:
		return string(v)
	}
}
