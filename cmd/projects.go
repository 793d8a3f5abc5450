package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spiffcs/tanuki/config"
	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/listing"
	"github.com/spiffcs/tanuki/internal/output"
	"github.com/spiffcs/tanuki/internal/repository"
)

// projectsOptions holds the flags of the projects command.
type projectsOptions struct {
	Scope   string
	Sort    string
	Order   string
	Search  string
	Pages   int
	PerPage int
}

// NewCmdProjects creates the projects command.
func NewCmdProjects(opts *Options) *cobra.Command {
	popts := &projectsOptions{}

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Long: fmt.Sprintf(`List projects from one of the feeds: %s.

The combined scope merges owned and membership projects. Cached pages are
printed first and marked [stale] when older than cache.ttl; the fresh page
follows once the API answers.`, joinSources()),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjects(cmd, opts, popts)
		},
	}

	cmd.Flags().StringVarP(&popts.Scope, "scope", "s", string(repository.SourceExplore), "Feed to list ("+joinSources()+")")
	cmd.Flags().StringVar(&popts.Sort, "sort", string(repository.SortLastActivity), "Sort field ("+joinSortFields()+")")
	cmd.Flags().StringVar(&popts.Order, "order", string(repository.Descending), "Sort order (ascending, descending)")
	cmd.Flags().StringVarP(&popts.Search, "search", "q", "", "Only projects matching this term")
	cmd.Flags().IntVarP(&popts.Pages, "pages", "n", 1, "Number of pages to load")
	cmd.Flags().IntVar(&popts.PerPage, "per-page", 0, "Page size (defaults to per_page from config)")

	return cmd
}

func joinSources() string {
	names := make([]string, 0, len(repository.Sources()))
	for _, s := range repository.Sources() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func joinSortFields() string {
	names := make([]string, 0, len(repository.SortFields()))
	for _, f := range repository.SortFields() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func runProjects(cmd *cobra.Command, opts *Options, popts *projectsOptions) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.openCache(); err != nil {
		return err
	}

	formatter, err := resolveFormatter(opts, a.cfg)
	if err != nil {
		return err
	}

	perPage := popts.PerPage
	if perPage == 0 {
		perPage = a.cfg.PerPage
	}
	params := repository.PageParams{
		Source:  repository.Source(popts.Scope),
		Sort:    repository.SortField(popts.Sort),
		Order:   repository.SortOrder(popts.Order),
		PerPage: perPage,
	}
	if err := params.Validate(); err != nil {
		return err
	}

	printer := &pagePrinter{w: cmd.OutOrStdout(), formatter: formatter, feed: popts.Scope}
	store := listing.NewStore(a.projects, params, listing.WithObserver(printer.observe))

	ctx := cmd.Context()
	if popts.Search != "" {
		err = store.ApplySearch(ctx, popts.Search)
	} else {
		err = store.Reload(ctx)
	}
	for loaded := 1; err == nil && loaded < popts.Pages && store.State().HasMore(); loaded++ {
		err = store.LoadMore(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list projects: %s", api.UserMessage(err))
	}
	return printer.err
}

// pagePrinter renders each applied listing state. Only the items added by
// the page being loaded are printed, so loading more pages appends rows.
type pagePrinter struct {
	w         io.Writer
	formatter output.Formatter
	feed      string
	// offset counts the items of earlier, fully loaded pages; page is the
	// last of them.
	offset int
	page   int
	err    error
}

func (p *pagePrinter) observe(st listing.State) {
	switch {
	case st.Phase == listing.PhaseIdle:
		p.offset, p.page = len(st.Items), st.Page
		return
	case st.Page == 0:
		// A reload started.
		p.offset, p.page = 0, 0
		return
	case st.Page == p.page:
		// A load more started; nothing new yet.
		return
	}

	items := st.Items
	if p.offset <= len(items) {
		items = items[p.offset:]
	}
	err := p.formatter.FormatPage(output.ProjectPage{
		Feed:     p.feed,
		Page:     st.Page,
		NextPage: st.NextPage,
		Stale:    st.IsStale,
		Items:    items,
	}, p.w)
	if err != nil && p.err == nil {
		p.err = err
	}
}

// NewCmdProject creates the project command.
func NewCmdProject(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "project <id>",
		Short: "Show a single project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(cmd, opts, args[0])
		},
	}
}

func runProject(cmd *cobra.Command, opts *Options, arg string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid project id: %s", arg)
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.openCache(); err != nil {
		return err
	}

	formatter, err := resolveFormatter(opts, a.cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for res, err := range a.projects.Project(cmd.Context(), id) {
		if err != nil {
			return fmt.Errorf("failed to load project: %s", api.UserMessage(err))
		}
		if err := formatter.FormatProject(res.Value, res.IsStale, out); err != nil {
			return err
		}
	}
	return nil
}

// resolveFormatter picks the --format flag, falling back to the config.
func resolveFormatter(opts *Options, cfg *config.Config) (output.Formatter, error) {
	name := opts.Format
	if name == "" {
		name = cfg.DefaultFormat
	}
	if name == "" {
		name = string(output.FormatTable)
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}
