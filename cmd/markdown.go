package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/markdown"
)

// NewCmdMarkdown creates the markdown command with subcommands.
func NewCmdMarkdown() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markdown",
		Short: "Render Markdown the way GitLab does",
	}
	cmd.AddCommand(newCmdMarkdownRender())
	return cmd
}

func newCmdMarkdownRender() *cobra.Command {
	var project string
	var local bool

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a Markdown file (or stdin) to HTML",
		Long: `Render GitLab Flavored Markdown to HTML with the server's renderer.
When the server cannot be reached the document is rendered locally.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMarkdownRender(cmd, args, project, local)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project path used to resolve references such as #123")
	cmd.Flags().BoolVar(&local, "local", false, "Render locally without contacting the server")

	return cmd
}

func runMarkdownRender(cmd *cobra.Command, args []string, project string, local bool) error {
	var (
		source []byte
		err    error
	)
	if len(args) == 0 || args[0] == "-" {
		source, err = io.ReadAll(cmd.InOrStdin())
	} else {
		source, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read markdown: %w", err)
	}

	out := cmd.OutOrStdout()
	if local {
		html, err := markdown.RenderLocal(string(source))
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, html)
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	rendered, err := a.markdown().Render(cmd.Context(), string(source), project)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %s", api.UserMessage(err))
	}
	if rendered.Local {
		log.Info("rendered locally; server-only references are not linked")
	}
	_, err = io.WriteString(out, rendered.HTML)
	return err
}
