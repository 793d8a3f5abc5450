package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spiffcs/tanuki/internal/api"
)

// NewCmdFile creates the file command.
func NewCmdFile() *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "file <project-id> <path>",
		Short: "Print a file from a project repository",
		Example: `  tanuki file 42 README.md
  tanuki file 42 cmd/server/main.go --ref v1.2.0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid project id: %s", args[0])
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			data, err := a.client.RawFile(cmd.Context(), id, args[1], ref)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %s", args[1], api.UserMessage(err))
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "Branch, tag or commit (defaults to the default branch)")

	return cmd
}
