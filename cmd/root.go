package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spiffcs/tanuki/internal/log"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()
	var diag *Diagnostics

	rootCmd := &cobra.Command{
		Use:   "tanuki",
		Short: "GitLab projects from the terminal",
		Long: `A CLI for browsing GitLab projects. Pages are served from a local
cache first and revalidated against the API, so results appear immediately
and are refreshed when the network answers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(opts.Verbosity, os.Stderr)
			diag = NewDiagnostics(opts)
			return diag.Start()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if diag != nil {
				diag.Stop()
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
	flags.StringVarP(&opts.Format, "format", "f", "", "Output format (table, json); defaults to default_format from config")
	flags.StringVar(&opts.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	flags.StringVar(&opts.MemProfile, "memprofile", "", "Write memory profile to file")
	flags.StringVar(&opts.Trace, "trace", "", "Write execution trace to file")
	flags.StringVar(&opts.Metrics, "metrics", "", "Write collected metrics to file after the command (- for stderr)")
	_ = flags.MarkHidden("cpuprofile")
	_ = flags.MarkHidden("memprofile")
	_ = flags.MarkHidden("trace")
	_ = flags.MarkHidden("metrics")

	rootCmd.AddCommand(NewCmdAuth())
	rootCmd.AddCommand(NewCmdProjects(opts))
	rootCmd.AddCommand(NewCmdProject(opts))
	rootCmd.AddCommand(NewCmdMarkdown())
	rootCmd.AddCommand(NewCmdFile())
	rootCmd.AddCommand(NewCmdCache())
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdRateLimit(opts))
	rootCmd.AddCommand(NewCmdDebug())
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}
