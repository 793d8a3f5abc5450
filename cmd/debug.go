package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/spiffcs/tanuki/internal/metrics"
)

// NewCmdDebug creates the hidden debug command.
func NewCmdDebug() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "debug",
		Short:  "Debugging helpers",
		Hidden: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "metrics",
		Short: "Print the collected metrics in Prometheus text format",
		Long: `Print every tanuki collector in Prometheus text exposition format.

Counters only cover work done by this process. To see the metrics of another
command, pass --metrics to it instead:
  tanuki projects --metrics - > /dev/null`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeMetrics(cmd.OutOrStdout())
		},
	})

	return cmd
}

// writeMetrics gathers the tanuki registry and writes it to w.
func writeMetrics(w io.Writer) error {
	families, err := metrics.Registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// dumpMetrics writes the registry to path, or to stderr when path is "-".
func dumpMetrics(path string) error {
	if path == "-" {
		return writeMetrics(os.Stderr)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create metrics file: %w", err)
	}
	defer f.Close()
	return writeMetrics(f)
}
