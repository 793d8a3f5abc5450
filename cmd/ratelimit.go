package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/constants"
	"github.com/spiffcs/tanuki/internal/output"
)

// NewCmdRateLimit creates the ratelimit command.
func NewCmdRateLimit(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "ratelimit",
		Short: "Check API rate limit status",
		Long: `Make a minimal API request and display the rate limit headers it
returned: remaining quota, limit, and reset time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRateLimit(cmd, opts)
		},
	}
}

func runRateLimit(cmd *cobra.Command, opts *Options) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	// The signed-in user's quota is reported on /user; signed out, one
	// public project is the cheapest request that carries the headers.
	_, err = a.client.CurrentUser(cmd.Context())
	if errors.Is(err, api.ErrUnauthorized) {
		_, err = a.client.ListProjects(cmd.Context(), api.ProjectListQuery{Filter: api.FilterPublic, PerPage: 1})
	}
	if err != nil && !api.IsStatus(err, 429) {
		return fmt.Errorf("failed to query API: %s", api.UserMessage(err))
	}

	status := a.client.RateLimits()
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return (&output.JSONFormatter{Pretty: true}).Encode(status, out)
	}

	if !status.Observed {
		fmt.Fprintln(out, output.Warning("The server did not report rate limit headers."))
		return nil
	}

	resetIn := time.Until(status.ResetAt).Round(time.Second)
	if resetIn < 0 {
		resetIn = 0
	}
	line := fmt.Sprintf("%d/%d remaining (resets in %s)", status.Remaining, status.Limit, resetIn)
	switch {
	case status.Limited:
		fmt.Fprintln(out, output.Failure("Rate limited: "+line))
	case status.Remaining < constants.RateLimitLowWatermark:
		fmt.Fprintln(out, output.Warning(line))
	default:
		fmt.Fprintln(out, output.Field("API", line))
	}
	return nil
}
