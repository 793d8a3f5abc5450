package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCmdCache creates the cache command with subcommands.
func NewCmdCache() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the project page cache",
	}

	cmd.AddCommand(newCmdCacheClear())
	cmd.AddCommand(newCmdCacheStats())

	return cmd
}

// newCmdCacheClear creates the cache clear subcommand.
func newCmdCacheClear() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached page and project",
		RunE:  runCacheClear,
	}
}

// newCmdCacheStats creates the cache stats subcommand.
func newCmdCacheStats() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE:  runCacheStats,
	}
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.openCache(); err != nil {
		return err
	}

	if err := a.cache.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.openCache(); err != nil {
		return err
	}

	ttl := a.cfg.Cache.TTL
	stats, err := a.cache.Stats(ttl)
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache statistics (%s):\n", a.cfg.CachePath())
	fmt.Fprintf(out, "  Pages (TTL: %s):\n", ttl)
	fmt.Fprintf(out, "    Total: %d\n", stats.PageTotal)
	fmt.Fprintf(out, "    Fresh: %d\n", stats.PageFresh)
	fmt.Fprintf(out, "    Stale: %d\n", stats.PageTotal-stats.PageFresh)
	fmt.Fprintf(out, "  Projects:\n")
	fmt.Fprintf(out, "    Stored:    %d\n", stats.ItemTotal)
	fmt.Fprintf(out, "    In memory: %d\n", stats.MemoryItems)
	return nil
}
