package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
		Long:  `Inspect and clear the on-disk cache of Cloudflare API responses.`,
	}

	cacheCmd.AddCommand(newCachePathCmd(a))
	cacheCmd.AddCommand(newCacheClearCmd(a))

	return cacheCmd
}

func newCachePathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the cache database path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, a.cfg.CacheFile)

			switch _, err := os.Stat(a.cfg.CacheFile); {
			case errors.Is(err, fs.ErrNotExist):
				a.logger.Info("Cache database has not been created yet")
			case err != nil:
				return fmt.Errorf("failed to stat cache database: %w", err)
			default:
				a.logger.Info("Cache database exists")
			}
			if a.cfg.DisableCache {
				a.logger.Info("Response caching is disabled")
			}
			return nil
		},
	}
}

func newCacheClearCmd(a *app) *cobra.Command {
	var expiredOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached responses",
		Long: `Remove cached responses. With --expired only responses older than the
cache TTL are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.cfg.CacheFile); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "Removed 0 cached responses")
				return nil
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}

			var removed int64
			if expiredOnly {
				removed, err = store.Purge(cmd.Context(), time.Now().Add(-a.cfg.CacheTTL))
			} else {
				removed, err = store.Clear(cmd.Context())
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached responses\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&expiredOnly, "expired", false, "Only remove responses older than the cache TTL")

	return cmd
}
