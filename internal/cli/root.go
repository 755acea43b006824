// Package cli implements the cloudflare-account command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/illallangi/cloudflare-tools/internal/account"
	"github.com/illallangi/cloudflare-tools/internal/config"
	"github.com/illallangi/cloudflare-tools/internal/httpcache"
	"github.com/illallangi/cloudflare-tools/internal/logging"
)

const (
	flagAccountID = "cloudflare-account-id"
	flagAPIToken  = "cloudflare-api-token"
	flagNoCache   = "no-cache"
)

// credentialHints names where each missing credential can be supplied.
var credentialHints = map[string]string{
	"API token":  "--" + flagAPIToken + " or CLOUDFLARE_API_TOKEN",
	"account ID": "--" + flagAccountID + " or CLOUDFLARE_ACCOUNT_ID",
}

// app is the state shared by one command tree.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	console *consoleWriter
	store   *httpcache.SQLiteStore

	accountID string
	apiToken  string
	noCache   bool
}

// NewRootCmd builds a fresh command tree. Each call is independent, so
// tests can run several trees side by side.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "cloudflare-account",
		Short: "Inspect the tunnels and ingresses of a Cloudflare account",
		Long: `cloudflare-account lists the Cloudflare Tunnels of an account and the
ingress rules configured on them. API responses are cached on disk for an
hour so repeated invocations stay fast.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.accountID, flagAccountID, "", "Cloudflare account ID (env CLOUDFLARE_ACCOUNT_ID)")
	rootCmd.PersistentFlags().StringVar(&a.apiToken, flagAPIToken, "", "Cloudflare API token (env CLOUDFLARE_API_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&a.noCache, flagNoCache, false, "Bypass the response cache (env CLOUDFLARE_TOOLS_NO_CACHE)")

	rootCmd.AddCommand(newTunnelsCmd(a))
	rootCmd.AddCommand(newIngressesCmd(a))
	rootCmd.AddCommand(newCacheCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd, a
}

// Execute runs the command tree against the process arguments and exits
// non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, a := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// init loads configuration, applies flag overrides and installs the logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed(flagAccountID) {
		cfg.AccountID = a.accountID
	}
	if flags.Changed(flagAPIToken) {
		cfg.APIToken = a.apiToken
	}
	if flags.Changed(flagNoCache) {
		cfg.DisableCache = a.noCache
	}

	console := &consoleWriter{w: cmd.ErrOrStderr()}
	logger, err := logging.InitLogger(cfg.Logging(), console)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.console = console
	return nil
}

// newClient builds an account client from the loaded configuration.
// Credentials are checked before the cache database is opened, so a
// usage error never touches the disk or the network.
func (a *app) newClient() (*account.Client, error) {
	opts := []account.Option{
		account.WithBaseURL(a.cfg.BaseURL),
		account.WithLogger(a.logger),
	}
	if a.cfg.DisableCache {
		opts = append(opts, account.WithRateLimit(a.cfg.RPS, a.cfg.Burst))
	} else {
		opts = append(opts, a.withCache())
	}

	client, err := account.New(a.cfg.APIToken, a.cfg.AccountID, opts...)
	if err != nil {
		var cerr *account.ConfigurationError
		if errors.As(err, &cerr) {
			return nil, fmt.Errorf("%w: set %s", err, credentialHints[cerr.Field])
		}
		return nil, err
	}
	return client, nil
}

// withCache routes the client through the on-disk response cache. Pacing
// sits beneath the cache so only requests that reach the API wait.
func (a *app) withCache() account.Option {
	return func(c *account.Client) error {
		limited, err := account.NewRateLimitedTransport(nil, a.cfg.RPS, a.cfg.Burst)
		if err != nil {
			return err
		}
		store, err := a.openStore()
		if err != nil {
			return err
		}
		transport := httpcache.NewTransport(limited, store, a.cfg.CacheTTL)
		transport.Logger = a.logger
		return account.WithHTTPClient(httpcache.NewClient(transport))(c)
	}
}

func (a *app) openStore() (*httpcache.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := httpcache.OpenSQLite(a.cfg.CacheFile)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil && a.logger != nil {
			a.logger.Warn("Failed to close cache: %v", err)
		}
		a.store = nil
	}
}
