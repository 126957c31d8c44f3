// Package main provides portalctl, a command-line client that signs in to
// the HiproTech backend and keeps its token pair between invocations.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiprotech/portal/infrastructure/config"
)

const appName = "portalctl"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(cfg *config.Config) *cobra.Command {
	opts := &options{
		buffer: cfg.TokenExpiryBuffer,
	}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "HiproTech portal command-line client",
		Long: `portalctl signs in to the HiproTech backend and stores the token pair
so later commands reuse the session. Expired access tokens are refreshed
on demand; when the refresh fails the stored session is cleared.

Examples:
  portalctl login --email admin@hiprotech.com
  portalctl whoami
  portalctl get /orders
  portalctl --store redis --profile ops watch`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", cfg.APIURL, "Backend API base URL")
	flags.StringVar(&opts.store, "store", cfg.TokenStore, "Token store: file, redis or memory")
	flags.StringVar(&opts.tokenFile, "token-file", cfg.TokenFile, "Token file for the file store")
	flags.StringVar(&opts.redisURL, "redis-url", cfg.RedisURL, "Redis URL for the redis store")
	flags.StringVar(&opts.profile, "profile", "default", "Named session, for keeping several sign-ins apart")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.DurationVar(&opts.timeout, "timeout", cfg.HTTPClientTimeout, "Per-request timeout")
	flags.DurationVar(&opts.checkInterval, "check-interval", cfg.SessionCheckInterval, "Session check interval for watch")

	cmd.AddCommand(
		loginCmd(opts),
		registerCmd(opts),
		logoutCmd(opts),
		whoamiCmd(opts),
		profileCmd(opts),
		getCmd(opts),
		prefsCmd(opts),
		watchCmd(opts),
	)
	return cmd
}

type options struct {
	apiURL        string
	store         string
	tokenFile     string
	redisURL      string
	profile       string
	logLevel      string
	timeout       time.Duration
	checkInterval time.Duration
	buffer        time.Duration
}
