package main

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/booru-enum/pkg/config"
	"github.com/Sternrassler/booru-enum/pkg/logging"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags. Set flags override the environment.
type globalOptions struct {
	sitesFile string
	redisAddr string
	userAgent string
	logLevel  string
	pretty    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "booru-enum",
		Short: "Enumerate image-board search results as a download message stream",
		Long: `booru-enum walks the paged API of an image board for a tag search and
prints one JSON object per line: a version message, the job directory
metadata, the request headers, then one url message per post.

Settings come from the environment (REDIS_ADDR, USER_AGENT, LOG_LEVEL,
LOG_PRETTY, HTTP_TIMEOUT, MAX_RETRIES, CACHE_TTL, BOORU_SITES) and can be
overridden with flags.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.sitesFile, "sites", "", "YAML file with additional sites (env BOORU_SITES)")
	flags.StringVar(&opts.redisAddr, "redis", "", "Redis address for the page cache, empty disables it (env REDIS_ADDR)")
	flags.StringVar(&opts.userAgent, "user-agent", "", "User-Agent header (env USER_AGENT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, error or disabled (env LOG_LEVEL)")
	flags.BoolVar(&opts.pretty, "pretty", false, "human-readable logs on stderr (env LOG_PRETTY)")

	cmd.AddCommand(newEnumCmd(opts))
	cmd.AddCommand(newSitesCmd(opts))

	return cmd
}

// load resolves the configuration and sets up logging on the command's stderr.
func (o *globalOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("sites") {
		cfg.SitesFile = o.sitesFile
	}
	if flags.Changed("redis") {
		cfg.RedisAddr = strings.TrimPrefix(o.redisAddr, "redis://")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = o.userAgent
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logging.LogLevel(o.logLevel)
	}
	if flags.Changed("pretty") {
		cfg.LogPretty = o.pretty
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	return cfg, nil
}

func newSitesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the known sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			registry, err := config.LoadRegistry(cfg.SitesFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, category := range registry.Categories() {
				site, _ := registry.Lookup(category)
				format := site.Format
				if format == "" {
					format = "json"
				}
				fmt.Fprintf(out, "%-12s %-4s %s\n", site.Category, format, site.APIURL)
			}
			return nil
		},
	}
}
