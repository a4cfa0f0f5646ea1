package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sternrassler/booru-enum/pkg/client"
	"github.com/Sternrassler/booru-enum/pkg/config"
	"github.com/Sternrassler/booru-enum/pkg/extractor"
	"github.com/Sternrassler/booru-enum/pkg/logging"
	"github.com/Sternrassler/booru-enum/pkg/metrics"
	"github.com/Sternrassler/booru-enum/pkg/pagination"
	"github.com/Sternrassler/booru-enum/pkg/query"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type enumOptions struct {
	limit       int
	metricsAddr string
	headers     []string
}

func newEnumCmd(global *globalOptions) *cobra.Command {
	opts := &enumOptions{}

	cmd := &cobra.Command{
		Use:   "enum <category> <tags>",
		Short: "Print the message stream for a tag search",
		Example: `  booru-enum enum danbooru "blue_sky rating:general" --limit 50
  booru-enum enum gelbooru sky --redis localhost:6379`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			return runEnum(cmd.Context(), cfg, opts, args[0], args[1], cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.limit, "limit", 0, "stop after this many url messages (0 = no limit)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, `extra request header "Key: Value" (repeatable)`)

	return cmd
}

func runEnum(ctx context.Context, cfg config.Config, opts *enumOptions, category, tags string, out io.Writer) error {
	logger := logging.NewLogger("cli")

	registry, err := config.LoadRegistry(cfg.SitesFile)
	if err != nil {
		return err
	}
	site, ok := registry.Lookup(category)
	if !ok {
		return fmt.Errorf("unknown site %q (known: %s)", category, strings.Join(registry.Categories(), ", "))
	}

	queryOpts := site.QueryOptions()
	for _, h := range opts.headers {
		key, value, found := strings.Cut(h, ":")
		if !found || strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid header %q, want \"Key: Value\"", h)
		}
		queryOpts = append(queryOpts, query.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	var redisClient *redis.Client
	if cfg.CacheEnabled() {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Debug().Str("addr", cfg.RedisAddr).Msg("Page cache enabled")
	}

	httpClient, err := client.New(cfg.Client(redisClient))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	decoder, err := site.Decoder()
	if err != nil {
		return err
	}

	ex, err := extractor.New(tags, site.Info(), pagination.NewFetcher(httpClient, decoder), queryOpts...)
	if err != nil {
		return fmt.Errorf("site %s: %w", site.Category, err)
	}

	if opts.metricsAddr != "" {
		srv, err := metrics.Listen(opts.metricsAddr)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	return writeMessages(ctx, ex, opts.limit, out)
}

// writeMessages encodes the message stream as JSON lines. limit caps the
// number of url messages; the leading messages are always written.
func writeMessages(ctx context.Context, ex *extractor.Extractor, limit int, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	urls := 0
	for msg, err := range ex.Messages(ctx) {
		if err != nil {
			return err
		}
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		if msg.Kind == extractor.KindURL {
			urls++
			if limit > 0 && urls >= limit {
				break
			}
		}
	}
	return nil
}
