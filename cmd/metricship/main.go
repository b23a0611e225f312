package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/metricship/internal/adapters/fs"
	httpadapter "github.com/bft-labs/metricship/internal/adapters/http"
	"github.com/bft-labs/metricship/internal/app"
	"github.com/bft-labs/metricship/internal/cliconfig"
	"github.com/bft-labs/metricship/internal/collector"
	"github.com/bft-labs/metricship/internal/dispatch"
	"github.com/bft-labs/metricship/internal/domain"
	"github.com/bft-labs/metricship/internal/encoding"
	"github.com/bft-labs/metricship/internal/publisher"
	"github.com/bft-labs/metricship/pkg/log"
)

const longHelp = `Ship telemetry samples to a collection endpoint in concurrent batches.

Samples are read as newline-delimited JSON, split into batches and posted in
parallel. A failed batch never stops the others, and every publish cycle is
bounded by a time budget.

Configuration is layered: defaults, then the config file (TOML or YAML), then
METRICSHIP_* environment variables, then flags.`

var exampleUsage = strings.TrimSpace(`
  metricship push --endpoint http://localhost:7101/api/v1/publish --input samples.jsonl
  producer | metricship push --tag env=prod --tag app=web
  metricship run --config $HOME/.metricship/config.toml --step 30s
  metricship get http://localhost:7101/health
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// options are the values bound to command line flags.
type options struct {
	cfg     cliconfig.Config
	cfgPath string
}

func main() {
	opts := &options{cfg: cliconfig.DefaultConfig()}
	logger := log.NewZerologAdapter(os.Stderr, "info")

	root := &cobra.Command{
		Use:           "metricship",
		Short:         "Ship telemetry samples to a collection endpoint",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgPath, "config", "", "path to config file (default: $HOME/.metricship/config.toml)")
	pf.StringVar(&opts.cfg.Endpoint, "endpoint", opts.cfg.Endpoint, "publish URI of the collection endpoint")
	pf.StringVar(&opts.cfg.AuthKey, "auth-key", opts.cfg.AuthKey, "bearer token sent with every request")
	pf.StringToStringVar(&opts.cfg.Tags, "tag", opts.cfg.Tags, "common tag added to every sample (key=value, repeatable)")
	pf.IntVar(&opts.cfg.BatchSize, "batch-size", opts.cfg.BatchSize, "maximum samples per request")
	pf.DurationVar(&opts.cfg.Step, "step", opts.cfg.Step, "publish interval; sample timestamps are aligned to it")
	pf.DurationVar(&opts.cfg.PublishTimeout, "publish-timeout", opts.cfg.PublishTimeout, "time budget for one publish cycle")
	pf.DurationVar(&opts.cfg.HTTPTimeout, "http-timeout", opts.cfg.HTTPTimeout, "time budget for one request (default: publish-timeout)")
	pf.IntVar(&opts.cfg.MaxInFlight, "max-in-flight", opts.cfg.MaxInFlight, "maximum concurrent requests (0 = one per batch)")
	pf.BoolVar(&opts.cfg.Gzip, "gzip", opts.cfg.Gzip, "gzip request bodies")
	pf.StringVar(&opts.cfg.Encoding, "encoding", opts.cfg.Encoding, "payload encoding: msgpack or json")
	pf.StringVar(&opts.cfg.Input, "input", opts.cfg.Input, "samples file, - for stdin")
	pf.StringVar(&opts.cfg.LogLevel, "log-level", opts.cfg.LogLevel, "debug, info, warn or error")

	root.AddCommand(newPushCmd(opts), newRunCmd(opts), newGetCmd(opts))

	if err := root.Execute(); err != nil {
		logger.Error("metricship", log.Err(err))
		os.Exit(1)
	}
}

// resolve layers file and environment over the flags of cmd.
func (o *options) resolve(cmd *cobra.Command) (cliconfig.Config, map[string]bool, string, error) {
	path := o.cfgPath
	if path == "" {
		path = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfg, err := cliconfig.Resolve(o.cfg, path, changed)
	if err != nil {
		return cliconfig.Config{}, nil, "", err
	}
	return cfg, changed, path, nil
}

func newPushCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Publish the input once; exit non-zero unless every sample was delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			cfg.Once = true
			return runOnce(cmd.Context(), cfg)
		},
	}
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish the input every step until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, changed, path, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			if cfg.Once {
				return runOnce(cmd.Context(), cfg)
			}
			return runLoop(cmd.Context(), cfg, opts.cfg, changed, path)
		},
	}
	cmd.Flags().BoolVar(&opts.cfg.Once, "once", opts.cfg.Once, "publish a single cycle and exit")
	return cmd
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <url>",
		Short: "Perform one GET request and print status, headers and body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			logger := log.NewZerologAdapter(os.Stderr, cfg.LogLevel)
			return get(cmd.Context(), cmd.OutOrStdout(), args[0], cfg, logger)
		},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runOnce(parent context.Context, cfg cliconfig.Config) error {
	ctx, stop := signalContext(parent)
	defer stop()

	logger := log.NewZerologAdapter(os.Stderr, cfg.LogLevel)
	logger.Debug("configuration", log.Any("config", cfg.Redacted()))

	runner, _, err := build(cfg, logger)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}

func runLoop(parent context.Context, cfg, flags cliconfig.Config, changed map[string]bool, path string) error {
	ctx, stop := signalContext(parent)
	defer stop()

	logger := log.NewZerologAdapter(os.Stderr, cfg.LogLevel)
	logger.Info("configuration", log.Any("config", cfg.Redacted()))

	runner, pub, err := build(cfg, logger)
	if err != nil {
		return err
	}

	if path != "" && cliconfig.FileExists(path) {
		w := cliconfig.NewWatcher(path, flags, changed, func(c cliconfig.Config) {
			pub.SetTags(domain.TagListFromMap(c.Tags))
			logger.Info("common tags updated", log.Int("tags", len(c.Tags)))
		}, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Warn("config watcher stopped", log.Err(err))
			}
		}()
	}

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start runner: %w", err)
	}

	<-ctx.Done()
	logger.Info("received signal, stopping...")

	if err := runner.Stop(); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		return fmt.Errorf("stop runner: %w", err)
	}
	return nil
}

// build wires the publishing pipeline for cfg.
func build(cfg cliconfig.Config, logger log.Logger) (*app.Runner, *publisher.Publisher, error) {
	enc, err := encoding.ForName(cfg.Encoding)
	if err != nil {
		return nil, nil, err
	}

	hostname, _ := os.Hostname()
	sender := httpadapter.NewSender(httpadapter.SenderConfig{
		Endpoint: cfg.Endpoint,
		AuthKey:  cfg.AuthKey,
		Step:     cfg.Step,
		Timeout:  cfg.HTTPTimeout,
		Gzip:     cfg.Gzip,
		Hostname: hostname,
	}, enc, collector.New(http.DefaultClient, logger), logger)

	dispatcher := dispatch.New(
		dispatch.WithLogger(logger),
		dispatch.WithMaxInFlight(cfg.MaxInFlight),
	)
	pub := publisher.New(publisher.Config{
		BatchSize: cfg.BatchSize,
		Timeout:   cfg.PublishTimeout,
	}, sender, dispatcher, domain.TagListFromMap(cfg.Tags), logger)

	runner := app.NewRunner(app.RunnerConfig{
		Step: cfg.Step,
		Once: cfg.Once,
	}, fs.NewFileSource(cfg.Input), pub, logger, nil)
	return runner, pub, nil
}

func get(parent context.Context, out io.Writer, url string, cfg cliconfig.Config, logger log.Logger) error {
	ctx, stop := signalContext(parent)
	defer stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if cfg.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthKey)
	}
	req.Header.Set("User-Agent", httpadapter.UserAgent)

	resp, err := collector.New(http.DefaultClient, logger).Get(ctx, req, cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "HTTP %d %s\n", resp.Status, http.StatusText(resp.Status))
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintln(out)
	_, err = out.Write(resp.Body)
	return err
}
