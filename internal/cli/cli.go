// Package cli provides the command-line interface for the OpenAPI aggregator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/adapters/converters"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggregator"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/config"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/domain"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/fetch"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/metrics"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/server"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/transform"
)

// CLI holds the command-line interface configuration.
type CLI struct {
	log     logger.ILogger
	rootCmd *cobra.Command
	out     io.Writer

	settingsFile string
	proxyConfig  string
	listen       string
	watch        bool
	name         string
	docFormat    string
	exportFormat string
	outputFile   string
}

// app is everything a command needs once settings are resolved.
type app struct {
	settings   *config.Config
	store      *proxyconfig.Store
	registry   *transform.Registry
	clients    *fetch.CachingClients
	aggregator *aggregator.Aggregator
}

// New creates a new CLI instance.
func New(log logger.ILogger) *CLI {
	cli := &CLI{
		log: log,
		out: os.Stdout,
	}

	cli.rootCmd = &cobra.Command{
		Use:           "openapi-aggregator",
		Short:         "Aggregate the OpenAPI documents of proxied backends",
		Long:          "Fetches the OpenAPI documents of every backend behind a reverse proxy, keeps the published paths and merges them into one document per cluster or one common document.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cli.rootCmd.PersistentFlags().StringVarP(&cli.settingsFile, "config", "c", "", "Path to the settings file")
	cli.rootCmd.PersistentFlags().StringVarP(&cli.proxyConfig, "proxy-config", "p", "", "Path to the proxy configuration (routes and clusters)")

	cli.rootCmd.AddCommand(
		cli.serveCommand(),
		cli.aggregateCommand(),
		cli.exportCommand(),
		cli.documentsCommand(),
		cli.checkCommand(),
	)

	return cli
}

// Execute runs the CLI.
func (c *CLI) Execute() error {
	return c.rootCmd.Execute()
}

// SetArgs overrides the command-line arguments.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output, stdout by default.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

func (c *CLI) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve aggregated documents over HTTP",
		RunE:  c.runServe,
	}
	cmd.Flags().StringVarP(&c.listen, "listen", "l", "", "Listen address (overrides settings)")
	cmd.Flags().BoolVar(&c.watch, "watch", true, "Reload the proxy configuration when it changes")
	return cmd
}

func (c *CLI) aggregateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Write one aggregated document",
		RunE:  c.runAggregate,
	}
	cmd.Flags().StringVarP(&c.name, "name", "n", "", "Document name: a cluster, or the common document name (required)")
	cmd.Flags().StringVarP(&c.docFormat, "format", "f", server.FormatJSON, "Output format: json, yaml")
	cmd.Flags().StringVarP(&c.outputFile, "output", "o", "", "Path for the output file (default stdout)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *CLI) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render one aggregated document as PDF, Word or Confluence",
		RunE:  c.runExport,
	}
	cmd.Flags().StringVarP(&c.name, "name", "n", "", "Document name (required)")
	cmd.Flags().StringVarP(&c.exportFormat, "format", "f", "pdf", "Output format: pdf, docx, confluence")
	cmd.Flags().StringVarP(&c.outputFile, "output", "o", "", "Path for the output file (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (c *CLI) documentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List the documents that can be aggregated",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.setup(cmd)
			if err != nil {
				return err
			}
			for _, name := range a.aggregator.Documents() {
				fmt.Fprintln(c.out, name)
			}
			return nil
		},
	}
}

func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the proxy configuration and its transforms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.setup(cmd)
			if err != nil {
				return err
			}
			cfg := a.store.Load()
			if err := validateTransforms(a.registry, cfg); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s: %d clusters, %d routes, documents: %s\n",
				a.settings.ProxyConfig, len(cfg.Clusters), len(cfg.Routes), strings.Join(a.aggregator.Documents(), ", "))
			return nil
		},
	}
}

// setup loads settings and the proxy configuration and wires the aggregator.
func (c *CLI) setup(cmd *cobra.Command) (*app, error) {
	settings, err := config.Load(c.settingsFile)
	if err != nil {
		return nil, err
	}
	if c.proxyConfig != "" {
		settings.ProxyConfig = c.proxyConfig
	}
	if f := cmd.Flags().Lookup("listen"); f != nil && f.Changed {
		settings.Listen = c.listen
	}
	if f := cmd.Flags().Lookup("watch"); f != nil && f.Changed {
		settings.Watch = c.watch
	}

	c.log.Infof("Loading proxy configuration from: %s", settings.ProxyConfig)
	proxyCfg, err := proxyconfig.LoadFile(settings.ProxyConfig)
	if err != nil {
		return nil, err
	}
	store, err := proxyconfig.NewStore(proxyCfg)
	if err != nil {
		return nil, err
	}

	clientOpts := []fetch.ClientOption{fetch.WithTimeout(settings.FetchTimeout())}
	if !settings.CacheDocuments {
		clientOpts = append(clientOpts, fetch.WithoutCache())
	}
	if len(settings.AccessTokens) > 0 {
		clientOpts = append(clientOpts, fetch.WithAuthorizer(fetch.StaticTokens(settings.AccessTokens)))
	}

	registry := transform.Default()
	clients := fetch.NewCachingClients(clientOpts...)
	agg := aggregator.New(
		store,
		fetch.NewHTTPFetcher(clients),
		registry,
		c.log,
		aggregator.WithMaxConcurrentFetches(settings.MaxConcurrentFetches),
	)

	c.log.Infof("Loaded %d clusters and %d routes (%s mode)", len(proxyCfg.Clusters), len(proxyCfg.Routes), proxyCfg.Options.DocumentMode)

	return &app{settings: settings, store: store, registry: registry, clients: clients, aggregator: agg}, nil
}

func (c *CLI) runServe(cmd *cobra.Command, _ []string) error {
	a, err := c.setup(cmd)
	if err != nil {
		return err
	}
	if err := validateTransforms(a.registry, a.store.Load()); err != nil {
		c.log.Errorf("Proxy configuration has transform problems: %v", err)
	}

	if a.settings.Watch {
		watcher, err := proxyconfig.NewWatcher(a.settings.ProxyConfig, a.store, c.log, proxyconfig.WithOnReload(a.clients.Retain))
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	var metricsHandler http.Handler
	if a.settings.Metrics.Enabled {
		metricsHandler, err = metrics.NewPrometheusHandler(a.settings.Metrics.Prefix, c.log)
		if err != nil {
			return fmt.Errorf("failed to start metrics exporter: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.UseReleaseMode()
	return server.Serve(ctx, a.settings.Listen, server.NewRouter(a.aggregator, c.log, metricsHandler), c.log)
}

func (c *CLI) runAggregate(cmd *cobra.Command, _ []string) error {
	a, err := c.setup(cmd)
	if err != nil {
		return err
	}

	doc, err := a.aggregator.Aggregate(commandContext(cmd), c.name)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	data, _, err := server.Encode(doc, strings.ToLower(c.docFormat))
	if err != nil {
		return err
	}

	return c.writeOutput(func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (c *CLI) runExport(cmd *cobra.Command, _ []string) error {
	converter, err := converters.New(c.exportFormat)
	if err != nil {
		return err
	}

	a, err := c.setup(cmd)
	if err != nil {
		return err
	}

	doc, err := a.aggregator.Aggregate(commandContext(cmd), c.name)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	catalog := domain.FromOpenAPI(c.name, doc)
	c.log.Infof("Converting %q (%d endpoints) to %s format...", c.name, len(catalog.Endpoints), converter.Format())

	if err := c.writeOutput(func(w io.Writer) error {
		return converter.Convert(catalog, w)
	}); err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	c.log.Infof("Successfully created: %s", c.outputFile)
	return nil
}

// writeOutput runs write against the output file, or the command output when
// no file is set.
func (c *CLI) writeOutput(write func(io.Writer) error) error {
	if c.outputFile == "" {
		return write(c.out)
	}

	outputFile, err := os.Create(c.outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(outputFile); err != nil {
		_ = outputFile.Close()
		return err
	}
	return outputFile.Close()
}

func validateTransforms(registry *transform.Registry, cfg *proxyconfig.Config) error {
	var errs []error
	for _, route := range cfg.Routes {
		if err := registry.Validate(route); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
