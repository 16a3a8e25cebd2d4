package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unbound-force/flaglens/internal/config"
	"github.com/unbound-force/flaglens/internal/flagconf"
	"github.com/unbound-force/flaglens/internal/notifier"
	"github.com/unbound-force/flaglens/internal/retriever"
	"github.com/unbound-force/flaglens/internal/server"
)

// sourceFlags are the retriever flags shared by watch and serve.
type sourceFlags struct {
	configPath string
	url        string
	githubSlug string
	githubPath string
	branch     string
	token      string
	timeout    int
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.configPath, "config", "c", "",
		"local flag configuration file")
	cmd.Flags().StringVar(&s.url, "url", "",
		"HTTP(S) endpoint serving the flag configuration")
	cmd.Flags().StringVar(&s.githubSlug, "github", "",
		"GitHub repository as owner/repo")
	cmd.Flags().StringVar(&s.githubPath, "github-path", "",
		"path to the flag file inside the GitHub repository")
	cmd.Flags().StringVar(&s.branch, "branch", "",
		"GitHub branch (default main)")
	cmd.Flags().StringVar(&s.token, "token", "",
		"GitHub token for private repositories")
	cmd.Flags().IntVar(&s.timeout, "timeout", 0,
		"remote fetch timeout in milliseconds")
}

// retriever builds the configured retriever, rejecting ambiguous or
// missing source flags.
func (s *sourceFlags) retriever() (retriever.Retriever, error) {
	cfg := retriever.Config{Timeout: s.timeout}
	set := 0
	if s.configPath != "" {
		cfg.Kind, cfg.Path = "file", s.configPath
		set++
	}
	if s.url != "" {
		cfg.Kind, cfg.URL = "http", s.url
		set++
	}
	if s.githubSlug != "" {
		cfg.Kind = "github"
		cfg.RepositorySlug = s.githubSlug
		cfg.Path = s.githubPath
		cfg.Branch = s.branch
		cfg.Token = s.token
		set++
	}
	if set == 0 {
		return nil, fmt.Errorf("no flag source: use --config, --url, or --github")
	}
	if set > 1 {
		return nil, fmt.Errorf("multiple flag sources: use only one of --config, --url, or --github")
	}
	return retriever.New(cfg)
}

// watchParams holds the parsed flags for the watch command.
type watchParams struct {
	source     sourceFlags
	interval   time.Duration
	webhookURL string
	secret     string
	slackURL   string
}

// runWatch is the extracted, testable body of the watch command.
func runWatch(ctx context.Context, p watchParams) error {
	src, err := p.source.retriever()
	if err != nil {
		return err
	}

	notifiers := []notifier.Notifier{&notifier.Log{Logger: logger}}
	if p.webhookURL != "" {
		notifiers = append(notifiers, &notifier.Webhook{EndpointURL: p.webhookURL, Secret: p.secret})
	}
	if p.slackURL != "" {
		notifiers = append(notifiers, &notifier.Slack{WebhookURL: p.slackURL})
	}

	poller := &retriever.Poller{
		Retriever: src,
		Interval:  p.interval,
		OnChange: func(old, updated flagconf.FlagSet) {
			if old == nil {
				logger.Info("configuration loaded", "source", src.Location(), "flags", len(updated))
				return
			}
			diff := notifier.Compute(old, updated)
			if err := notifier.NotifyAll(ctx, notifiers, diff); err != nil {
				logger.Error("notification failed", "err", err)
			}
		},
		OnError: func(err error) {
			logger.Error("fetch failed", "err", err)
		},
	}

	logger.Info("watching", "source", src.Location(), "interval", p.interval)
	err = poller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newWatchCmd() *cobra.Command {
	var (
		source     sourceFlags
		interval   time.Duration
		webhookURL string
		secret     string
		slackURL   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a flag source and notify on changes",
		Long: `Poll a flag configuration source and report every change: flags
added, removed, or updated. Changes are always logged; --webhook
and --slack deliver them to external receivers as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, watchParams{
				source:     source,
				interval:   interval,
				webhookURL: webhookURL,
				secret:     secret,
				slackURL:   slackURL,
			})
		},
	}

	source.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", retriever.DefaultInterval,
		"polling interval")
	cmd.Flags().StringVar(&webhookURL, "webhook", "",
		"POST change diffs to this URL")
	cmd.Flags().StringVar(&secret, "webhook-secret", "",
		"sign webhook payloads with this HMAC-SHA256 secret")
	cmd.Flags().StringVar(&slackURL, "slack", "",
		"post change summaries to this Slack incoming-webhook URL")

	return cmd
}

// serveParams holds the parsed flags for the serve command.
type serveParams struct {
	source   sourceFlags
	addr     string
	apiKey   string
	interval time.Duration
}

// runServe is the extracted, testable body of the serve command. The
// listen func receives the fully wired handler; tests substitute an
// httptest server for http.ListenAndServe.
func runServe(ctx context.Context, p serveParams, listen func(addr string, h http.Handler) error) error {
	src, err := p.source.retriever()
	if err != nil {
		return err
	}

	data, err := src.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("initial fetch from %s: %w", src.Location(), err)
	}
	flags, err := flagconf.Parse(data, flagconf.DetectFormat(src.Location(), data))
	if err != nil {
		return fmt.Errorf("parse %s: %w", src.Location(), err)
	}

	poller := &retriever.Poller{
		Retriever: src,
		Interval:  p.interval,
	}

	srv := server.New(flags, server.Options{
		APIKey: p.apiKey,
		Logger: logger,
		Refresh: func(ctx context.Context) error {
			return poller.Refresh(ctx)
		},
	})

	poller.OnChange = func(old, updated flagconf.FlagSet) {
		srv.SetFlags(updated)
		if old != nil {
			logger.Info("configuration updated", "flags", len(updated))
		}
	}

	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("poller stopped", "err", err)
		}
	}()

	logger.Info("serving", "addr", p.addr, "source", src.Location(), "flags", len(flags))
	return listen(p.addr, srv.Handler())
}

func newServeCmd() *cobra.Command {
	var (
		source   sourceFlags
		addr     string
		apiKey   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve flag evaluation over HTTP",
		Long: `Run an HTTP server that evaluates flags from a configuration
source. The source is polled for changes; POST /v1/admin/refresh
forces an immediate re-fetch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if apiKey == "" {
				apiKey = cfg.Server.APIKey
			}
			if !cmd.Flags().Changed("interval") {
				interval = time.Duration(cfg.Server.Interval) * time.Second
			}
			return runServe(ctx, serveParams{
				source:   source,
				addr:     addr,
				apiKey:   apiKey,
				interval: interval,
			}, http.ListenAndServe)
		},
	}

	source.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":1031",
		"listen address")
	cmd.Flags().StringVar(&apiKey, "api-key", "",
		"require this API key on every route except /health")
	cmd.Flags().DurationVar(&interval, "interval", retriever.DefaultInterval,
		"polling interval")

	return cmd
}
