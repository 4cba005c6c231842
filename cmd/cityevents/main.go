package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/robfig/cron/v3"

	"cityevents/internal/config"
	"cityevents/internal/feed"
	appLog "cityevents/internal/log"
	"cityevents/internal/pipeline"
	"cityevents/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file when provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.Log.Level = flags.logLevel
	}
	appLog.Configure(os.Stderr, conf.Log.Format, appLog.ParseLevel(conf.Log.Level))
	appLog.Info("cityevents starting", "version", version)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"venue_cap", conf.Cap(),
		"events_feed", conf.Feeds.Events != "",
		"venues_feed", conf.Feeds.Venues != "",
		"basic_auth", conf.BasicAuth != nil,
		"once", flags.once,
	)

	p := newPipeline(conf)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		if err := runOnce(ctx, p); err != nil {
			appLog.Error("one-shot run failed", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf, p); err != nil {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("cityevents exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/cityevents/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run the pipeline once, print the result as JSON and exit")

	flag.Parse()

	return cfg
}

func newPipeline(conf *config.Config) *pipeline.Pipeline {
	fetcher := feed.NewFetcher(feed.Options{
		Timeout:       conf.Fetch.Timeout(),
		RatePerSecond: conf.Fetch.RatePerSecond,
		Burst:         conf.Fetch.Burst,
		UserAgent:     conf.Fetch.UserAgent,
	})
	return pipeline.New(fetcher, pipeline.Options{
		Feeds: pipeline.Feeds{
			Events:          conf.Feeds.Events,
			Venues:          conf.Feeds.Venues,
			EventTags:       conf.Feeds.EventTags,
			VenueTags:       conf.Feeds.VenueTags,
			Collections:     conf.Feeds.Collections,
			CollectionItems: conf.Feeds.CollectionItems,
		},
		VenueCap: conf.Cap(),
		Location: conf.Location(),
	})
}

// runOnce runs a single pipeline pass and writes the result to stdout.
func runOnce(ctx context.Context, p *pipeline.Pipeline) error {
	res := p.Run(ctx)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// serve starts the HTTP API and the cron refresh, and blocks until ctx is
// canceled or the listener fails.
func serve(ctx context.Context, conf *config.Config, p *pipeline.Pipeline) error {
	srv := web.NewServer(conf, p)

	sched := cron.New(cron.WithLocation(conf.Location()))
	if _, err := sched.AddFunc(conf.RefreshCron, func() {
		res := srv.Refresh(ctx)
		appLog.Info("scheduled refresh completed", "run_id", res.RunID, "events", len(res.Events))
	}); err != nil {
		return err
	}
	sched.Start()

	// Warm the snapshot so the first request does not pay for a run.
	go srv.Refresh(ctx)

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case serveErr = <-errCh:
	}

	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	return serveErr
}
