package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"racecal/internal/capture"
	"racecal/internal/config"
	"racecal/internal/filter"
	appLog "racecal/internal/log"
	"racecal/internal/model"
	"racecal/internal/source"
	"racecal/internal/view"
	"racecal/internal/web"
)

type flagConfig struct {
	configPath   string
	listen       string
	dataPath     string
	dataURL      string
	once         bool
	snapshotPath string
	debug        bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("racecal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI overrides.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.dataPath != "" {
		conf.Data = config.DataConfig{Path: flags.dataPath}
	}
	if flags.dataURL != "" {
		conf.Data = config.DataConfig{URL: flags.dataURL}
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"data_path", conf.Data.Path,
		"data_url", conf.Data.URL,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	fetcher := source.NewFetcher(conf.Data.URL, conf.Data.Path, conf.CacheDir)

	if flags.once {
		runOnce(ctx, fetcher)
		return
	}

	loc := resolveLocation(conf.Timezone)
	presenter := web.NewBoardPresenter(loc)
	syncr := view.New(fetcher, presenter)

	// A failed initial load is terminal for the session: the board
	// serves the fixed failure message until the process restarts.
	if err := syncr.Load(ctx); err != nil {
		appLog.Warn("serving in load-failed state", "err", err)
	}

	server := web.NewServer(conf, syncr, presenter)

	if conf.RefreshCron != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(conf.RefreshCron, func() {
			if err := server.Refresh(ctx); err != nil {
				appLog.Warn("scheduled refresh skipped", "err", err)
			}
		}); err != nil {
			appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	if flags.snapshotPath != "" {
		runSnapshot(ctx, conf, flags.snapshotPath)
		cancel()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	appLog.Info("racecal exiting")
}

// runOnce loads the events document a single time and prints the board
// to stdout. Useful for checking a feed without starting the server.
func runOnce(ctx context.Context, fetcher *source.Fetcher) {
	syncr := view.New(fetcher, consolePresenter{})
	if err := syncr.Load(ctx); err != nil {
		os.Exit(1)
	}
}

// runSnapshot waits for the server to come up, captures the board page
// and writes it to outPath.
func runSnapshot(ctx context.Context, conf *config.Config, outPath string) {
	// Give the listener a moment before pointing Chromium at it.
	time.Sleep(300 * time.Millisecond)

	err := capture.BoardPNG(ctx, capture.Options{
		URL:        "http://" + conf.Listen + "/",
		OutputPath: outPath,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
	})
	if err != nil {
		appLog.Error("board snapshot failed", err, "out", outPath)
		return
	}
	appLog.Info("board snapshot written", "out", outPath)
}

// consolePresenter renders the board as plain text for -once mode.
type consolePresenter struct{}

func (consolePresenter) RenderList(events []model.Event) {
	if len(events) == 0 {
		fmt.Println(view.EmptyNotice)
		return
	}
	for _, e := range events {
		status := "已截止"
		if e.RegistrationOpen {
			status = "報名中"
		}
		fmt.Printf("%s  %s  %s  [%s]\n", e.RaceDate.String(), e.Location, e.Name, status)
	}
}

func (consolePresenter) RenderSummary(sum filter.Summary) {
	fmt.Printf("共 %d 場賽事，目前顯示 %d 場，%d 場報名中\n", sum.Total, sum.Visible, sum.Open)
}

func (consolePresenter) RenderLoadFailure(message string) {
	fmt.Println(message)
}

func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/racecal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.dataPath, "data", "", "Path to a local events JSON file (overrides config)")
	flag.StringVar(&cfg.dataURL, "data-url", "", "URL of the events JSON document (overrides config)")
	flag.BoolVar(&cfg.once, "once", false, "Load the events document once, print the board and exit")
	flag.StringVar(&cfg.snapshotPath, "snapshot", "", "Capture a PNG of the board page to this path and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
