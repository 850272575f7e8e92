package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	apiPkg "github.com/videodesk-io/videodesk/internal/api"
	"github.com/videodesk-io/videodesk/internal/archive"
	"github.com/videodesk-io/videodesk/internal/assign"
	"github.com/videodesk-io/videodesk/internal/config"
	"github.com/videodesk-io/videodesk/internal/desk"
	"github.com/videodesk-io/videodesk/internal/logbuf"
	"github.com/videodesk-io/videodesk/internal/notify"
	"github.com/videodesk-io/videodesk/internal/runlog"
	"github.com/videodesk-io/videodesk/internal/scheduler"
	"github.com/videodesk-io/videodesk/internal/video"
	"github.com/videodesk-io/videodesk/internal/zendesk"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (file or env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("videodeskd starting", "data_dir", cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	// 1. Stores
	videos, err := video.NewSQLiteStore(filepath.Join(cfg.DataDir, "videos.db"))
	if err != nil {
		logger.Error("failed to open video store", "error", err)
		os.Exit(1)
	}
	defer videos.Close()

	runs, err := runlog.NewSQLiteStore(filepath.Join(cfg.DataDir, "runs.db"))
	if err != nil {
		logger.Error("failed to open run log", "error", err)
		os.Exit(1)
	}
	defer runs.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Ticketing client + assignment runner
	var zdClient *zendesk.Client
	var runner *assign.Runner
	if cfg.Zendesk.Configured() {
		zdClient = zendesk.New(cfg.Zendesk.Subdomain, cfg.Zendesk.Email, cfg.Zendesk.APIToken)
		runner = assign.NewRunner(zdClient, assign.Options{Pace: cfg.Zendesk.Pace()}, logger.With("component", "assign"))
		logger.Info("zendesk client initialized", "subdomain", cfg.Zendesk.Subdomain)
	} else {
		logger.Warn("zendesk credentials not configured, assignment and escalation disabled")
	}

	// 3. Run-summary notifier
	var notifier desk.Notifier
	if cfg.Slack != nil {
		n, err := notify.New(notify.Config{
			BotToken: cfg.Slack.BotToken,
			Channel:  cfg.Slack.Channel,
		}, logger.With("component", "notify"))
		if err != nil {
			logger.Error("failed to init slack notifier", "error", err)
			os.Exit(1)
		}
		notifier = n
		logger.Info("slack notifier initialized", "channel", cfg.Slack.Channel)
	}

	// 4. Desk
	var ticketing desk.Ticketing
	if zdClient != nil {
		ticketing = zdClient
	}
	d := desk.New(desk.Options{
		Videos:    videos,
		Runs:      runs,
		Runner:    runner,
		Ticketing: ticketing,
		Notifier:  notifier,
		Defaults: desk.AssignDefaults{
			ViewID:   cfg.Zendesk.ViewID,
			FieldID:  cfg.Zendesk.FieldID,
			AgentIDs: cfg.Zendesk.AgentIDs,
		},
		SubjectPrefix: cfg.Zendesk.SubjectPrefix,
		Logger:        logger.With("component", "desk"),
	})

	// 5. Archive importer — initial import in the background so a slow
	// mirror doesn't block startup.
	var sources []archive.Source
	if cfg.Archives.OfficialURL != "" {
		sources = append(sources, archive.Source{Name: "official", URL: cfg.Archives.OfficialURL})
	}
	if cfg.Archives.ThirdPartyURL != "" {
		sources = append(sources, archive.Source{Name: "third_party", URL: cfg.Archives.ThirdPartyURL})
	}
	var importer *archive.Importer
	if len(sources) > 0 {
		fetcher := archive.NewFetcher(cfg.DataDir, logger.With("component", "archive"))
		importer = archive.NewImporter(videos, fetcher, sources, logger.With("component", "archive"))
		go safeGo(logger, "archive-import", func() {
			if n, err := importer.Import(ctx); err != nil {
				logger.Warn("initial archive import incomplete", "imported", n, "error", err)
			} else {
				logger.Info("initial archive import done", "imported", n)
			}
		})
	}

	// 6. Scheduler
	sched := scheduler.New(logger.With("component", "scheduler"))
	if cfg.Zendesk.Schedule != "" {
		err := sched.Add("assign", cfg.Zendesk.Schedule, func(ctx context.Context) {
			if _, err := d.RunAssignment(ctx, 0, 0, nil); err != nil {
				logger.Error("scheduled assignment run failed", "error", err)
			}
		})
		if err != nil {
			logger.Error("failed to schedule assignment runs", "error", err)
			os.Exit(1)
		}
	}
	if importer != nil {
		// Archives publish daily; refresh well off peak.
		sched.Add("archives", "0 4 * * *", func(ctx context.Context) {
			if n, err := importer.Import(ctx); err != nil {
				logger.Warn("archive refresh incomplete", "imported", n, "error", err)
			}
		})
	}
	if sched.JobCount() > 0 {
		go safeGo(logger, "scheduler", func() { sched.Start(ctx) })
	}

	// 7. API server
	apiSrv := apiPkg.NewServer(d, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 8. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("videodeskd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
