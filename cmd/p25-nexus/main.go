package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dbehnke/p25-nexus/pkg/bandplan"
	"github.com/dbehnke/p25-nexus/pkg/calllog"
	"github.com/dbehnke/p25-nexus/pkg/capture"
	"github.com/dbehnke/p25-nexus/pkg/config"
	"github.com/dbehnke/p25-nexus/pkg/database"
	"github.com/dbehnke/p25-nexus/pkg/logger"
	"github.com/dbehnke/p25-nexus/pkg/metrics"
	"github.com/dbehnke/p25-nexus/pkg/mqtt"
	"github.com/dbehnke/p25-nexus/pkg/p25"
	"github.com/dbehnke/p25-nexus/pkg/web"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const (
	sinkBuffer        = 1024
	statsInterval     = time.Second
	retentionInterval = time.Hour
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("P25-Nexus %s (%s, built %s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	defer func() { _ = log.Close() }()

	if err := run(cfg, log); err != nil {
		log.Error("P25-Nexus failed", logger.Error(err))
		_ = log.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("Starting P25-Nexus",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.String("server_name", cfg.Server.Name))
	web.SetVersionInfo(version, commit, buildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	plan := bandplan.New()
	if cfg.Decoder.BandPlanFile != "" {
		seeded, err := bandplan.Load(cfg.Decoder.BandPlanFile)
		if err != nil {
			return err
		}
		plan = seeded
		log.Info("Band plan loaded",
			logger.String("file", cfg.Decoder.BandPlanFile),
			logger.Int("bands", len(plan.Bands())))
	}

	pipe := newPipeline(plan, cfg.Decoder.QueueSize, uuid.NewString, log)

	collector := metrics.NewCollector()
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		metricsServer := metrics.NewPrometheusServer(
			metrics.PrometheusConfig{
				Enabled: cfg.Metrics.Prometheus.Enabled,
				Port:    cfg.Metrics.Prometheus.Port,
				Path:    cfg.Metrics.Prometheus.Path,
			},
			collector,
			log,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
	}

	var (
		messages *database.MessageRepository
		calls    *database.CallRepository
	)
	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close database", logger.Error(err))
			}
		}()
		messages = database.NewMessageRepository(db.GetDB())
		calls = database.NewCallRepository(db.GetDB())
	}

	var store calllog.Store
	if calls != nil {
		store = calls
	}
	tracker := calllog.NewTracker(store, cfg.Decoder.MinCallDuration, log)

	listeners := []p25.Listener{collector.Observe, tracker.Observe}
	var sinks []*sink

	if messages != nil {
		s := newSink("database", sinkBuffer, messages.Record, collector.PublishFailed, log)
		sinks = append(sinks, s)
		listeners = append(listeners, s.Observe)
	}

	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqtt.New(
			mqtt.Config{
				Enabled:     cfg.MQTT.Enabled,
				Broker:      cfg.MQTT.Broker,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				QoS:         cfg.MQTT.QoS,
				Retained:    cfg.MQTT.Retained,
			},
			log,
		)
		if err := mqttPublisher.Start(ctx); err != nil {
			log.Error("MQTT publisher unavailable", logger.Error(err))
		}
		s := newSink("mqtt", sinkBuffer, mqttPublisher.Publish, collector.PublishFailed, log)
		sinks = append(sinks, s)
		listeners = append(listeners, s.Observe)
	}

	var webServer *web.Server
	if cfg.Web.Enabled {
		webServer = web.NewServer(cfg.Web, web.Sources{
			Stats:    pipe.Stats,
			Active:   tracker.ActiveCalls,
			Messages: messages,
			Calls:    calls,
		}, log)
		listeners = append(listeners, webServer.Observe)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
	}

	for _, s := range sinks {
		go s.Run()
	}

	for _, l := range listeners {
		pipe.AddListener(l)
	}
	pipe.onLineError = collector.CaptureError

	var feeders sync.WaitGroup
	for _, path := range cfg.Decoder.Captures {
		r, err := capture.Open(path)
		if err != nil {
			log.Error("Failed to open capture", logger.String("capture", path), logger.Error(err))
			collector.CaptureError(path)
			continue
		}
		feeders.Add(1)
		go func() {
			defer feeders.Done()
			defer func() { _ = r.Close() }()
			if err := pipe.Feed(ctx, path, r); err != nil && err != context.Canceled {
				log.Error("Capture failed", logger.String("capture", path), logger.Error(err))
				collector.CaptureError(path)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		housekeeping(ctx, cfg, pipe, tracker, collector, webServer, messages, calls, log)
	}()

	log.Info("P25-Nexus initialized",
		logger.Int("captures", len(cfg.Decoder.Captures)))

	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.String("signal", sig.String()))

	cancel()
	feeders.Wait()
	pipe.Close()
	for _, s := range sinks {
		s.Close()
	}
	if mqttPublisher != nil {
		mqttPublisher.Stop()
	}
	wg.Wait()

	log.Info("P25-Nexus stopped")
	return nil
}

// housekeeping ends silent calls, refreshes gauges and the dashboard, and
// prunes the database
func housekeeping(ctx context.Context, cfg *config.Config, pipe *pipeline, tracker *calllog.Tracker,
	collector *metrics.Collector, webServer *web.Server,
	messages *database.MessageRepository, calls *database.CallRepository, log *logger.Logger) {

	stats := time.NewTicker(statsInterval)
	defer stats.Stop()
	retention := time.NewTicker(retentionInterval)
	defer retention.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-stats.C:
			if n := tracker.CleanupStaleCalls(cfg.Decoder.CallTimeout); n > 0 {
				log.Debug("Ended silent calls", logger.Int("count", n))
			}
			active := tracker.ActiveCalls()
			collector.SetActiveCalls(len(active))
			channelStats := pipe.Stats()
			for channel, s := range channelStats {
				collector.UpdateProcessorStats(channel, s)
			}
			if webServer != nil {
				webServer.GetHub().BroadcastStatsUpdate(channelStats)
				webServer.GetHub().BroadcastCallsUpdate(active)
			}

		case <-retention.C:
			if cfg.Database.Retention <= 0 || messages == nil {
				continue
			}
			cutoff := time.Now().Add(-cfg.Database.Retention)
			m, err := messages.DeleteOlderThan(cutoff)
			if err != nil {
				log.Error("Failed to prune messages", logger.Error(err))
			}
			c, err := calls.DeleteOlderThan(cutoff)
			if err != nil {
				log.Error("Failed to prune calls", logger.Error(err))
			}
			log.Info("Pruned database",
				logger.Int64("messages", m),
				logger.Int64("calls", c))
		}
	}
}
