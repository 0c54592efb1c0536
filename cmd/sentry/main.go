package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentry/internal/agent"
	"github.com/mikeyg42/sentry/internal/alert"
	"github.com/mikeyg42/sentry/internal/api"
	"github.com/mikeyg42/sentry/internal/capture"
	"github.com/mikeyg42/sentry/internal/command"
	"github.com/mikeyg42/sentry/internal/config"
	"github.com/mikeyg42/sentry/internal/evidence"
	"github.com/mikeyg42/sentry/internal/gate"
	"github.com/mikeyg42/sentry/internal/metrics"
	"github.com/mikeyg42/sentry/internal/recording"
	"github.com/mikeyg42/sentry/internal/report"
	"github.com/mikeyg42/sentry/internal/sensor"
	"github.com/mikeyg42/sentry/internal/tracker"
)

func main() {
	var (
		configPath   = flag.String("config", "sentry.yaml", "path to YAML config file")
		cameraDevice = flag.Int("camera", 0, "video capture device id")
		noAudio      = flag.Bool("no-audio", false, "run without the microphone sensor")
		autoStart    = flag.Bool("auto-start", false, "start detection immediately")
	)
	flag.Parse()

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar().Named("sentry")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalw("load config", "error", err)
	}
	thresholds := config.NewThresholds(cfg.Detection)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	config.WatchThresholds(rootCtx, *configPath, thresholds, logger)

	m := metrics.New()
	hub := alert.NewHub(logger.Named("hub"))
	alerts := alert.NewLog(hub)

	// Devices. A dead camera or microphone degrades the station, it does
	// not abort it: the control API and incident log still run.
	var cam capture.Camera
	if webcam, err := capture.OpenWebcam(*cameraDevice); err != nil {
		logger.Warnw("camera unavailable", "device", *cameraDevice, "error", err)
		alerts.Addf("Camera initialization failed: %v", err)
	} else {
		cam = webcam
	}

	var mic capture.Microphone
	if !*noAudio {
		if mdMic, err := capture.OpenMicrophone(cfg.Audio.SampleRate, cfg.Audio.BufferSize, logger.Named("mic")); err != nil {
			logger.Warnw("microphone unavailable", "error", err)
			alerts.Addf("Audio initialization failed: %v", err)
		} else {
			mic = mdMic
		}
	}

	// Evidence path.
	var archiver evidence.Archiver
	if cfg.Evidence.Archive.Enabled {
		a, err := evidence.NewMinIOArchiver(rootCtx, evidence.MinIOConfig{
			Endpoint:  cfg.Evidence.Archive.Endpoint,
			AccessKey: cfg.Evidence.Archive.AccessKey,
			SecretKey: cfg.Evidence.Archive.SecretKey,
			Bucket:    cfg.Evidence.Archive.Bucket,
			UseSSL:    cfg.Evidence.Archive.UseSSL,
		}, logger.Named("archive"))
		if err != nil {
			logger.Warnw("evidence archival disabled", "error", err)
		} else {
			archiver = a
		}
	}

	store, err := evidence.NewStore(cfg.Evidence.Dir, archiver, logger.Named("evidence"))
	if err != nil {
		logger.Fatalw("init evidence store", "error", err)
	}

	trackerClient := tracker.NewClient(cfg.Tracker.BaseURL, logger.Named("tracker"))
	if err := trackerClient.Probe(rootCtx, 10*time.Second); err != nil {
		logger.Warnw("incident tracker unreachable, running locally until it recovers", "error", err)
	}

	budget := evidence.NewBudget(cfg.Evidence.MaxImages, cfg.Evidence.MaxAudio, cfg.Evidence.SendInterval)
	capturer := evidence.NewCapturer(store, budget, trackerClient, alerts, m, logger.Named("evidence"))

	machine := recording.NewMachine(cfg.Detection.RecordingDuration, func(_ time.Time, buffers [][]float32) {
		capturer.CaptureAudio("sound", buffers, cfg.Audio.SampleRate)
	}, logger.Named("recording"))

	incidentLog := report.NewLogStore(cfg.Evidence.IncidentLog)
	reporter := report.NewReporter(incidentLog, trackerClient, budget, machine,
		alerts, hub, m, logger.Named("report"),
		cfg.Tracker.DeviceID, cfg.Tracker.Location, cfg.Tracker.Zone)

	flags := sensor.NewFlags()
	eventGate := gate.New(cfg.Detection.EventCooldown)

	core := agent.New(cfg, thresholds, cam, mic, flags, eventGate, machine, capturer,
		reporter, alerts, hub, m, logger.Named("agent"))
	defer core.Close()

	if cfg.Command.Enabled {
		poller := command.NewPoller(trackerClient, core, cfg.Command.PollInterval, logger.Named("command"))
		go poller.Run(rootCtx)
	}

	server := api.NewServer(cfg.Server.Addr, core, alerts, hub, incidentLog, m, logger.Named("api"))
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalw("control API failed", "error", err)
		}
	}()

	if *autoStart {
		if err := core.StartDetection(); err != nil {
			logger.Warnw("auto-start failed", "error", err)
		}
	}

	// Block until signalled, then tear down in fixed order: stop workers
	// and release devices, then drain the API server.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infow("shutting down", "signal", sig.String())

	rootCancel()
	core.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("control API shutdown", "error", err)
	}
}
