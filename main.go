package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camview/cmd"
	"github.com/smazurov/camview/internal/config"
	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/led"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/metrics"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"camview.toml"`

	// Capture settings
	Device           string `help:"Capture device path or stable ID" short:"d" default:"/dev/video0" toml:"capture.device" env:"CAPTURE_DEVICE"`
	Width            int    `help:"Requested frame width, 0 for the largest" default:"0" toml:"capture.width" env:"CAPTURE_WIDTH"`
	Height           int    `help:"Requested frame height, 0 for the largest" default:"0" toml:"capture.height" env:"CAPTURE_HEIGHT"`
	Buffers          int    `help:"Number of mmap buffers to request" default:"4" toml:"capture.buffers" env:"CAPTURE_BUFFERS"`
	Nonblocking      bool   `help:"Open the device in non-blocking mode" default:"true" toml:"capture.nonblocking" env:"CAPTURE_NONBLOCKING"`
	PreferCompressed bool   `help:"Prefer MJPEG over YUYV when offered" default:"true" toml:"capture.prefer_compressed" env:"CAPTURE_PREFER_COMPRESSED"`
	Frames           int    `help:"Stop after this many frames, 0 runs until interrupted" default:"0" toml:"capture.frames" env:"CAPTURE_FRAMES"`
	TimeoutSeconds   int    `help:"Seconds to wait for a frame" default:"2" toml:"capture.timeout_seconds" env:"CAPTURE_TIMEOUT_SECONDS"`
	MaxTimeouts      int    `help:"Consecutive frame timeouts tolerated before giving up" default:"0" toml:"capture.max_timeouts" env:"CAPTURE_MAX_TIMEOUTS"`

	// Display settings
	Outputs            string `help:"Comma list of outputs: terminal, preview, snapshot, none" default:"preview" toml:"display.outputs" env:"DISPLAY_OUTPUTS"`
	SnapshotPath       string `help:"Snapshot JPEG path" default:"snapshot.jpg" toml:"display.snapshot_path" env:"DISPLAY_SNAPSHOT_PATH"`
	SnapshotWidth      int    `help:"Snapshot width, 0 keeps the frame size" default:"0" toml:"display.snapshot_width" env:"DISPLAY_SNAPSHOT_WIDTH"`
	SnapshotIntervalMs int    `help:"Minimum milliseconds between snapshot writes" default:"1000" toml:"display.snapshot_interval_ms" env:"DISPLAY_SNAPSHOT_INTERVAL_MS"`
	TerminalFps        int    `help:"Terminal redraws per second, 0 draws every frame" default:"10" toml:"display.terminal_fps" env:"DISPLAY_TERMINAL_FPS"`

	// Preview settings
	Port        string `help:"Preview server address" short:"p" default:":8090" toml:"preview.port" env:"PREVIEW_PORT"`
	Title       string `help:"Preview page title" default:"V4L2 capture" toml:"preview.title" env:"PREVIEW_TITLE"`
	JpegQuality int    `help:"JPEG quality for preview frames (1-100)" default:"80" toml:"preview.jpeg_quality" env:"PREVIEW_JPEG_QUALITY"`

	// Features settings
	FeaturesLedControl bool `help:"Enable LED control" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingMain    string `help:"Main logging level" default:"info" toml:"logging.main" env:"LOGGING_MAIN"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingRender  string `help:"Render logging level" default:"info" toml:"logging.render" env:"LOGGING_RENDER"`
	LoggingPreview string `help:"Preview server logging level" default:"info" toml:"logging.preview" env:"LOGGING_PREVIEW"`
	LoggingConfig  string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingLed     string `help:"LED logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
	LoggingMetrics string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

// loggingConfig maps the logging options onto per-module levels.
func loggingConfig(opts *Options) logging.Config {
	return logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"main":    opts.LoggingMain,
			"capture": opts.LoggingCapture,
			"render":  opts.LoggingRender,
			"preview": opts.LoggingPreview,
			"config":  opts.LoggingConfig,
			"led":     opts.LoggingLed,
			"metrics": opts.LoggingMetrics,
		},
	}
}

func main() {
	var cli humacli.CLI

	// Create Huma CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")

		// Logging levels follow the config file while running
		watcher := config.NewConfigWatcher(opts.Config, config.ReadLoggingConfig, logging.GetLogger("config"))
		watcher.OnReload(func(cfg logging.Config) {
			logging.UpdateLevels(cfg)
		})

		// Create event bus for in-process event handling
		eventBus := events.New()
		collector := metrics.NewCollector(eventBus)

		// Initialize LED control if enabled
		var ledManager *led.Manager
		if opts.FeaturesLedControl {
			logger.Info("LED control enabled, initializing")
			ledLogger := logging.GetLogger("led")
			ledController, ledType := led.New(ledLogger)
			ledManager = led.NewManager(ledController, ledType, eventBus, ledLogger)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Config watcher unavailable", "path", opts.Config, "error", startErr)
			}
			collector.Start()
			if ledManager != nil {
				ledManager.Start()
			}

			runErr := newApp(opts, eventBus, logger).run(ctx)

			if ledManager != nil {
				ledManager.Stop()
			}
			collector.Stop()
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Debug("Config watcher stop failed", "error", stopErr)
			}

			if runErr != nil {
				logger.Error("Capture failed", "error", runErr)
				fmt.Fprintln(os.Stderr, "camview:", runErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			<-done
		})
	})

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateFormatsCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
