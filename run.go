package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/camview/cmd"
	"github.com/smazurov/camview/internal/capture"
	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/metrics"
	"github.com/smazurov/camview/internal/preview"
	"github.com/smazurov/camview/internal/render"
	"github.com/smazurov/camview/pkg/linuxav/hotplug"
	"github.com/smazurov/camview/pkg/linuxav/v4l2"
)

// Output names accepted by display.outputs.
const (
	outputTerminal = "terminal"
	outputPreview  = "preview"
	outputSnapshot = "snapshot"
	outputNone     = "none"
)

const previewShutdownTimeout = 5 * time.Second

var errDeviceRemoved = errors.New("capture device removed")

// settings is the validated form of Options.
type settings struct {
	device  string
	setup   capture.SetupOptions
	run     capture.RunOptions
	outputs []string

	snapshotPath     string
	snapshotWidth    int
	snapshotInterval time.Duration
	terminalFPS      float64

	previewAddr  string
	previewTitle string
	jpegQuality  int
}

func (s settings) enabled(output string) bool {
	return slices.Contains(s.outputs, output)
}

// parseOutputs splits a comma list of outputs. "none" alone disables
// rendering; it cannot be combined with other outputs.
func parseOutputs(value string) ([]string, error) {
	var outputs []string
	for _, part := range strings.Split(value, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch name {
		case "":
			continue
		case outputTerminal, outputPreview, outputSnapshot, outputNone:
		default:
			return nil, fmt.Errorf("unknown output %q", name)
		}
		if !slices.Contains(outputs, name) {
			outputs = append(outputs, name)
		}
	}
	if slices.Contains(outputs, outputNone) {
		if len(outputs) > 1 {
			return nil, errors.New("output \"none\" cannot be combined with other outputs")
		}
		return nil, nil
	}
	return outputs, nil
}

func validateOptions(opts *Options) (settings, error) {
	var errs []error
	nonNegative := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	nonNegative("width", opts.Width)
	nonNegative("height", opts.Height)
	nonNegative("frames", opts.Frames)
	nonNegative("max-timeouts", opts.MaxTimeouts)
	nonNegative("snapshot-width", opts.SnapshotWidth)
	nonNegative("snapshot-interval-ms", opts.SnapshotIntervalMs)
	nonNegative("terminal-fps", opts.TerminalFps)
	if opts.Buffers < 1 {
		errs = append(errs, fmt.Errorf("buffers must be at least 1, got %d", opts.Buffers))
	}
	if opts.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("timeout-seconds must be at least 1, got %d", opts.TimeoutSeconds))
	}
	if opts.JpegQuality < 1 || opts.JpegQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg-quality must be within 1-100, got %d", opts.JpegQuality))
	}

	outputs, err := parseOutputs(opts.Outputs)
	if err != nil {
		errs = append(errs, err)
	}
	if slices.Contains(outputs, outputSnapshot) && opts.SnapshotPath == "" {
		errs = append(errs, errors.New("snapshot output needs snapshot-path"))
	}

	if len(errs) > 0 {
		return settings{}, fmt.Errorf("invalid options: %w", errors.Join(errs...))
	}

	return settings{
		device: opts.Device,
		setup: capture.SetupOptions{
			PreferCompressed: opts.PreferCompressed,
			Width:            uint32(opts.Width),
			Height:           uint32(opts.Height),
			Buffers:          uint32(opts.Buffers),
		},
		run: capture.RunOptions{
			Frames:      opts.Frames,
			Timeout:     time.Duration(opts.TimeoutSeconds) * time.Second,
			MaxTimeouts: opts.MaxTimeouts,
		},
		outputs:          outputs,
		snapshotPath:     opts.SnapshotPath,
		snapshotWidth:    opts.SnapshotWidth,
		snapshotInterval: time.Duration(opts.SnapshotIntervalMs) * time.Millisecond,
		terminalFPS:      float64(opts.TerminalFps),
		previewAddr:      opts.Port,
		previewTitle:     opts.Title,
		jpegQuality:      opts.JpegQuality,
	}, nil
}

// app runs one capture session with its renderers.
type app struct {
	opts   *Options
	bus    *events.Bus
	logger *slog.Logger
}

func newApp(opts *Options, bus *events.Bus, logger *slog.Logger) *app {
	return &app{opts: opts, bus: bus, logger: logger}
}

func (a *app) run(ctx context.Context) (err error) {
	cfg, err := validateOptions(a.opts)
	if err != nil {
		return err
	}

	path, err := cmd.ResolveDevicePath(cfg.device, v4l2.GetDevicePathByID)
	if err != nil {
		return err
	}

	session, err := capture.Open(path, capture.Options{
		NonBlocking: a.opts.Nonblocking,
		Logger:      logging.GetLogger("capture"),
		Events:      a.bus,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	desc, err := session.Setup(cfg.setup)
	if err != nil {
		return err
	}
	buffers := session.LiveMappings()
	a.logger.Info("Capturing",
		"device", path,
		"width", desc.Width,
		"height", desc.Height,
		"depth", desc.BytesPerPixel*8,
		"format", desc.FourCC())

	status := func() preview.Status {
		stats := session.Stats()
		state := capture.StateIdle
		if stats.Streaming {
			state = capture.StateStreaming
		}
		return preview.Status{
			Device:      path,
			State:       state.String(),
			PixelFormat: desc.FourCC(),
			Width:       desc.Width,
			Height:      desc.Height,
			Buffers:     buffers,
			Stats:       stats,
		}
	}

	renderer, server := a.renderers(cfg, status)

	if server != nil {
		ln, listenErr := net.Listen("tcp", cfg.previewAddr)
		if listenErr != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.previewAddr, listenErr)
		}
		serveErr := make(chan error, 1)
		go func() { serveErr <- server.Serve(ln) }()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), previewShutdownTimeout)
			defer cancel()
			if stopErr := server.Stop(stopCtx); stopErr != nil {
				a.logger.Warn("Preview server shutdown failed", "error", stopErr)
			}
			if serr := <-serveErr; serr != nil {
				err = errors.Join(err, serr)
			}
		}()
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	a.watchRemoval(ctx, path, cancel)

	notify(a.logger, daemon.SdNotifyReady)
	defer notify(a.logger, daemon.SdNotifyStopping)

	if err := session.Run(ctx, renderer, cfg.run); err != nil {
		return err
	}
	if cause := context.Cause(ctx); errors.Is(cause, errDeviceRemoved) {
		return cause
	}
	return nil
}

// watchRemoval cancels ctx with errDeviceRemoved when the kernel reports the
// capture node gone. Without uevent access the run continues unwatched.
func (a *app) watchRemoval(ctx context.Context, path string, cancel context.CancelCauseFunc) {
	mon, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		a.logger.Debug("Hotplug monitoring unavailable", "error", err)
		return
	}

	uevents := make(chan hotplug.Event, 8)
	go func() {
		defer mon.Close()
		if runErr := mon.Run(ctx, uevents); runErr != nil && !errors.Is(runErr, context.Canceled) {
			a.logger.Debug("Hotplug monitor stopped", "error", runErr)
		}
	}()
	go func() {
		for ev := range uevents {
			if ev.Removes(path) {
				a.logger.Warn("Capture device removed", "device", path)
				cancel(fmt.Errorf("%w: %s", errDeviceRemoved, path))
				return
			}
		}
	}()
}

// renderers builds the configured outputs. The preview server is returned
// separately so the caller can serve it.
func (a *app) renderers(cfg settings, status func() preview.Status) (capture.Renderer, *preview.Server) {
	var multi render.Multi
	var server *preview.Server

	if cfg.enabled(outputTerminal) {
		if !render.IsTerminal(os.Stdout) {
			a.logger.Warn("Terminal output selected but stdout is not a terminal")
		}
		multi = append(multi, render.NewTerminal(os.Stdout, render.TerminalOptions{FPS: cfg.terminalFPS}))
	}
	if cfg.enabled(outputSnapshot) {
		multi = append(multi, render.NewSnapshot(cfg.snapshotPath, render.SnapshotOptions{
			Width:    cfg.snapshotWidth,
			Interval: cfg.snapshotInterval,
		}))
		a.logger.Info("Writing snapshots", "path", cfg.snapshotPath)
	}
	if cfg.enabled(outputPreview) {
		hub := preview.NewHub(cfg.jpegQuality)
		server = preview.NewServer(preview.Options{
			Title:          cfg.previewTitle,
			Hub:            hub,
			Events:         a.bus,
			Status:         status,
			MetricsHandler: metrics.Handler(),
		})
		multi = append(multi, hub)
	}

	switch len(multi) {
	case 0:
		return &render.Discard{}, server
	case 1:
		return multi[0], server
	default:
		return multi, server
	}
}

// notify reports lifecycle changes to systemd when running as a notify
// service. Outside systemd it does nothing.
func notify(logger *slog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Debug("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		logger.Debug("Notified systemd", "state", state)
	}
}
