// Package logging provides structured logging with per-module log levels.
//
// Every module gets its own *slog.Logger from GetLogger. Levels live in
// slog.LevelVar values, so Initialize and UpdateLevels change them for
// loggers that were handed out earlier.
//
// Records go to stdout (text or json), to the systemd journal when journald
// is reachable, and to an in-memory RingBuffer that the preview server
// exposes at /api/logs.
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"capture": "debug"},
//	})
//	logger := logging.GetLogger("capture")
//	logger.Info("Streaming started", "device", "/dev/video0")
//
// TOML form:
//
//	[logging]
//	level = "info"
//	format = "text"
//	capture = "debug"
//
// Journal entries carry SYSLOG_IDENTIFIER=camview:
//
//	journalctl -t camview MODULE=capture
package logging
