package preview

import (
	"github.com/smazurov/camview/internal/capture"
	"github.com/smazurov/camview/internal/version"
)

// Status describes the running capture session.
type Status struct {
	Device      string        `json:"device" example:"/dev/video0" doc:"Capture device node"`
	State       string        `json:"state" example:"streaming" doc:"Session state"`
	PixelFormat string        `json:"pixel_format" example:"MJPG" doc:"Negotiated pixel format"`
	Width       uint32        `json:"width" example:"1280" doc:"Frame width in pixels"`
	Height      uint32        `json:"height" example:"720" doc:"Frame height in pixels"`
	Buffers     int           `json:"buffers" example:"4" doc:"Mapped driver buffers"`
	Stats       capture.Stats `json:"stats" doc:"Session counters"`
	Viewers     int           `json:"viewers" example:"1" doc:"Connected preview viewers"`
	Uptime      string        `json:"uptime" example:"1m30s" doc:"Time since the preview server started"`
	Version     version.Info  `json:"version" doc:"Build information"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Body Status
}

// LogEntry is one buffered log record.
type LogEntry struct {
	Timestamp  string         `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Record time"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"capture" doc:"Emitting module"`
	Message    string         `json:"message" example:"Streaming started" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// LogsInput selects how many recent records to return.
type LogsInput struct {
	Limit int `query:"limit" default:"100" minimum:"0" maximum:"500" doc:"Number of most recent records; 0 returns all"`
}

// LogsData is the body of GET /api/logs.
type LogsData struct {
	Logs  []LogEntry `json:"logs" doc:"Buffered log records, oldest first"`
	Count int        `json:"count" example:"100" doc:"Number of records returned"`
}

// LogsResponse wraps LogsData.
type LogsResponse struct {
	Body LogsData
}

// HealthData is the body of GET /api/health.
type HealthData struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}
