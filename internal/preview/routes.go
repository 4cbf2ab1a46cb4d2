package preview

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/version"
)

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check preview server health",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthData{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Status",
		Description: "Capture session state, negotiated format and counters",
		Tags:        []string{"capture"},
	}, func(ctx context.Context, input *struct{}) (*StatusResponse, error) {
		st := s.status()
		st.Viewers = s.hub.Viewers()
		st.Uptime = time.Since(s.started).Truncate(time.Second).String()
		st.Version = version.Get()
		return &StatusResponse{Body: st}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Logs",
		Description: "Most recent log records from the in-memory buffer",
		Tags:        []string{"logs"},
	}, func(ctx context.Context, input *LogsInput) (*LogsResponse, error) {
		entries := logging.GetBuffer().ReadLast(input.Limit)
		logs := make([]LogEntry, 0, len(entries))
		for _, e := range entries {
			logs = append(logs, LogEntry{
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		}
		return &LogsResponse{Body: LogsData{Logs: logs, Count: len(logs)}}, nil
	})

	if s.eventBus != nil {
		s.registerSSERoutes()
	}
}

const sseBufferSize = 32

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time session state, format and frame events",
		Tags:        []string{"events"},
	}, events.SSEMessageTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		stream := events.NewStream(s.eventBus, sseBufferSize)
		defer func() {
			stream.Close()
			if n := stream.Dropped(); n > 0 {
				s.logger.Debug("SSE client fell behind", "dropped", n)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-stream.Events():
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
