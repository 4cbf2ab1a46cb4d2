// Package preview serves the live capture over HTTP: an MJPEG stream for
// browsers, an ASCII stream for terminals, the latest frame as a JPEG, and
// a small JSON API with status, logs and events.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AlexxIT/go2rtc/pkg/ascii"
	"github.com/AlexxIT/go2rtc/pkg/mjpeg"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/version"
	"github.com/smazurov/camview/ui"
)

// Options configure a preview server.
type Options struct {
	Title          string
	Hub            *Hub
	Events         *events.Bus
	Status         func() Status // optional; called per request
	MetricsHandler http.Handler  // optional Prometheus handler
}

// Server is the preview HTTP server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	hub        *Hub
	eventBus   *events.Bus
	status     func() Status
	title      string
	started    time.Time
	logger     *slog.Logger
}

// NewServer creates a preview server with Huma v2 on Go native routing.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("camview preview", version.String())
	config.Info.Description = "Live preview and status of a V4L2 capture session"
	config.Servers = []*huma.Server{}
	api := humago.New(mux, config)

	title := opts.Title
	if title == "" {
		title = "camview"
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(0)
	}
	status := opts.Status
	if status == nil {
		status = func() Status { return Status{State: "unknown"} }
	}

	s := &Server{
		api:      api,
		mux:      mux,
		hub:      hub,
		eventBus: opts.Events,
		status:   status,
		title:    title,
		started:  time.Now(),
		logger:   logging.GetLogger("preview"),
	}
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /stream.mjpeg", s.handleStream)
	mux.HandleFunc("GET /stream.ascii", s.handleStream)
	mux.HandleFunc("GET /frame.jpeg", s.handleFrame)

	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called. It returns nil after Stop.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Preview server listening", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop disconnects viewers and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping preview server")
	s.hub.Close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ui.Render(w, ui.Page{Title: s.title, Events: s.eventBus != nil}); err != nil {
		s.logger.Warn("Failed to render index", "error", err)
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	data, updated := s.hub.Latest()
	if data == nil {
		http.Error(w, "no frame captured yet", http.StatusServiceUnavailable)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "image/jpeg")
	h.Set("Cache-Control", "no-cache")
	h.Set("Last-Modified", updated.UTC().Format(http.TimeFormat))
	_, _ = w.Write(data)
}

// handleStream serves /stream.mjpeg and /stream.ascii. Both writers take
// one JPEG per Write and flush it to the client.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	frames, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	h := w.Header()
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "close")
	h.Set("Pragma", "no-cache")

	var wr interface{ Write([]byte) (int, error) }
	if r.URL.Path == "/stream.mjpeg" {
		wr = mjpeg.NewWriter(w)
	} else {
		query := r.URL.Query()
		wr = ascii.NewWriter(w, query.Get("color"), query.Get("back"), query.Get("text"))
	}

	s.logger.Debug("Viewer connected", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "viewers", s.hub.Viewers())
	defer s.logger.Debug("Viewer disconnected", "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if latest, _ := s.hub.Latest(); latest != nil {
		if _, err := wr.Write(latest); err != nil {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if _, err := wr.Write(frame); err != nil {
				return
			}
		}
	}
}
