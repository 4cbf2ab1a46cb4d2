package events

// Event type constants for kelindar/event.
const (
	TypeSessionState uint32 = iota + 1
	TypeFormatNegotiated
	TypeFrameCaptured
	TypeFrameSkipped
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Session states carried by SessionStateEvent.
const (
	StateOpened    = "opened"
	StateStreaming = "streaming"
	StateIdle      = "idle"
	StateClosed    = "closed"
)

// SessionStateEvent reports a capture session lifecycle transition.
type SessionStateEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	State      string `json:"state" example:"streaming" doc:"Session state: opened, streaming, idle, closed"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateEvent.
func (e SessionStateEvent) Type() uint32 { return TypeSessionState }

// FormatNegotiatedEvent reports the format the driver accepted.
type FormatNegotiatedEvent struct {
	DevicePath  string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	PixelFormat string `json:"pixel_format" example:"MJPG" doc:"FourCC of the negotiated format"`
	Width       uint32 `json:"width" example:"640" doc:"Frame width in pixels"`
	Height      uint32 `json:"height" example:"480" doc:"Frame height in pixels"`
	Buffers     int    `json:"buffers" example:"4" doc:"Number of mapped buffers"`
	Timestamp   string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FormatNegotiatedEvent.
func (e FormatNegotiatedEvent) Type() uint32 { return TypeFormatNegotiated }

// FrameCapturedEvent is published after a frame was rendered and requeued.
type FrameCapturedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Sequence   uint32 `json:"sequence" example:"42" doc:"Driver frame sequence number"`
	Index      uint32 `json:"index" example:"1" doc:"Buffer index"`
	Bytes      int    `json:"bytes" example:"61440" doc:"Payload size in bytes"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameCapturedEvent.
func (e FrameCapturedEvent) Type() uint32 { return TypeFrameCaptured }

// Skip reasons carried by FrameSkippedEvent.
const (
	SkipNotReady = "not_ready"
	SkipIOError  = "io_error"
	SkipTimeout  = "timeout"
)

// FrameSkippedEvent is published when a wait or dequeue produced no frame.
type FrameSkippedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Reason     string `json:"reason" example:"not_ready" doc:"Why no frame was produced: not_ready, io_error, timeout"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameSkippedEvent.
func (e FrameSkippedEvent) Type() uint32 { return TypeFrameSkipped }
