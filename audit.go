package boardauth

import (
	"io"

	"github.com/MrEthical07/boardauth/internal/audit"
)

// AuditEvent is one security-relevant outcome emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events. Emit runs on the dispatcher goroutine,
// never on the request path.
type AuditSink = audit.Sink

type (
	AuditSinkFunc  = audit.SinkFunc
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
