// Package metadata holds the broker attributes sent next to each audit
// envelope. Brokers that support headers carry them natively, so consumers
// can select audit events without decoding the payload.
package metadata

import (
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	// KeyEventName is the selector attribute consumers filter on.
	KeyEventName     = "CPPNAME"
	KeyCorrelationID = "correlation_id"
	KeyContentType   = "content_type"
	KeyTraceID       = "trace_id"
	KeySpanID        = "span_id"
)

// Metadata is a set of string attributes. Methods never modify the receiver.
type Metadata map[string]string

// New builds Metadata from alternating key/value pairs. A trailing key
// without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// With returns a copy with key set. Blank values are dropped so optional
// attributes never reach the broker empty.
func (m Metadata) With(key, value string) Metadata {
	out := m.Merge(nil)
	if value != "" {
		out[key] = value
	}
	return out
}

// Merge returns a copy of m overlaid with other.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	maps.Copy(out, m)
	maps.Copy(out, other)
	return out
}

// ToWatermill converts m for a Watermill message.
func (m Metadata) ToWatermill() message.Metadata {
	out := make(message.Metadata, len(m))
	maps.Copy(out, m)
	return out
}

// Selects reports whether a received message carries eventName in its
// selector attribute.
func Selects(msg *message.Message, eventName string) bool {
	return msg != nil && msg.Metadata.Get(KeyEventName) == eventName
}
