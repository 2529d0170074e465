// Package envelope builds the audit events published for each request and
// response side.
package envelope

import (
	"time"

	"github.com/drblury/auditflow/internal/runtime/jsoncodec"
)

const (
	// EventName is the fixed name of every audit event. Subscribers select on
	// it through the CPPNAME message attribute.
	EventName = "audit.events.audit-recorded"

	// MetadataKey is the reserved key of the metadata block, both at the top
	// level and inside the content.
	MetadataKey = "_metadata"

	// PayloadKey holds bodies that are not JSON objects, verbatim.
	PayloadKey = "_payload"

	operationPrefix  = "audit.http."
	unknownOperation = operationPrefix + "unknown"
	componentSuffix  = "-api"
)

// EventMetadata identifies one published event.
type EventMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Correlation carries the client supplied correlation id.
type Correlation struct {
	Client string `json:"client"`
}

// UserContext carries the acting user id.
type UserContext struct {
	User string `json:"user"`
}

// ContentMetadata is the metadata block embedded in the content object.
type ContentMetadata struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CreatedAt   time.Time    `json:"createdAt"`
	Correlation *Correlation `json:"correlation,omitempty"`
	Context     *UserContext `json:"context,omitempty"`
}

// Content is the audited payload. On the wire the payload fields and the
// _metadata block are siblings of one JSON object.
type Content struct {
	Metadata ContentMetadata
	Payload  map[string]any
}

func (c Content) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(c.Payload)+1)
	for k, v := range c.Payload {
		fields[k] = v
	}
	fields[MetadataKey] = c.Metadata
	return jsoncodec.Marshal(fields)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := jsoncodec.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields[MetadataKey]; ok {
		encoded, err := jsoncodec.Marshal(raw)
		if err != nil {
			return err
		}
		if err := jsoncodec.Unmarshal(encoded, &c.Metadata); err != nil {
			return err
		}
		delete(fields, MetadataKey)
	}
	c.Payload = fields
	return nil
}

// Envelope is the unit published to the audit topic.
type Envelope struct {
	Metadata  EventMetadata `json:"_metadata"`
	Content   Content       `json:"content"`
	Origin    string        `json:"origin"`
	Component string        `json:"component"`
	Timestamp time.Time     `json:"timestamp"`
}

// ID returns the envelope identifier, empty for a nil envelope.
func (e *Envelope) ID() string {
	if e == nil {
		return ""
	}
	return e.Metadata.ID
}

// OperationName returns the operation recorded in the content metadata.
func (e *Envelope) OperationName() string {
	if e == nil {
		return ""
	}
	return e.Content.Metadata.Name
}

// CorrelationID returns the client correlation id, empty when absent.
func (e *Envelope) CorrelationID() string {
	if e == nil || e.Content.Metadata.Correlation == nil {
		return ""
	}
	return e.Content.Metadata.Correlation.Client
}
