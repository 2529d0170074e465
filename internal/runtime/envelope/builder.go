package envelope

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/drblury/auditflow/internal/runtime/ids"
	"github.com/drblury/auditflow/internal/runtime/jsoncodec"
)

// RequestContext holds the audit relevant facts of one inbound request.
type RequestContext struct {
	ContextPath string
	Headers     map[string]string
	Query       map[string]string
	PathParams  map[string]string
	Body        string
}

// ResponseContext holds the audit relevant facts of one response.
type ResponseContext struct {
	ContextPath string
	Headers     map[string]string
	Body        string
}

// Builder turns request and response contexts into envelopes. It is
// stateless apart from its settings and safe for concurrent use.
type Builder struct {
	userIDHeader            string
	clientCorrelationHeader string

	now   func() time.Time
	newID func() string
}

// NewBuilder returns a builder reading the acting user and the client
// correlation id from the named headers.
func NewBuilder(userIDHeader, clientCorrelationHeader string) *Builder {
	return &Builder{
		userIDHeader:            userIDHeader,
		clientCorrelationHeader: clientCorrelationHeader,
		now:                     func() time.Time { return time.Now().UTC() },
		newID:                   ids.NewEnvelopeID,
	}
}

// FromRequest builds the request side envelope. Body fields are merged
// first, then query parameters, then path parameters.
func (b *Builder) FromRequest(rc RequestContext) *Envelope {
	payload := make(map[string]any, len(rc.Query)+len(rc.PathParams))
	mergeBody(payload, rc.Body)
	for k, v := range rc.Query {
		payload[k] = v
	}
	for k, v := range rc.PathParams {
		payload[k] = v
	}
	return b.build(rc.ContextPath, rc.Headers, payload)
}

// FromResponse builds the response side envelope.
func (b *Builder) FromResponse(rc ResponseContext) *Envelope {
	payload := make(map[string]any)
	mergeBody(payload, rc.Body)
	return b.build(rc.ContextPath, rc.Headers, payload)
}

func mergeBody(payload map[string]any, body string) {
	if body == "" {
		return
	}
	if fields, ok := jsoncodec.DecodeObject(body); ok {
		for k, v := range fields {
			if k == MetadataKey {
				continue
			}
			payload[k] = v
		}
		return
	}
	payload[PayloadKey] = body
}

func (b *Builder) build(contextPath string, headers map[string]string, payload map[string]any) *Envelope {
	now := b.now()
	origin := strings.TrimPrefix(contextPath, "/")

	content := ContentMetadata{
		ID:        b.newID(),
		Name:      operationName(lookup(headers, "Content-Type")),
		CreatedAt: now,
	}
	if client := lookup(headers, b.clientCorrelationHeader); client != "" {
		content.Correlation = &Correlation{Client: client}
	}
	if user := lookup(headers, b.userIDHeader); user != "" {
		content.Context = &UserContext{User: user}
	}

	return &Envelope{
		Metadata: EventMetadata{
			ID:        b.newID(),
			Name:      EventName,
			CreatedAt: now,
		},
		Content:   Content{Metadata: content, Payload: payload},
		Origin:    origin,
		Component: origin + componentSuffix,
		Timestamp: now,
	}
}

func operationName(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return unknownOperation
	}
	return operationPrefix + contentType
}

// lookup finds a header case-insensitively.
func lookup(headers map[string]string, name string) string {
	if name == "" {
		return ""
	}
	if v, ok := headers[name]; ok {
		return v
	}
	if v, ok := headers[http.CanonicalHeaderKey(name)]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// HeaderMap flattens h keeping the last value of repeated headers.
func HeaderMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		out[name] = values[len(values)-1]
	}
	return out
}

// QueryMap flattens q joining repeated parameters with a comma.
func QueryMap(q url.Values) map[string]string {
	out := make(map[string]string, len(q))
	for name, values := range q {
		out[name] = strings.Join(values, ",")
	}
	return out
}
