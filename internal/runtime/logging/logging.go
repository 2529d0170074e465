// Package logging adapts application loggers to the ServiceLogger contract
// shared by the audit middleware, the publisher and the broker clients.
// Credential-like fields are masked by every adapter before they reach the
// underlying logger, so broker URLs and config dumps can be logged as is.
package logging

import (
	"maps"
	"strings"
)

// LogFields represents structured logging key/value pairs.
type LogFields map[string]any

// ServiceLogger is the logging contract of the audit pipeline. It maps onto
// Watermill's LoggerAdapter so the brokers log through the same sink.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

const maskedValue = "***"

// Substrings of field keys whose values never reach a log line.
var sensitiveKeyParts = []string{"password", "secret", "token", "credential", "authorization"}

// Masked returns f with the values of credential-like keys replaced. f itself
// is not modified; it is returned unchanged when nothing needs masking.
func (f LogFields) Masked() LogFields {
	var out LogFields
	for key := range f {
		if !IsSensitiveKey(key) {
			continue
		}
		if out == nil {
			out = maps.Clone(f)
		}
		out[key] = maskedValue
	}
	if out == nil {
		return f
	}
	return out
}

// IsSensitiveKey reports whether values logged under key are masked.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}
