package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

// objectConfig keeps numbers as json.Number so audited payloads are
// republished without float rounding.
var objectConfig = sonic.Config{
	EscapeHTML:     true,
	SortMapKeys:    true,
	CopyString:     true,
	ValidateString: true,
	UseNumber:      true,
}.Froze()

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

// DecodeObject reports whether body is a JSON object and returns its fields.
// Arrays, scalars, null and malformed input all report false.
func DecodeObject(body string) (map[string]any, bool) {
	if body == "" {
		return nil, false
	}
	var fields map[string]any
	if err := objectConfig.UnmarshalFromString(body, &fields); err != nil {
		return nil, false
	}
	if fields == nil {
		return nil, false
	}
	return fields, true
}
