package helpers

import (
	"bytes"
	"encoding/json"
)

// MarshalJson encodes v without escaping <, > and &, the result ends with a newline
func MarshalJson(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(v)
	return buf.Bytes(), err
}
