package model

import (
	"bytes"
	"encoding/json"
)

// FlexString is a scalar that the backend may send as a string, a number, a
// boolean or null. Objects and arrays are kept as their compact JSON text.
type FlexString string

// String returns the text form.
func (f FlexString) String() string {
	return string(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case data[0] == '{' || data[0] == '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*f = FlexString(buf.String())
	default:
		*f = FlexString(data)
	}
	return nil
}
