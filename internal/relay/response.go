package relay

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Response is the JSON document returned by one API call. Transport and
// parsing failures are represented by a synthetic {"error", "status": false}
// document so callers only ever deal with JSON.
type Response struct {
	raw []byte
}

// NewResponse wraps a JSON document.
func NewResponse(raw []byte) Response {
	return Response{raw: raw}
}

// ErrorResponse builds the uniform failure document.
func ErrorResponse(message string) Response {
	raw, _ := json.Marshal(struct {
		Error  string `json:"error"`
		Status bool   `json:"status"`
	}{Error: message, Status: false})
	return Response{raw: raw}
}

// Raw returns the document bytes.
func (r Response) Raw() []byte {
	return r.raw
}

// Get reads a field with gjson path syntax.
func (r Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Indented returns the document pretty printed for display.
func (r Response) Indented() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.raw, "", "  "); err != nil {
		return string(r.raw)
	}
	return buf.String()
}

// Error returns the value of a truthy top level "error" key, or "" when the
// response does not report an error.
func (r Response) Error() string {
	value := r.Get("error")
	if !Truthy(value) {
		return ""
	}
	return Format(value, "")
}

// Format renders a JSON value the way the dashboard prints it: booleans as
// True/False, null as None, strings unquoted, everything else as raw JSON.
// A missing value yields placeholder.
func Format(value gjson.Result, placeholder string) string {
	if !value.Exists() {
		return placeholder
	}
	switch value.Type {
	case gjson.Null:
		return "None"
	case gjson.True:
		return "True"
	case gjson.False:
		return "False"
	case gjson.String:
		return value.Str
	default:
		return value.Raw
	}
}

// Truthy follows the truthiness rules the API payloads are written against:
// null, false, 0, "" and empty containers are false.
func Truthy(value gjson.Result) bool {
	switch value.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return value.Num != 0
	case gjson.String:
		return value.Str != ""
	case gjson.JSON:
		empty := true
		value.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return !empty
	default:
		return false
	}
}
