package ajax

import (
	"encoding/json"
	"net/http"
)

// Response is the reply envelope: a success flag plus an arbitrary
// JSON-encodable payload.
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ErrorData is the conventional failure payload emitted by the dispatch
// layer: a stable machine code plus a human-readable message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success wraps data in a succeeding envelope.
func Success(data any) *Response {
	return &Response{Success: true, Data: data}
}

// Failure wraps data in a failing envelope.
func Failure(data any) *Response {
	return &Response{Success: false, Data: data}
}

// Write serializes the envelope as JSON to w with the given status code.
func (res *Response) Write(w http.ResponseWriter, status int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(res)
}
