package ajax

import "net/http"

// Request is the transport-neutral view of one dispatched ajax call.
type Request struct {
	// Action is the resolved action name.
	Action string

	// Args holds the flattened request arguments (see ExtractArgs).
	Args Args

	// HTTP is the underlying request, for handlers that need headers,
	// cookies or the raw body. Nil when the call is synthetic (tests,
	// in-process dispatch).
	HTTP *http.Request

	// Writer is the response writer for handlers that reply themselves
	// and return nil, nil from ServeAjax. Nil when the call is synthetic.
	Writer http.ResponseWriter
}

// NewRequest builds a Request for action from r, extracting arguments by
// the ExtractArgs convention.
func NewRequest(action string, r *http.Request) *Request {
	return &Request{Action: action, Args: ExtractArgs(r), HTTP: r}
}
