package ajax

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Args is the flat mapping of argument name to value extracted from a
// request. Form and query values are strings; JSON bodies contribute
// whatever the document held.
type Args map[string]any

// Lookup returns the raw value for key and whether it is present.
func (a Args) Lookup(key string) (any, bool) {
	v, ok := a[key]
	return v, ok
}

// String returns the value for key when it is a string, or "" otherwise.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// ExtractArgs flattens r into Args by the fixed transport convention:
//
//  1. POST with a Content-Type header containing the raw substring
//     "application/x-www-form-urlencoded;" (trailing semicolon included)
//     uses the parsed form body.
//  2. Any other POST treats the raw body as JSON. Bodies that do not
//     decode to an object yield empty Args; malformed JSON is not an
//     error, it degrades silently to no arguments.
//  3. GET uses the query string.
//  4. Any other method yields empty Args.
//
// The substring match in step 1 is deliberate: the convention predates
// this package and clients depend on it, including the requirement that a
// bare "application/x-www-form-urlencoded" (no parameters, so no
// semicolon) falls through to the JSON branch. When a form or query key
// repeats, the last occurrence wins.
func ExtractArgs(r *http.Request) Args {
	switch r.Method {
	case http.MethodPost:
		if strings.Contains(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded;") {
			_ = r.ParseForm()
			return valuesToArgs(r.PostForm)
		}
		return jsonToArgs(r.Body)
	case http.MethodGet:
		return valuesToArgs(r.URL.Query())
	default:
		return Args{}
	}
}

func valuesToArgs(vs url.Values) Args {
	args := make(Args, len(vs))
	for k, v := range vs {
		if len(v) == 0 {
			continue
		}
		args[k] = v[len(v)-1]
	}
	return args
}

func jsonToArgs(body io.Reader) Args {
	if body == nil {
		return Args{}
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return Args{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return Args{}
	}
	return Args(m)
}
