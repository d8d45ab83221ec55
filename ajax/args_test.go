package ajax

import (
	"context"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestExtractArgs(t *testing.T) {
	cases := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        Args
	}{
		{
			name:        "post form encoded with parameter",
			method:      "POST",
			target:      "/ajax/demo",
			contentType: "application/x-www-form-urlencoded; charset=UTF-8",
			body:        "a=1&b=2",
			want:        Args{"a": "1", "b": "2"},
		},
		{
			name:        "post form encoded repeated key keeps last",
			method:      "POST",
			target:      "/ajax/demo",
			contentType: "application/x-www-form-urlencoded; charset=UTF-8",
			body:        "a=1&a=2",
			want:        Args{"a": "2"},
		},
		{
			// No parameter after the media type means no semicolon, and
			// the form branch requires the semicolon. The body is not
			// JSON either, so extraction degrades to empty.
			name:        "post form encoded without semicolon falls through",
			method:      "POST",
			target:      "/ajax/demo",
			contentType: "application/x-www-form-urlencoded",
			body:        "a=1&b=2",
			want:        Args{},
		},
		{
			name:        "post json object",
			method:      "POST",
			target:      "/ajax/demo",
			contentType: "application/json",
			body:        `{"a":"1","n":2}`,
			want:        Args{"a": "1", "n": float64(2)},
		},
		{
			name:   "post json without content type",
			method: "POST",
			target: "/ajax/demo",
			body:   `{"a":"1"}`,
			want:   Args{"a": "1"},
		},
		{
			name:        "post json nested value",
			method:      "POST",
			target:      "/ajax/demo",
			contentType: "application/json",
			body:        `{"filter":{"status":"draft"}}`,
			want:        Args{"filter": map[string]any{"status": "draft"}},
		},
		{
			name:        "post malformed json degrades to empty",
			method:      "POST",
			target:      "/ajax/demo",
			contentType: "application/json",
			body:        "not-json",
			want:        Args{},
		},
		{
			name:        "post json null degrades to empty",
			method:      "POST",
			target:      "/ajax/demo",
			contentType: "application/json",
			body:        "null",
			want:        Args{},
		},
		{
			name:        "post json array degrades to empty",
			method:      "POST",
			target:      "/ajax/demo",
			contentType: "application/json",
			body:        "[1,2]",
			want:        Args{},
		},
		{
			name:   "get query",
			method: "GET",
			target: "/ajax/demo?a=1&b=2",
			want:   Args{"a": "1", "b": "2"},
		},
		{
			name:   "get query repeated key keeps last",
			method: "GET",
			target: "/ajax/demo?a=1&a=2",
			want:   Args{"a": "2"},
		},
		{
			name:   "put is empty",
			method: "PUT",
			target: "/ajax/demo",
			body:   `{"a":"1"}`,
			want:   Args{},
		},
		{
			name:   "delete is empty",
			method: "DELETE",
			target: "/ajax/demo?a=1",
			want:   Args{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body *strings.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			} else {
				body = strings.NewReader("")
			}
			r := httptest.NewRequest(tc.method, tc.target, body)
			if tc.contentType != "" {
				r.Header.Set("Content-Type", tc.contentType)
			}

			got := ExtractArgs(r)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractArgs: got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestArgsAccessors(t *testing.T) {
	args := Args{"a": "1", "n": float64(2)}

	if got := args.String("a"); got != "1" {
		t.Fatalf("String(a): got %q, want %q", got, "1")
	}
	if got := args.String("n"); got != "" {
		t.Fatalf("String(n) on non-string: got %q, want empty", got)
	}
	if got := args.String("missing"); got != "" {
		t.Fatalf("String(missing): got %q, want empty", got)
	}
	if v, ok := args.Lookup("n"); !ok || v != float64(2) {
		t.Fatalf("Lookup(n): got %v, %v", v, ok)
	}
	if _, ok := args.Lookup("missing"); ok {
		t.Fatalf("Lookup(missing): want ok=false")
	}
}

func TestNewRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ajax/ping?msg=hi", nil)
	req := NewRequest("ping", r)

	if req.Action != "ping" {
		t.Fatalf("Action: got %q, want %q", req.Action, "ping")
	}
	if got := req.Args.String("msg"); got != "hi" {
		t.Fatalf("Args[msg]: got %q, want %q", got, "hi")
	}
	if req.HTTP != r {
		t.Fatalf("HTTP: want the original request")
	}
}

func TestFuncAdapter(t *testing.T) {
	called := false
	f := Func{
		Name:   "ping",
		Handle: "ping-nonce",
		Fn: func(ctx context.Context, r *Request) (*Response, error) {
			called = true
			return Success("pong"), nil
		},
	}

	if got := f.Action(); got != "ping" {
		t.Fatalf("Action: got %q, want %q", got, "ping")
	}
	if got := f.NonceHandle(); got != "ping-nonce" {
		t.Fatalf("NonceHandle: got %q, want %q", got, "ping-nonce")
	}
	if got := f.NonceField(); got != DefaultNonceField {
		t.Fatalf("NonceField default: got %q, want %q", got, DefaultNonceField)
	}
	if got := (Func{Field: "custom"}).NonceField(); got != "custom" {
		t.Fatalf("NonceField override: got %q, want %q", got, "custom")
	}

	res, err := f.ServeAjax(context.Background(), &Request{Action: "ping"})
	if err != nil {
		t.Fatalf("ServeAjax: %v", err)
	}
	if !called {
		t.Fatalf("ServeAjax did not invoke Fn")
	}
	if !res.Success || res.Data != "pong" {
		t.Fatalf("ServeAjax response: got %+v", res)
	}
}
