package nonce

import "context"

type subjectKey struct{}

// WithSubject returns a context carrying the caller identity that tokens
// are bound to. Implementations supporting subject binding mix it into the
// token on Issue and require the same subject on Verify; a request
// verified under a different subject fails with ErrInvalid.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject set by WithSubject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey{}).(string)
	return s, ok
}
