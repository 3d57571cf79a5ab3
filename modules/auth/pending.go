package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

type retriedKey struct{}

// WithRetried marks requests made with ctx as already retried; a 401 on such a
// request is returned as is.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func IsRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// PendingRequest is a replayable capture of an outbound request.
type PendingRequest struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Retried bool

	orig *http.Request
}

// Capture buffers req's body so the request can be sent again. The original
// body is consumed and closed.
func Capture(req *http.Request) (*PendingRequest, error) {
	p := &PendingRequest{
		Method:  req.Method,
		URL:     req.URL.String(),
		Header:  req.Header.Clone(),
		Retried: IsRetried(req.Context()),
		orig:    req,
	}
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		p.Body = body
	}
	return p, nil
}

// Request builds a fresh *http.Request for one dispatch. Each call returns an
// independent request with its own body reader.
func (p *PendingRequest) Request(ctx context.Context) *http.Request {
	if p.Retried {
		ctx = WithRetried(ctx)
	}
	req := p.orig.Clone(ctx)
	req.Header = p.Header.Clone()
	if p.Body == nil {
		req.Body = nil
		req.GetBody = nil
		if p.orig.Body == http.NoBody {
			req.Body = http.NoBody
		}
		return req
	}
	body := p.Body
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.ContentLength = int64(len(body))
	return req
}

// CallerAuthorized reports whether the request arrived with its own
// Authorization header rather than relying on the stored token.
func (p *PendingRequest) CallerAuthorized() bool {
	return p.Header.Get("Authorization") != ""
}

func bearerToken(h http.Header) string {
	const prefix = "Bearer "
	v := h.Get("Authorization")
	if len(v) > len(prefix) && v[:len(prefix)] == prefix {
		return v[len(prefix):]
	}
	return ""
}
