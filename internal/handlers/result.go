// Package handlers implements the request handlers of spec.md §4.5:
// static file service, autoindex, upload (raw and multipart), delete
// and redirect. Grounded on original_source/src/handlers/*.rs for
// exact edge-case behavior (sanitize-then-rename upload semantics,
// segment-walking safe-path construction for delete) reimplemented in
// the teacher's idiom: plain functions over an explicit request
// context, no framework-level middleware chain.
package handlers

import (
	"io"
	"os"

	"github.com/s00inx/webserv/internal/httpproto"
)

// BodySource streams a response body in bounded chunks, so the
// connection's write loop can pull from it only as fast as the
// socket drains (spec.md §5 backpressure) instead of buffering an
// entire file in memory.
type BodySource interface {
	// Next returns up to max bytes of body. done is true once the
	// source is exhausted; the final call may return data and done
	// together.
	Next(max int) (chunk []byte, done bool, err error)
	Close() error
}

// Result is what a handler hands back to the connection state
// machine: a status, a header block, and a body either fully in
// memory (Body) or streamed (Source). Exactly one of Body/Source is
// meaningful; ContentLength is always sent as the Content-Length
// header, for a streamed Source as much as for an in-memory Body.
// Handlers never produce unknown-length (chunked) bodies — only the
// CGI bridge streams those.
type Result struct {
	Status        int
	Headers       httpproto.HeaderList
	Body          []byte
	Source        BodySource
	ContentLength int64
	Close         bool // force Connection: close (e.g. after an I/O error)
}

func plain(status int, body string) Result {
	h := httpproto.HeaderList{}
	h.Add("Content-Type", "text/plain; charset=utf-8")
	return Result{Status: status, Headers: h, Body: []byte(body), ContentLength: int64(len(body))}
}

func html(status int, body string) Result {
	h := httpproto.HeaderList{}
	h.Add("Content-Type", "text/html; charset=utf-8")
	return Result{Status: status, Headers: h, Body: []byte(body), ContentLength: int64(len(body))}
}

// fileBodySource streams a regular file in bounded chunks.
type fileBodySource struct {
	f *os.File
}

func newFileBodySource(f *os.File) *fileBodySource { return &fileBodySource{f: f} }

func (s *fileBodySource) Next(max int) ([]byte, bool, error) {
	buf := make([]byte, max)
	n, err := s.f.Read(buf)
	if err != nil {
		if err == io.EOF {
			return buf[:n], true, nil
		}
		return nil, true, err
	}
	return buf[:n], false, nil
}

func (s *fileBodySource) Close() error { return s.f.Close() }
