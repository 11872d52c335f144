// Package httpproto implements the incremental HTTP/1.1 request parser
// and response encoder (spec.md §4.3, §4.8). The scanning style —
// find a separator byte, slice between cursors, advance the cursor —
// is carried over from the teacher's server/protocol/parser.go; this
// version works over a resizable connection buffer instead of a
// fixed-size zero-copy arena, and folds in the framing/validation
// rules (chunked transfer, Host uniqueness, header token checks) the
// spec requires beyond the teacher's proof-of-concept parser.
package httpproto

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// MaxHeaderBytes bounds the header block per spec.md §4.3.
const MaxHeaderBytes = 8 << 10

// ErrIncomplete signals the parser needs more bytes; it is never a
// protocol error.
var ErrIncomplete = errors.New("httpproto: incomplete request")

// StatusError carries the HTTP status a malformed request must be
// answered with and whether the connection must be closed afterward.
type StatusError struct {
	Status int
	Close  bool
	Reason string
}

func (e *StatusError) Error() string { return e.Reason }

func statusErr(status int, reason string) *StatusError {
	return &StatusError{Status: status, Close: true, Reason: reason}
}

// Request is a fully-parsed request line + header block. Body bytes
// are attached separately once framing has been resolved and the
// (possibly chunked) body has been read to completion — see BodyMode.
type Request struct {
	Method  string
	Target  string
	Path    string
	Query   string
	Version string // "HTTP/1.1" or "HTTP/1.0"
	Headers HeaderList
	Host    string

	// BodyMode describes how the body is framed on the wire.
	BodyMode      BodyMode
	ContentLength int64 // valid when BodyMode == BodyContentLength
}

// BodyMode enumerates the three framings spec.md §4.3 allows.
type BodyMode int

const (
	BodyNone BodyMode = iota
	BodyContentLength
	BodyChunked
)

// ParseHead scans buf for a complete request line + header block
// (terminated by CRLFCRLF). It returns the parsed Request and the
// number of bytes consumed. If the terminator has not appeared yet
// and buf is within the 8 KiB header limit, it returns ErrIncomplete.
// Exceeding the limit without a terminator is a *StatusError{400}.
func ParseHead(buf []byte) (*Request, int, error) {
	term := bytes.Index(buf, []byte("\r\n\r\n"))
	if term == -1 {
		if len(buf) > MaxHeaderBytes {
			return nil, 0, statusErr(400, "header block exceeds 8KiB limit")
		}
		return nil, 0, ErrIncomplete
	}
	if term > MaxHeaderBytes {
		return nil, 0, statusErr(400, "header block exceeds 8KiB limit")
	}

	head := buf[:term]
	consumed := term + 4

	lineEnd := bytes.Index(head, []byte("\r\n"))
	if lineEnd == -1 {
		lineEnd = len(head)
	}
	req, err := parseRequestLine(head[:lineEnd])
	if err != nil {
		return nil, 0, err
	}

	rest := head[lineEnd:]
	if len(rest) >= 2 {
		rest = rest[2:]
	}
	if err := parseHeaderBlock(rest, req); err != nil {
		return nil, 0, err
	}

	if err := resolveFraming(req); err != nil {
		return nil, 0, err
	}

	return req, consumed, nil
}

func parseRequestLine(line []byte) (*Request, error) {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return nil, statusErr(400, "malformed request line")
	}
	method := string(parts[0])
	target := string(parts[1])
	version := string(parts[2])

	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return nil, statusErr(400, "unsupported HTTP version")
	}
	if method == "" || target == "" {
		return nil, statusErr(400, "malformed request line")
	}

	path, query, _ := strings.Cut(target, "?")

	return &Request{
		Method:  method,
		Target:  target,
		Path:    path,
		Query:   query,
		Version: version,
	}, nil
}

func parseHeaderBlock(raw []byte, req *Request) error {
	if len(raw) == 0 {
		return finalizeHost(req)
	}
	lines := bytes.Split(raw, []byte("\r\n"))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return statusErr(400, "malformed header line")
		}
		name := string(bytes.TrimSpace(line[:colon]))
		value := string(bytes.TrimSpace(line[colon+1:]))
		if !ValidName(name) {
			return statusErr(400, "invalid header field name")
		}
		if !ValidValue(value) {
			return statusErr(400, "invalid header field value")
		}
		req.Headers.Add(name, value)
	}
	return finalizeHost(req)
}

func finalizeHost(req *Request) error {
	if req.Headers.Count("Host") > 1 {
		return statusErr(400, "duplicate Host header")
	}
	host, ok := req.Headers.Get("Host")
	if !ok {
		if req.Version == "HTTP/1.1" {
			return statusErr(400, "missing Host header")
		}
		return nil
	}
	// strip :port
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	req.Host = host
	return nil
}

func resolveFraming(req *Request) error {
	if te, ok := req.Headers.Get("Transfer-Encoding"); ok {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return statusErr(400, "unsupported Transfer-Encoding")
		}
		req.BodyMode = BodyChunked
		return nil
	}
	if cl, ok := req.Headers.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			return statusErr(400, "malformed Content-Length")
		}
		req.BodyMode = BodyContentLength
		req.ContentLength = n
		return nil
	}
	req.BodyMode = BodyNone
	return nil
}

// KeepAlive resolves the default/override keep-alive decision for the
// request, per spec.md §4.8. It does not consider the response's own
// Connection header — callers OR this with any error-driven close.
func (r *Request) KeepAlive() bool {
	conn, ok := r.Headers.Get("Connection")
	if ok {
		if HasToken(conn, "close") {
			return false
		}
		if HasToken(conn, "keep-alive") {
			return true
		}
	}
	return r.Version == "HTTP/1.1"
}
