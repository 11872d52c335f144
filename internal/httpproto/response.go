package httpproto

import (
	"strconv"
	"time"
)

// StatusText mirrors the teacher's server/protocol/builder.go lookup
// table but keyed by the status codes this server actually emits
// (spec.md §6): 200, 302, 400, 403, 404, 405, 413, 500, 502, 504, plus
// the handful of others handlers may reasonably need.
var StatusText = map[int]string{
	200: "OK",
	204: "No Content",
	302: "Found",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	413: "Payload Too Large",
	500: "Internal Server Error",
	502: "Bad Gateway",
	504: "Gateway Timeout",
}

// httpDateFormat is time.RFC1123 with the zone pinned to the literal
// "GMT" spec.md and RFC 7231 require; RFC1123 itself would render the
// zone abbreviation of h.Now's location ("UTC" after .UTC()), not GMT.
const httpDateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

func reasonPhrase(status int) string {
	if t, ok := StatusText[status]; ok {
		return t
	}
	return "Unknown"
}

// ResponseHead describes everything BuildHead needs to render a
// status line + header block. Body framing is exactly one of
// ContentLength (>=0) or Chunked.
type ResponseHead struct {
	Status         int
	Headers        HeaderList
	ContentLength  int64 // ignored when Chunked is true
	Chunked        bool
	KeepAlive      bool
	ServerSoftware string
	Now            time.Time
}

// BuildHead renders the status line and header block (spec.md §4.8):
// always Date, Server, a framing header, and Connection. Handler or
// CGI-supplied headers are copied through first, then the four
// mandatory ones are appended (a handler is never allowed to omit
// them via forgetting, but is allowed to have already set
// Content-Type etc.).
func BuildHead(h ResponseHead) []byte {
	buf := make([]byte, 0, 256+len(h.Headers)*32)
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(h.Status), 10)
	buf = append(buf, ' ')
	buf = append(buf, reasonPhrase(h.Status)...)
	buf = append(buf, "\r\n"...)

	for _, kv := range h.Headers {
		buf = appendHeaderLine(buf, kv.Name, kv.Value)
	}

	buf = appendHeaderLine(buf, "Date", h.Now.UTC().Format(httpDateFormat))
	software := h.ServerSoftware
	if software == "" {
		software = "webserv/1.0"
	}
	buf = appendHeaderLine(buf, "Server", software)

	if h.Chunked {
		buf = appendHeaderLine(buf, "Transfer-Encoding", "chunked")
	} else {
		buf = strconv.AppendInt(append(buf, "Content-Length: "...), h.ContentLength, 10)
		buf = append(buf, "\r\n"...)
	}

	if h.KeepAlive {
		buf = appendHeaderLine(buf, "Connection", "keep-alive")
	} else {
		buf = appendHeaderLine(buf, "Connection", "close")
	}

	buf = append(buf, "\r\n"...)
	return buf
}

func appendHeaderLine(buf []byte, name, value string) []byte {
	buf = append(buf, name...)
	buf = append(buf, ':', ' ')
	buf = append(buf, value...)
	buf = append(buf, "\r\n"...)
	return buf
}

// EncodeChunk wraps data as one chunked-transfer-encoding frame
// (spec.md §4.6 PipingBody). An empty data slice with last=true
// produces the terminal "0\r\n\r\n" chunk.
func EncodeChunk(dst []byte, data []byte, last bool) []byte {
	if last {
		return append(dst, "0\r\n\r\n"...)
	}
	if len(data) == 0 {
		return dst
	}
	dst = strconv.AppendInt(dst, int64(len(data)), 16)
	dst = append(dst, "\r\n"...)
	dst = append(dst, data...)
	dst = append(dst, "\r\n"...)
	return dst
}
