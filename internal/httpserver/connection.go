package httpserver

import (
	"time"

	"github.com/s00inx/webserv/internal/cgi"
	"github.com/s00inx/webserv/internal/config"
	"github.com/s00inx/webserv/internal/handlers"
	"github.com/s00inx/webserv/internal/httpproto"
)

// Phase is the per-connection state machine of spec.md §4.2.
type Phase int

const (
	PhaseReadingHeaders Phase = iota
	PhaseReadingBody
	PhaseDispatching
	PhaseWritingResponse
	PhaseDraining
	PhaseClosing
)

// writeChunkSize bounds how much of a streamed body (a file or CGI
// output) is pulled into the write buffer per iteration, so a slow
// client never forces the whole body into memory at once (spec.md §5).
const writeChunkSize = 64 << 10

// cgiBackpressureLimit caps how much unread CGI stdout output is kept
// buffered in memory before the CGI's stdout fd is temporarily taken
// out of the reactor's interest set.
const cgiBackpressureLimit = 256 << 10

// conn is one accepted, in-flight TCP connection. It is owned by
// exactly the single reactor goroutine that drives Server.Run — no
// field here is ever touched from another goroutine.
type conn struct {
	fd       int
	endpoint config.ListenerEndpoint
	remote   string

	phase Phase

	readBuf []byte // bytes read but not yet consumed by the parser

	req          *httpproto.Request
	bodyBuf      []byte
	chunkDecoder *httpproto.ChunkedDecoder

	vhost *config.VirtualHost
	route *config.Route

	writeBuf    []byte
	writeCursor int

	bodySource handlers.BodySource // static file streaming
	cgiProc    *cgi.Process        // non-nil while a CGI child owns this response
	cgiThrottled bool

	keepAlive       bool
	closeAfterWrite bool

	idleDeadline time.Time

	sessionID string // non-empty once a Set-Cookie has been queued this request
}

func newConn(fd int, endpoint config.ListenerEndpoint, remote string, idleTimeout time.Duration) *conn {
	return &conn{
		fd:           fd,
		endpoint:     endpoint,
		remote:       remote,
		phase:        PhaseReadingHeaders,
		idleDeadline: time.Now().Add(idleTimeout),
	}
}

// resetForNextRequest returns the connection to a clean state to read
// the next pipelined/keep-alive request, retaining any bytes already
// read past the previous request's boundary.
func (c *conn) resetForNextRequest(idleTimeout time.Duration) {
	c.phase = PhaseReadingHeaders
	c.req = nil
	c.bodyBuf = nil
	c.chunkDecoder = nil
	c.vhost = nil
	c.route = nil
	c.writeBuf = c.writeBuf[:0]
	c.writeCursor = 0
	c.bodySource = nil
	c.cgiProc = nil
	c.cgiThrottled = false
	c.closeAfterWrite = false
	c.sessionID = ""
	c.idleDeadline = time.Now().Add(idleTimeout)
}

func (c *conn) hasPendingWrite() bool {
	return len(c.writeBuf) > c.writeCursor
}

func (c *conn) queueBytes(b []byte) {
	c.writeBuf = append(c.writeBuf, b...)
}
