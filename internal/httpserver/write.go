package httpserver

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/s00inx/webserv/internal/cgi"
	"github.com/s00inx/webserv/internal/httpproto"
)

// handleWritable drains as much of c's write buffer as the socket
// will currently accept, topping the buffer back up from a static
// file or a CGI child's stdout as it drains (spec.md §5 backpressure).
func (s *Server) handleWritable(c *conn) {
	for {
		if c.hasPendingWrite() {
			n, err := unix.Write(c.fd, c.writeBuf[c.writeCursor:])
			if n > 0 {
				c.writeCursor += n
				c.idleDeadline = time.Now().Add(s.cfg.IdleTimeout)
			}
			if err != nil {
				if err == unix.EAGAIN {
					return
				}
				s.closeConn(c)
				return
			}
			if c.hasPendingWrite() {
				return // socket accepted less than we offered; wait for the next writable event
			}
			c.writeBuf = c.writeBuf[:0]
			c.writeCursor = 0
			continue
		}

		if c.bodySource != nil {
			chunk, done, err := c.bodySource.Next(writeChunkSize)
			if err != nil {
				c.bodySource.Close()
				c.bodySource = nil
				s.closeConn(c)
				return
			}
			c.queueBytes(chunk)
			if done {
				c.bodySource.Close()
				c.bodySource = nil
			}
			continue
		}

		if c.cgiProc != nil {
			if s.drainCGIIntoWriteBuf(c) {
				continue
			}
			return
		}

		s.finishResponse(c)
		return
	}
}

// drainCGIIntoWriteBuf appends whatever CGI output is ready as one
// chunked frame. It reports whether it queued anything (so the write
// loop should try to send it before waiting for the next event).
func (s *Server) drainCGIIntoWriteBuf(c *conn) bool {
	body := c.cgiProc.TakePendingBody()
	if len(body) > 0 {
		c.writeBuf = httpproto.EncodeChunk(c.writeBuf, body, false)
		s.maybeUnthrottleCGI(c)
		return true
	}
	if c.cgiProc.Phase == cgi.PhaseDone {
		c.writeBuf = httpproto.EncodeChunk(c.writeBuf, nil, true)
		s.teardownCGI(c)
		return true
	}
	return false
}
