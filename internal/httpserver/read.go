package httpserver

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/s00inx/webserv/internal/httpproto"
)

const readChunkSize = 16 << 10

// handleReadable drains everything currently available on c's socket,
// then advances the connection's parse state as far as the buffered
// bytes allow. Grounded on the teacher's server/protocol/parser.go
// incremental scan-and-shift style, generalized to the request/body
// framing spec.md §4.3 requires.
func (s *Server) handleReadable(c *conn) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			c.readBuf = append(c.readBuf, buf[:n]...)
			c.idleDeadline = time.Now().Add(s.cfg.IdleTimeout)
		}
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			s.closeConn(c)
			return
		}
		if n == 0 {
			// peer closed its write side; whatever is already
			// buffered is still processed below, but no more will
			// ever arrive.
			break
		}
	}
	s.advance(c)
}

// advance runs the connection's state machine forward as far as the
// currently buffered bytes permit, without blocking.
func (s *Server) advance(c *conn) {
	for {
		switch c.phase {
		case PhaseReadingHeaders:
			if !s.tryParseHeaders(c) {
				return
			}
		case PhaseReadingBody:
			if !s.tryReadBody(c) {
				return
			}
		case PhaseDispatching:
			if c.cgiProc != nil {
				// a CGI child is already running this request; the
				// client fd's read interest is parked for the
				// duration (see startCGI), but guard here too in case
				// bytes were already buffered before that took effect.
				return
			}
			s.dispatch(c)
			return
		default:
			return
		}
	}
}

func (s *Server) tryParseHeaders(c *conn) bool {
	req, consumed, err := httpproto.ParseHead(c.readBuf)
	if err == httpproto.ErrIncomplete {
		return false
	}
	if err != nil {
		s.respondParseError(c, err)
		return false
	}

	c.req = req
	c.readBuf = c.readBuf[consumed:]

	res := s.router.Resolve(c.endpoint, req.Host, req.Path)
	c.vhost = res.VHost
	c.route = res.Route

	switch req.BodyMode {
	case httpproto.BodyNone:
		c.phase = PhaseDispatching
		return true
	case httpproto.BodyContentLength:
		if c.vhost != nil && req.ContentLength > c.vhost.BodySizeLimit {
			s.respondError(c, 413, true)
			return false
		}
		if req.ContentLength == 0 {
			c.phase = PhaseDispatching
			return true
		}
		c.phase = PhaseReadingBody
		return true
	case httpproto.BodyChunked:
		c.chunkDecoder = &httpproto.ChunkedDecoder{}
		c.phase = PhaseReadingBody
		return true
	}
	return true
}

func (s *Server) tryReadBody(c *conn) bool {
	req := c.req
	switch req.BodyMode {
	case httpproto.BodyContentLength:
		need := int(req.ContentLength) - len(c.bodyBuf)
		if need <= 0 {
			c.phase = PhaseDispatching
			return true
		}
		take := need
		if take > len(c.readBuf) {
			take = len(c.readBuf)
		}
		c.bodyBuf = append(c.bodyBuf, c.readBuf[:take]...)
		c.readBuf = c.readBuf[take:]
		if len(c.bodyBuf) >= int(req.ContentLength) {
			c.phase = PhaseDispatching
			return true
		}
		return false

	case httpproto.BodyChunked:
		out, consumed, err := c.chunkDecoder.Feed(c.readBuf, c.bodyBuf)
		c.bodyBuf = out
		c.readBuf = c.readBuf[consumed:]
		if err != nil {
			s.respondError(c, 400, true)
			return false
		}
		if c.vhost != nil && int64(len(c.bodyBuf)) > c.vhost.BodySizeLimit {
			s.respondError(c, 413, true)
			return false
		}
		if c.chunkDecoder.Done {
			c.phase = PhaseDispatching
			return true
		}
		return false
	}
	c.phase = PhaseDispatching
	return true
}

func (s *Server) respondParseError(c *conn, err error) {
	if se, ok := err.(*httpproto.StatusError); ok {
		s.log.Debug("parse error", zap.Int("status", se.Status), zap.String("reason", se.Reason))
		s.respondError(c, se.Status, se.Close)
		return
	}
	s.respondError(c, 400, true)
}
