package httpserver

import "github.com/s00inx/webserv/internal/reactor"

// finishResponse is reached once a response's status line, headers
// and full body have been handed to the socket. It either closes the
// connection or rearms it to read the next keep-alive request.
func (s *Server) finishResponse(c *conn) {
	if c.closeAfterWrite || !c.keepAlive {
		s.closeConn(c)
		return
	}
	pending := c.readBuf
	c.resetForNextRequest(s.cfg.IdleTimeout)
	c.readBuf = pending
	s.reactor.Modify(c.fd, reactor.Readable)
	if len(c.readBuf) > 0 {
		s.advance(c)
	}
}
