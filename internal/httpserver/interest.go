package httpserver

import "github.com/s00inx/webserv/internal/reactor"

// writeInterest reports what a client socket should be registered
// for. While a response is queued we only care about writability;
// once fully drained and kept alive we go back to reading.
func (s *Server) writeInterest(c *conn) reactor.Interest {
	if c.hasPendingWrite() || c.bodySource != nil || c.cgiProc != nil {
		return reactor.Writable
	}
	return reactor.Readable
}
