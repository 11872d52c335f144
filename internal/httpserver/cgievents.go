package httpserver

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/s00inx/webserv/internal/cgi"
	"github.com/s00inx/webserv/internal/handlers"
	"github.com/s00inx/webserv/internal/httpproto"
	"github.com/s00inx/webserv/internal/reactor"
)

func (s *Server) handleCGIEvent(owner cgiFDOwner, ev reactor.Event) {
	c := owner.c
	if c.cgiProc == nil {
		return
	}
	switch owner.kind {
	case cgiFDStdin:
		s.handleCGIStdinWritable(c)
	case cgiFDStdout:
		s.handleCGIStdoutReadable(c)
	case cgiFDStderr:
		s.handleCGIStderrReadable(c)
	}
	_ = ev
}

func (s *Server) handleCGIStdinWritable(c *conn) {
	fd := c.cgiProc.StdinFd
	if err := c.cgiProc.WriteStdin(writeChunkSize); err != nil {
		s.log.Warn("cgi stdin write failed")
	}
	if c.cgiProc.StdinFd < 0 {
		s.deregisterCGIFd(fd)
	}
}

func (s *Server) handleCGIStdoutReadable(c *conn) {
	headJustParsed, eof, err := c.cgiProc.ReadStdout()
	if err != nil {
		s.log.Debug("cgi stdout read error")
	}
	if headJustParsed {
		s.commitCGIHead(c)
	}
	if c.phase == PhaseWritingResponse || c.cgiProc != nil {
		s.reactor.Modify(c.fd, reactor.Writable)
	}
	if !c.cgiThrottled && c.cgiProc.PendingLen() >= cgiBackpressureLimit {
		c.cgiThrottled = true
		s.reactor.Modify(c.cgiProc.StdoutFd, 0)
	}
	if eof {
		fd := c.cgiProc.StdoutFd
		s.reactor.Deregister(fd)
		delete(s.cgiFDs, fd)
		unix.Close(fd)
		c.cgiProc.StdoutFd = -1
		s.reapCGI(c)
	}
}

func (s *Server) handleCGIStderrReadable(c *conn) {
	c.cgiProc.DrainStderr()
}

// reapCGI attempts a non-blocking wait for the child once stdout has
// hit EOF; sweepDeadlines retries this every tick until it succeeds.
// Per spec.md §4.6 Reaping, an exit before any head was ever parsed is
// a CGI failure (502); after the head has been committed, exit just
// ends the body normally.
func (s *Server) reapCGI(c *conn) {
	exited, err := c.cgiProc.TryReap()
	if err != nil {
		s.log.Warn("cgi reap failed")
	}
	if !exited {
		return
	}
	if code := c.cgiProc.ExitCode(); code != 0 {
		s.log.Warn("cgi exited non-zero", zap.Int("status", code), zap.Int("pid", c.cgiProc.Pid))
	}
	if !c.cgiProc.HeadParsed() {
		s.teardownCGI(c)
		s.respondError(c, 502, true)
		return
	}
	if c.phase == PhaseWritingResponse {
		s.reactor.Modify(c.fd, reactor.Writable)
	}
}

// commitCGIHead renders the response head once the CGI child's own
// header block has been fully parsed (spec.md §4.6 StreamingOut).
func (s *Server) commitCGIHead(c *conn) {
	h := c.cgiProc.Head
	res := handlers.Result{Status: h.Status}
	for _, kv := range h.Headers {
		// parseHead already drops these, but the wire framing here is
		// always chunked (spec.md §4.6 step 4), so never let a
		// script-supplied framing header reach BuildHead a second way.
		switch strings.ToLower(kv[0]) {
		case "content-length", "transfer-encoding":
			continue
		}
		res.Headers.Add(kv[0], kv[1])
	}
	res.Headers.Add("Content-Type", h.ContentType)
	s.applySessionCookie(c, &res)

	keepAlive := c.req.KeepAlive()
	head := httpproto.ResponseHead{
		Status:         res.Status,
		Headers:        res.Headers,
		Chunked:        true,
		KeepAlive:      keepAlive,
		ServerSoftware: s.cfg.ServerSoftware,
		Now:            time.Now(),
	}
	c.queueBytes(httpproto.BuildHead(head))
	c.keepAlive = keepAlive
	c.closeAfterWrite = !keepAlive
	c.phase = PhaseWritingResponse
}

func (s *Server) maybeUnthrottleCGI(c *conn) {
	if c.cgiProc == nil || !c.cgiThrottled {
		return
	}
	c.cgiThrottled = false
	s.reactor.Modify(c.cgiProc.StdoutFd, reactor.Readable)
}

// teardownCGI releases every fd still owned by the CGI child and
// detaches it from the connection. Called once the terminal chunk has
// been queued.
func (s *Server) teardownCGI(c *conn) {
	if c.cgiProc == nil {
		return
	}
	for _, fd := range []int{c.cgiProc.StdinFd, c.cgiProc.StdoutFd, c.cgiProc.StderrFd} {
		if fd >= 0 {
			s.reactor.Deregister(fd)
			delete(s.cgiFDs, fd)
		}
	}
	c.cgiProc.Close()
	if c.cgiProc.Phase != cgi.PhaseDone {
		c.cgiProc.Kill()
		c.cgiProc.TryReap()
	}
	c.cgiProc = nil
	// The socket idle timer was suspended for the child's lifetime
	// (sweepDeadlines); resume it fresh now that it governs again.
	c.idleDeadline = time.Now().Add(s.cfg.IdleTimeout)
}

// timeoutCGI handles a CGI wall-clock deadline expiry (spec.md §4.6
// Timeout): the child is killed, and the response is either a fresh
// 504 (head not sent yet) or an abrupt close of an in-progress
// chunked body (nothing else is honest once bytes are already on the
// wire under a 200 status).
func (s *Server) timeoutCGI(c *conn) {
	c.cgiProc.Kill()
	c.cgiProc.TryReap()
	headSent := c.phase == PhaseWritingResponse
	s.teardownCGI(c)
	if !headSent {
		s.respondError(c, 504, true)
		return
	}
	s.closeConn(c)
}

func (s *Server) deregisterCGIFd(fd int) {
	if fd < 0 {
		return
	}
	s.reactor.Deregister(fd)
	delete(s.cgiFDs, fd)
}
