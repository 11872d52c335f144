package httpserver

import (
	"time"

	"go.uber.org/zap"

	"github.com/s00inx/webserv/internal/cgi"
	"github.com/s00inx/webserv/internal/handlers"
	"github.com/s00inx/webserv/internal/httpproto"
	"github.com/s00inx/webserv/internal/reactor"
	"github.com/s00inx/webserv/internal/session"
)

// dispatch runs once a request's headers and (if any) body have been
// fully buffered. It resolves method gating, redirects, CGI and the
// static handlers, per spec.md §4.5.
func (s *Server) dispatch(c *conn) {
	req := c.req
	route := c.route
	vh := c.vhost

	if route == nil {
		s.respondError(c, 404, false)
		return
	}
	if !route.AllowsMethod(req.Method) {
		s.respondMethodNotAllowed(c)
		return
	}
	if route.Redirect != "" {
		s.respondResult(c, handlers.Redirect(route.Redirect), true)
		return
	}
	if route.CGIInterpreter != "" {
		s.startCGI(c)
		return
	}

	switch req.Method {
	case "GET":
		s.respondResult(c, handlers.StaticGet(vh, route, req.Path), true)
	case "POST":
		contentType, _ := req.Headers.Get("Content-Type")
		s.respondResult(c, handlers.Upload(vh, route, contentType, c.bodyBuf, req.Headers), true)
	case "DELETE":
		s.respondResult(c, handlers.Delete(vh, route, req.Path), true)
	default:
		s.respondMethodNotAllowed(c)
	}
}

func (s *Server) respondMethodNotAllowed(c *conn) {
	res := handlers.ErrorResult(c.vhost, 405)
	res.Headers.Add("Allow", c.route.AllowHeader())
	s.respondResult(c, res, true)
}

// mustClose reports the statuses spec.md §7's error table marks as
// always closing the connection, regardless of what the request asked
// for: an I/O failure (500) or a failed upstream (502/504) leaves too
// little confidence in the connection's state to reuse it.
func mustClose(status int) bool {
	switch status {
	case 500, 502, 504:
		return true
	default:
		return false
	}
}

// respondResult queues a handler Result as the connection's response,
// stamping in a session cookie when the request carried none
// (spec.md §4.7).
func (s *Server) respondResult(c *conn, res handlers.Result, wantKeepAlive bool) {
	s.applySessionCookie(c, &res)
	keepAlive := wantKeepAlive && c.req.KeepAlive() && !res.Close && !mustClose(res.Status)
	s.queueResult(c, res, keepAlive)
}

func (s *Server) respondError(c *conn, status int, forceClose bool) {
	res := handlers.ErrorResult(c.vhost, status)
	keepAlive := !forceClose && !mustClose(status)
	if c.req != nil {
		keepAlive = keepAlive && c.req.KeepAlive()
	}
	s.applySessionCookie(c, &res)
	s.queueResult(c, res, keepAlive)
}

func (s *Server) applySessionCookie(c *conn, res *handlers.Result) {
	if c.req == nil {
		return
	}
	cookie, _ := c.req.Headers.Get("Cookie")
	if _, ok := session.IDFromCookieHeader(cookie); ok {
		return
	}
	id, err := session.New()
	if err != nil {
		return
	}
	c.sessionID = id
	res.Headers.Add("Set-Cookie", session.SetCookieHeader(id))
}

// queueResult renders res's status line and headers, then arranges
// for its body to be streamed or copied into the write buffer.
func (s *Server) queueResult(c *conn, res handlers.Result, keepAlive bool) {
	head := httpproto.ResponseHead{
		Status:         res.Status,
		Headers:        res.Headers,
		ContentLength:  res.ContentLength,
		KeepAlive:      keepAlive,
		ServerSoftware: s.cfg.ServerSoftware,
		Now:            time.Now(),
	}
	c.queueBytes(httpproto.BuildHead(head))
	if res.Source != nil {
		c.bodySource = res.Source
	} else {
		c.queueBytes(res.Body)
	}
	c.keepAlive = keepAlive
	c.closeAfterWrite = !keepAlive
	c.phase = PhaseWritingResponse
	s.reactor.Modify(c.fd, s.writeInterest(c))
}

// startCGI spawns the route's interpreter against the resolved script
// and wires its pipes into the reactor (spec.md §4.6).
func (s *Server) startCGI(c *conn) {
	req := c.req
	remainder := req.Path
	if len(remainder) >= len(c.route.Prefix) {
		remainder = remainder[len(c.route.Prefix):]
	}
	scriptPath, ok := resolveScriptPath(c.route.Root, remainder)
	if !ok {
		s.respondError(c, 404, false)
		return
	}

	contentLength := int64(-1)
	contentType := ""
	if req.BodyMode != httpproto.BodyNone {
		contentLength = int64(len(c.bodyBuf))
		contentType, _ = req.Headers.Get("Content-Type")
	}

	spec := cgi.Spec{
		Interpreter:    c.route.CGIInterpreter,
		ScriptPath:     scriptPath,
		Method:         req.Method,
		ScriptName:     c.route.Prefix,
		PathInfo:       remainder,
		QueryString:    req.Query,
		ContentLength:  contentLength,
		ContentType:    contentType,
		Headers:        headerPairs(req.Headers),
		ServerProtocol: req.Version,
		ServerSoftware: s.cfg.ServerSoftware,
		Body:           c.bodyBuf,
		Deadline:       time.Now().Add(s.cfg.CGITimeout),
	}

	proc, err := cgi.Spawn(spec)
	if err != nil {
		s.log.Warn("cgi spawn failed", zap.Error(err))
		s.respondError(c, 502, true)
		return
	}

	c.cgiProc = proc
	c.phase = PhaseDispatching // remains "dispatching" until the CGI head arrives
	if proc.StdinFd >= 0 {
		s.reactor.Register(proc.StdinFd, reactor.Writable)
		s.cgiFDs[proc.StdinFd] = cgiFDOwner{c: c, kind: cgiFDStdin}
	}
	s.reactor.Register(proc.StdoutFd, reactor.Readable)
	s.cgiFDs[proc.StdoutFd] = cgiFDOwner{c: c, kind: cgiFDStdout}
	s.reactor.Register(proc.StderrFd, reactor.Readable)
	s.cgiFDs[proc.StderrFd] = cgiFDOwner{c: c, kind: cgiFDStderr}

	// Park the client fd's read interest for the duration of the CGI
	// child: nothing on this connection is dispatchable again until
	// the child's head arrives, and leaving it Readable would let a
	// pipelined follow-up request re-enter dispatch and spawn a
	// second child on top of this one (spec.md §3/§8 single-in-flight
	// invariant). handleCGIStdoutReadable re-arms it as Writable (not
	// Readable) each time the child's stdout delivers output.
	s.reactor.Modify(c.fd, 0)
}

func headerPairs(h httpproto.HeaderList) [][2]string {
	out := make([][2]string, 0, len(h))
	for _, kv := range h {
		out = append(out, [2]string{kv.Name, kv.Value})
	}
	return out
}
