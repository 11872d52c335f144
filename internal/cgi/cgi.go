// Package cgi implements the CGI bridge of spec.md §4.6: it forks an
// interpreter, wires stdin/stdout/stderr into the reactor as raw
// non-blocking file descriptors (bypassing the Go runtime's own
// netpoller, exactly like internal/reactor bypasses it for sockets),
// streams the request body to the child, and incrementally parses the
// CGI response head out of stdout as it arrives.
//
// Process spawning itself is grounded on original_source/src/handlers/cgi.rs
// (interpreter chosen by extension, environment built from the
// request, working directory set to the script's directory) but the
// non-blocking pipe plumbing replaces the original's short-lived,
// per-request epoll instance with descriptors registered on the
// server's single long-lived reactor, per spec.md §4.6's lifecycle
// state machine and §9's "connection owns its CgiProcess" design note.
package cgi

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Phase is the CgiProcess lifecycle state machine of spec.md §4.6.
type Phase int

const (
	PhaseSpawned Phase = iota
	PhaseStreamingIn
	PhaseStreamingOut
	PhasePipingBody
	PhaseReaping
	PhaseDone
)

// Head is the parsed CGI response head (spec.md §4.6 StreamingOut).
type Head struct {
	Status      int
	Reason      string
	Headers     [][2]string
	ContentType string
}

// Process is one running CGI child, owned by exactly one Connection
// (spec.md §9 — no global child table; closing the connection closes
// the child).
type Process struct {
	Pid      int
	StdinFd  int // -1 once closed (no body, or fully streamed)
	StdoutFd int
	StderrFd int
	Deadline time.Time
	Phase    Phase

	cmd *exec.Cmd

	stdinBody   []byte
	stdinCursor int

	stdoutBuf  []byte
	headParsed bool
	Head       Head
	pendingOut []byte // decoded body bytes not yet flushed to the wire

	exitCode int
	waitErr  error
}

// Spec is everything Spawn needs to build the CGI environment and
// invoke the interpreter (spec.md §4.6).
type Spec struct {
	Interpreter    string
	ScriptPath     string
	Method         string
	ScriptName     string
	PathInfo       string
	QueryString    string
	ContentLength  int64 // -1 when there is no body
	ContentType    string
	Headers        [][2]string // incoming HTTP headers, name/value
	ServerProtocol string
	ServerSoftware string
	Body           []byte
	Deadline       time.Time
}

// BuildEnv renders the CGI/1.1 environment subset of spec.md §4.6.
func BuildEnv(s Spec) []string {
	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=" + s.ServerProtocol,
		"SERVER_SOFTWARE=" + s.ServerSoftware,
		"REQUEST_METHOD=" + s.Method,
		"SCRIPT_NAME=" + s.ScriptName,
		"PATH_INFO=" + s.PathInfo,
		"QUERY_STRING=" + s.QueryString,
	}
	if s.ContentLength >= 0 {
		env = append(env, "CONTENT_LENGTH="+strconv.FormatInt(s.ContentLength, 10))
	}
	if s.ContentType != "" {
		env = append(env, "CONTENT_TYPE="+s.ContentType)
	}
	for _, kv := range s.Headers {
		name := strings.ToUpper(strings.ReplaceAll(kv[0], "-", "_"))
		env = append(env, "HTTP_"+name+"="+kv[1])
	}
	return env
}

// pipe2 creates one pipe via unix.Pipe2 and returns its two raw,
// unwrapped file descriptors. Unlike os.Pipe, the returned ints are
// not attached to any *os.File, so nothing runs a GC finalizer against
// them behind the reactor's back (spec.md §9 — every fd the reactor
// tracks is closed exactly when the code that owns it decides to,
// never at an arbitrary later collection).
func pipe2() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], 0); err != nil {
		return -1, -1, fmt.Errorf("cgi: pipe2: %w", err)
	}
	return fds[0], fds[1], nil
}

func closeFds(fds ...int) {
	for _, fd := range fds {
		if fd >= 0 {
			unix.Close(fd)
		}
	}
}

// Spawn starts the interpreter against the script and wires its three
// pipes as raw, non-blocking descriptors. It does not block on the
// child's output — StreamingIn/StreamingOut/PipingBody are driven by
// the caller's reactor loop via WriteStdin/ReadStdout.
func Spawn(s Spec) (*Process, error) {
	dir := filepath.Dir(s.ScriptPath)

	// One pipe per stream; "R"/"W" name the read/write ends, not
	// which side of the fork owns them (that varies per stream).
	inR, inW, err := pipe2() // inR: child's stdin: parent writes via inW
	if err != nil {
		return nil, err
	}
	outR, outW, err := pipe2() // outW: child's stdout: parent reads via outR
	if err != nil {
		closeFds(inR, inW)
		return nil, err
	}
	errR, errW, err := pipe2() // errW: child's stderr: parent reads via errR
	if err != nil {
		closeFds(inR, inW, outR, outW)
		return nil, err
	}

	// Wrap only the child-facing ends in *os.File: exec.Cmd needs
	// *os.File to hand the descriptor to the child directly (as
	// opposed to pumping a generic io.Reader/Writer through an extra
	// internal pipe and goroutine). These wrappers' lifetime ends
	// synchronously below via Close, so their finalizers never race
	// the reactor.
	stdinFile := os.NewFile(uintptr(inR), "cgi-stdin")
	stdoutFile := os.NewFile(uintptr(outW), "cgi-stdout")
	stderrFile := os.NewFile(uintptr(errW), "cgi-stderr")

	cmd := exec.Command(s.Interpreter, s.ScriptPath)
	cmd.Dir = dir
	cmd.Env = BuildEnv(s)
	cmd.Stdin = stdinFile
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile

	if err := cmd.Start(); err != nil {
		stdinFile.Close()
		stdoutFile.Close()
		stderrFile.Close()
		closeFds(inW, outR, errR)
		return nil, fmt.Errorf("cgi: spawn: %w", err)
	}

	// Close the parent's copies of the child's ends (spec.md §4.6
	// Spawned: "close all three in the parent end").
	stdinFile.Close()
	stdoutFile.Close()
	stderrFile.Close()

	stdinFd := inW
	stdoutFd := outR
	stderrFd := errR

	unix.SetNonblock(stdinFd, true)
	unix.SetNonblock(stdoutFd, true)
	unix.SetNonblock(stderrFd, true)

	p := &Process{
		Pid:      cmd.Process.Pid,
		StdinFd:  stdinFd,
		StdoutFd: stdoutFd,
		StderrFd: stderrFd,
		Deadline: s.Deadline,
		Phase:    PhaseSpawned,
		cmd:      cmd,
		stdinBody: func() []byte {
			if len(s.Body) == 0 {
				return nil
			}
			return s.Body
		}(),
	}
	if len(p.stdinBody) == 0 {
		unix.Close(p.StdinFd)
		p.StdinFd = -1
		p.Phase = PhaseStreamingOut
	} else {
		p.Phase = PhaseStreamingIn
	}
	return p, nil
}

// WriteStdin pushes up to chunkSize bytes of the buffered request
// body to the child's stdin. It closes stdin and advances the phase
// once the whole body has been written (spec.md §4.6 StreamingIn).
func (p *Process) WriteStdin(chunkSize int) error {
	if p.StdinFd < 0 {
		return nil
	}
	end := p.stdinCursor + chunkSize
	if end > len(p.stdinBody) {
		end = len(p.stdinBody)
	}
	if end > p.stdinCursor {
		n, err := unix.Write(p.StdinFd, p.stdinBody[p.stdinCursor:end])
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			unix.Close(p.StdinFd)
			p.StdinFd = -1
			p.Phase = PhaseStreamingOut
			return fmt.Errorf("cgi: write stdin: %w", err)
		}
		p.stdinCursor += n
	}
	if p.stdinCursor >= len(p.stdinBody) {
		unix.Close(p.StdinFd)
		p.StdinFd = -1
		p.Phase = PhaseStreamingOut
	}
	return nil
}

// ReadStdout drains everything currently available on the child's
// stdout, feeding it into head parsing or the piping-body buffer.
// It returns true once the CGI header terminator has newly been
// found on this call (the caller can then commit the response head).
func (p *Process) ReadStdout() (headJustParsed bool, eof bool, err error) {
	buf := make([]byte, 64*1024)
	for {
		n, rerr := unix.Read(p.StdoutFd, buf)
		if n > 0 {
			if p.headParsed {
				p.pendingOut = append(p.pendingOut, buf[:n]...)
			} else {
				p.stdoutBuf = append(p.stdoutBuf, buf[:n]...)
			}
		}
		if rerr != nil {
			if rerr == unix.EAGAIN {
				break
			}
			return p.tryParseHead(), false, fmt.Errorf("cgi: read stdout: %w", rerr)
		}
		if n == 0 {
			eof = true
			break
		}
	}
	headJustParsed = p.tryParseHead()
	return headJustParsed, eof, nil
}

func (p *Process) tryParseHead() bool {
	if p.headParsed {
		return false
	}
	idx, sepLen := findHeadTerminator(p.stdoutBuf)
	if idx == -1 {
		return false
	}
	head := p.stdoutBuf[:idx]
	body := p.stdoutBuf[idx+sepLen:]
	p.Head = parseHead(head)
	p.pendingOut = append(p.pendingOut, body...)
	p.stdoutBuf = nil
	p.headParsed = true
	p.Phase = PhasePipingBody
	return true
}

func findHeadTerminator(buf []byte) (idx, sepLen int) {
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i != -1 {
		return i, 4
	}
	if i := bytes.Index(buf, []byte("\n\n")); i != -1 {
		return i, 2
	}
	return -1, 0
}

func parseHead(raw []byte) Head {
	h := Head{Status: 200, Reason: "OK", ContentType: ""}
	lines := bytes.Split(raw, []byte("\n"))
	for _, line := range lines {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		key := strings.TrimSpace(string(line[:colon]))
		val := strings.TrimSpace(string(line[colon+1:]))
		switch strings.ToLower(key) {
		case "status":
			code, reason, ok := strings.Cut(val, " ")
			if n, err := strconv.Atoi(strings.TrimSpace(code)); err == nil {
				h.Status = n
				h.Reason = strings.TrimSpace(reason)
			}
			_ = ok
		case "location":
			h.Headers = append(h.Headers, [2]string{"Location", val})
			if strings.HasPrefix(val, "/") {
				h.Status = 302
			}
		case "content-type":
			h.ContentType = val
		case "content-length", "transfer-encoding":
			// the wire response is always re-framed as chunked
			// (spec.md §4.6 step 4); a script-supplied framing header
			// here would conflict with the Transfer-Encoding: chunked
			// BuildHead always emits and desync the connection.
		default:
			h.Headers = append(h.Headers, [2]string{key, val})
		}
	}
	if h.ContentType == "" {
		h.ContentType = "text/plain"
	}
	return h
}

// HeadParsed reports whether the CGI response header terminator has
// been seen yet — the dividing line between "no head, exit is a spawn
// failure" and "head committed, exit ends the body normally" in
// spec.md §4.6 Reaping.
func (p *Process) HeadParsed() bool { return p.headParsed }

// PendingLen reports how many decoded body bytes are currently
// buffered awaiting TakePendingBody, so the caller can throttle
// reading further stdout when the client isn't draining fast enough.
func (p *Process) PendingLen() int { return len(p.pendingOut) }

// TakePendingBody returns and clears any decoded body bytes
// accumulated since the last call, for the caller to frame as chunks.
func (p *Process) TakePendingBody() []byte {
	out := p.pendingOut
	p.pendingOut = nil
	return out
}

// DrainStderr discards whatever is currently available on stderr
// (spec.md §4.6: "stderr is drained and discarded").
func (p *Process) DrainStderr() {
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(p.StderrFd, buf)
		if n <= 0 || err != nil {
			return
		}
	}
}

// TryReap performs a non-blocking wait for the child (spec.md §4.6
// Reaping). exited is true once the child has been collected.
func (p *Process) TryReap() (exited bool, err error) {
	if p.Phase != PhaseDone {
		p.Phase = PhaseReaping
	}
	var ws unix.WaitStatus
	pid, err := unix.Wait4(p.Pid, &ws, unix.WNOHANG, nil)
	if err != nil {
		if err == unix.ECHILD {
			return true, nil
		}
		return false, fmt.Errorf("cgi: wait4: %w", err)
	}
	if pid == 0 {
		return false, nil
	}
	p.exitCode = ws.ExitStatus()
	p.Phase = PhaseDone
	return true, nil
}

// ExitCode returns the child's exit status once TryReap has reported
// it exited.
func (p *Process) ExitCode() int { return p.exitCode }

// Kill sends SIGKILL to the child (spec.md §4.6 Timeout).
func (p *Process) Kill() error {
	return unix.Kill(p.Pid, unix.SIGKILL)
}

// Close releases every fd still owned by this process. Safe to call
// more than once.
func (p *Process) Close() {
	if p.StdinFd >= 0 {
		unix.Close(p.StdinFd)
		p.StdinFd = -1
	}
	if p.StdoutFd >= 0 {
		unix.Close(p.StdoutFd)
		p.StdoutFd = -1
	}
	if p.StderrFd >= 0 {
		unix.Close(p.StderrFd)
		p.StderrFd = -1
	}
}
