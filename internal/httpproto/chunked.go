package httpproto

import (
	"bytes"
	"errors"
)

// ChunkedDecoder incrementally decodes an HTTP/1.1 chunked body
// (spec.md §4.3): "hex-size CRLF data CRLF" repeated until a
// "0 CRLF CRLF" terminal chunk. Trailer headers are accepted and
// discarded. It is fed successive reads and returns how many input
// bytes it consumed and how much decoded body it produced, so callers
// can splice it into a growing connection read buffer exactly like
// the content-length path.
type ChunkedDecoder struct {
	state       chunkState
	remaining   int // bytes left in the current chunk's data
	trailerScan int // bytes of trailer already scanned without a full CRLFCRLF
	Done        bool
}

type chunkState int

const (
	stateSize chunkState = iota
	stateData
	stateDataCRLF
	stateTrailer
)

// ErrMalformedChunk is returned for any framing violation; per
// spec.md §4.3 this always closes the connection after the response.
var ErrMalformedChunk = errors.New("httpproto: malformed chunked body")

// Feed consumes as much of buf as forms complete chunk framing,
// appending decoded bytes to dst. It returns the updated dst slice,
// the number of input bytes consumed (the caller keeps the rest and
// passes it again with more data), and ErrMalformedChunk on a framing
// violation. d.Done reports whether the terminal chunk (and any
// trailer) has been fully consumed.
func (d *ChunkedDecoder) Feed(buf []byte, dst []byte) ([]byte, int, error) {
	pos := 0
	for pos < len(buf) && !d.Done {
		switch d.state {
		case stateSize:
			idx := bytes.Index(buf[pos:], []byte("\r\n"))
			if idx == -1 {
				if len(buf[pos:]) > 32 {
					return dst, pos, ErrMalformedChunk
				}
				return dst, pos, nil
			}
			line := buf[pos : pos+idx]
			// strip chunk extensions, if any
			if sc := bytes.IndexByte(line, ';'); sc >= 0 {
				line = line[:sc]
			}
			size, err := parseHexSize(line)
			if err != nil {
				return dst, pos, ErrMalformedChunk
			}
			pos += idx + 2
			if size == 0 {
				d.state = stateTrailer
				continue
			}
			d.remaining = size
			d.state = stateData

		case stateData:
			take := d.remaining
			if take > len(buf)-pos {
				take = len(buf) - pos
			}
			dst = append(dst, buf[pos:pos+take]...)
			pos += take
			d.remaining -= take
			if d.remaining == 0 {
				d.state = stateDataCRLF
			}

		case stateDataCRLF:
			if len(buf)-pos < 2 {
				return dst, pos, nil
			}
			if buf[pos] != '\r' || buf[pos+1] != '\n' {
				return dst, pos, ErrMalformedChunk
			}
			pos += 2
			d.state = stateSize

		case stateTrailer:
			// a CRLF right after the terminal chunk's size line ends
			// the body (no trailers); bytes after it are not consumed
			if len(buf)-pos >= 2 && buf[pos] == '\r' && buf[pos+1] == '\n' {
				pos += 2
				d.Done = true
				break
			}
			idx := bytes.Index(buf[pos:], []byte("\r\n\r\n"))
			if idx == -1 {
				if len(buf[pos:]) > MaxHeaderBytes {
					return dst, pos, ErrMalformedChunk
				}
				return dst, pos, nil
			}
			pos += idx + 4
			d.Done = true
		}
	}
	return dst, pos, nil
}

func parseHexSize(line []byte) (int, error) {
	if len(line) == 0 {
		return 0, ErrMalformedChunk
	}
	n := 0
	for _, c := range line {
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'a' && c <= 'f':
			v = int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int(c-'A') + 10
		default:
			return 0, ErrMalformedChunk
		}
		n = n*16 + v
		if n < 0 {
			return 0, ErrMalformedChunk
		}
	}
	return n, nil
}
