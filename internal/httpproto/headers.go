package httpproto

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Header is a single wire header as a raw key/value pair. Names keep
// their original casing (for CGI env var derivation and echoing) but
// all lookups are case-insensitive per spec.md §4.3.
type Header struct {
	Name  string
	Value string
}

// HeaderList is the ordered header block of a request or response.
type HeaderList []Header

// Get returns the first value for name (case-insensitive), if any.
func (h HeaderList) Get(name string) (string, bool) {
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			return kv.Value, true
		}
	}
	return "", false
}

// Count returns how many headers (case-insensitive) share name, used
// to reject a duplicate Host (spec.md §4.3).
func (h HeaderList) Count(name string) int {
	n := 0
	for _, kv := range h {
		if strings.EqualFold(kv.Name, name) {
			n++
		}
	}
	return n
}

// Add appends a header, preserving declaration order.
func (h *HeaderList) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// ValidName reports whether name is a legal RFC 7230 field-name.
func ValidName(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}

// ValidValue reports whether value is a legal RFC 7230 field-value.
func ValidValue(value string) bool {
	return httpguts.ValidHeaderFieldValue(value)
}

// HasToken reports whether value (a comma-separated header value such
// as Connection or Transfer-Encoding) contains token, case-insensitively.
func HasToken(value, token string) bool {
	return httpguts.HeaderValuesContainsToken([]string{value}, token)
}
