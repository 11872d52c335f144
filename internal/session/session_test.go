package session

import "testing"

func TestIDFromCookieHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		wantID string
		wantOK bool
	}{
		{"single cookie", "SID=abc123", "abc123", true},
		{"among others", "theme=dark; SID=abc123; lang=en", "abc123", true},
		{"absent", "theme=dark; lang=en", "", false},
		{"empty header", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IDFromCookieHeader(tt.header)
			if ok != tt.wantOK || got != tt.wantID {
				t.Errorf("IDFromCookieHeader(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestNewProducesDistinctHexIDs(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a == b {
		t.Fatalf("two calls to New produced the same id: %q", a)
	}
	if len(a) != 32 {
		t.Fatalf("len(id) = %d, want 32 (16 bytes hex-encoded)", len(a))
	}
}

func TestSetCookieHeaderRoundTrip(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	header := SetCookieHeader(id)
	got, ok := IDFromCookieHeader(header)
	if !ok || got != id {
		t.Fatalf("round trip failed: header=%q got=(%q,%v)", header, got, ok)
	}
}
