package handlers

import "testing"

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name      string
		root      string
		remainder string
		wantPath  string
		wantOK    bool
	}{
		{"plain file", "/var/www", "/index.html", "/var/www/index.html", true},
		{"nested path", "/var/www", "/a/b/c.txt", "/var/www/a/b/c.txt", true},
		{"dot segment collapses", "/var/www", "/a/./b", "/var/www/a/b", true},
		{"parent traversal rejected", "/var/www", "/../etc/passwd", "", false},
		{"embedded traversal rejected", "/var/www", "/a/../../etc/passwd", "", false},
		{"nul byte rejected", "/var/www", "/a\x00b", "", false},
		{"empty remainder is root", "/var/www", "", "/var/www", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveTarget(tt.root, tt.remainder)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.wantPath {
				t.Errorf("path = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantOK   bool
	}{
		{"simple", "report.txt", "report.txt", true},
		{"empty rejected", "", "", false},
		{"dotfile rejected", ".bashrc", "", false},
		{"dot rejected", ".", "", false},
		{"dotdot rejected", "..", "", false},
		{"path stripped to base", "a/b/c.txt", "c.txt", true},
		{"parent segments rejected", "../../etc/passwd", "", false},
		{"backslash rejected", `a\b.txt`, "", false},
		{"nul rejected", "a\x00b", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sanitizeFilename(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (got %q)", ok, tt.wantOK, got)
			}
			if ok && got != tt.wantName {
				t.Errorf("name = %q, want %q", got, tt.wantName)
			}
		})
	}
}
