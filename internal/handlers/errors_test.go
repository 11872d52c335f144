package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/s00inx/webserv/internal/config"
)

func TestErrorResultBuiltinFallback(t *testing.T) {
	res := ErrorResult(nil, 404)
	if res.Status != 404 {
		t.Fatalf("Status = %d, want 404", res.Status)
	}
	if string(res.Body) != "Not Found\n" {
		t.Fatalf("Body = %q", res.Body)
	}
}

func TestErrorResultUnknownStatusFallback(t *testing.T) {
	res := ErrorResult(nil, 799)
	if string(res.Body) != "Error\n" {
		t.Fatalf("Body = %q, want generic fallback", res.Body)
	}
}

func TestErrorResultCustomPage(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "404.html")
	if err := os.WriteFile(pagePath, []byte("<h1>nope</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	vh := &config.VirtualHost{ErrorPages: map[int]string{404: pagePath}}

	res := ErrorResult(vh, 404)
	if string(res.Body) != "<h1>nope</h1>" {
		t.Fatalf("Body = %q", res.Body)
	}
	ct, _ := res.Headers.Get("Content-Type")
	if ct != "text/html; charset=utf-8" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestErrorResultCustomPageMissingFallsBack(t *testing.T) {
	vh := &config.VirtualHost{ErrorPages: map[int]string{404: "/nonexistent/404.html"}}
	res := ErrorResult(vh, 404)
	if string(res.Body) != "Not Found\n" {
		t.Fatalf("Body = %q, want builtin fallback", res.Body)
	}
}
