package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/s00inx/webserv/internal/config"
)

func TestDeleteRemovesFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "gone.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	route := &config.Route{Prefix: "/files", Root: dir}

	res := Delete(nil, route, "/files/gone.txt")
	if res.Status != 200 {
		t.Fatalf("Status = %d, want 200", res.Status)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, stat err = %v", err)
	}
}

func TestDeleteMissingFile404(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Prefix: "/files", Root: dir}
	res := Delete(nil, route, "/files/missing.txt")
	if res.Status != 404 {
		t.Fatalf("Status = %d, want 404", res.Status)
	}
}

func TestDeleteTraversalRejected(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Prefix: "/files", Root: dir}
	res := Delete(nil, route, "/files/../../etc/passwd")
	if res.Status != 403 {
		t.Fatalf("Status = %d, want 403", res.Status)
	}
}

func TestDeleteDotfileRejected(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Prefix: "/files", Root: dir}
	res := Delete(nil, route, "/files/.secret")
	if res.Status != 403 {
		t.Fatalf("Status = %d, want 403", res.Status)
	}
}
