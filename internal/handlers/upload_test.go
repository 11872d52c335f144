package handlers

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/s00inx/webserv/internal/config"
	"github.com/s00inx/webserv/internal/httpproto"
)

func TestUploadRawSavesFile(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Root: dir}
	headers := httpproto.HeaderList{}
	headers.Add("X-Filename", "note.txt")

	res := Upload(nil, route, "text/plain", []byte("hello"), headers)
	if res.Status != 200 {
		t.Fatalf("Status = %d, want 200", res.Status)
	}
	data, err := os.ReadFile(filepath.Join(dir, "note.txt"))
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("saved content = %q", data)
	}
}

func TestUploadRawMissingFilenameHeader400(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Root: dir}
	res := Upload(nil, route, "text/plain", []byte("hello"), httpproto.HeaderList{})
	if res.Status != 400 {
		t.Fatalf("Status = %d, want 400", res.Status)
	}
}

func TestUploadRawUnsafeFilename400(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Root: dir}
	headers := httpproto.HeaderList{}
	headers.Add("X-Filename", "../../etc/passwd")
	res := Upload(nil, route, "text/plain", []byte("hello"), headers)
	if res.Status != 400 {
		t.Fatalf("Status = %d, want 400", res.Status)
	}
}

func buildMultipartBody(t *testing.T, files map[string]string, fields map[string]string) (body []byte, contentType string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, value := range fields {
		fw, err := w.CreateFormField(field)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(value))
	}
	for filename, content := range files {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), w.FormDataContentType()
}

func TestUploadMultipartSavesNamedFiles(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Root: dir}
	body, ct := buildMultipartBody(t, map[string]string{"a.txt": "A", "b.txt": "B"}, nil)

	res := Upload(nil, route, ct, body, httpproto.HeaderList{})
	if res.Status != 200 {
		t.Fatalf("Status = %d, want 200", res.Status)
	}
	for name, want := range map[string]string{"a.txt": "A", "b.txt": "B"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestUploadMultipartIgnoresNonFileFields(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Root: dir}
	body, ct := buildMultipartBody(t, map[string]string{"only.txt": "data"}, map[string]string{"description": "not a file"})

	res := Upload(nil, route, ct, body, httpproto.HeaderList{})
	if res.Status != 200 {
		t.Fatalf("Status = %d, want 200", res.Status)
	}
	entries, _ := os.ReadDir(dir)
	// only.txt should be saved; the plain field must not create a file.
	found := false
	for _, e := range entries {
		if e.Name() == "only.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected only.txt to be saved, entries: %v", entries)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only.txt to be the only entry, entries: %v", entries)
	}
}

func TestUploadMultipartNoFilePartsIs400(t *testing.T) {
	dir := t.TempDir()
	route := &config.Route{Root: dir}
	body, ct := buildMultipartBody(t, nil, map[string]string{"description": "no files here"})

	res := Upload(nil, route, ct, body, httpproto.HeaderList{})
	if res.Status != 400 {
		t.Fatalf("Status = %d, want 400", res.Status)
	}
}
