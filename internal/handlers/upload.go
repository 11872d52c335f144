package handlers

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/s00inx/webserv/internal/config"
)

// Upload implements spec.md §4.5's POST upload contract: multipart
// form-data (one saved file per part whose Content-Disposition
// carries filename=, per SPEC_FULL.md's Open Question decision) or,
// otherwise, a raw body named by X-Filename. Both paths funnel through
// atomicSave: write to a temp name in route.root, then rename.
func Upload(vh *config.VirtualHost, route *config.Route, contentType string, body []byte, headers headerGetter) Result {
	ct, params, err := mime.ParseMediaType(contentType)
	if err == nil && strings.EqualFold(ct, "multipart/form-data") {
		return uploadMultipart(vh, route, params["boundary"], body)
	}
	return uploadRaw(vh, route, headers, body)
}

// headerGetter is the minimal view Upload needs of the request's
// header block, so this package does not need to import httpproto
// beyond what result.go already pulls in.
type headerGetter interface {
	Get(name string) (string, bool)
}

func uploadRaw(vh *config.VirtualHost, route *config.Route, headers headerGetter, body []byte) Result {
	name, ok := headers.Get("X-Filename")
	if !ok {
		return ErrorResult(vh, 400)
	}
	safe, ok := sanitizeFilename(name)
	if !ok {
		return ErrorResult(vh, 400)
	}
	if err := atomicSave(route.Root, safe, body); err != nil {
		return ErrorResult(vh, 500)
	}
	return plain(200, "uploaded: "+safe+"\n")
}

func uploadMultipart(vh *config.VirtualHost, route *config.Route, boundary string, body []byte) Result {
	if boundary == "" {
		return ErrorResult(vh, 400)
	}
	reader := multipart.NewReader(bytes.NewReader(body), boundary)

	saved := 0
	var lastErr error
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ErrorResult(vh, 400)
		}
		filename := part.FileName()
		if filename == "" {
			part.Close()
			continue // plain form field, not a file part; ignored per SPEC_FULL.md
		}
		safe, ok := sanitizeFilename(filename)
		if !ok {
			part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if err := atomicSave(route.Root, safe, data); err != nil {
			lastErr = err
			continue
		}
		saved++
	}

	if saved == 0 {
		if lastErr != nil {
			return ErrorResult(vh, 500)
		}
		return ErrorResult(vh, 400)
	}
	return plain(200, "uploaded\n")
}

// atomicSave writes data to a temp file in dir then renames it into
// place, unlinking the temp file on any failure (spec.md §4.5
// atomicity requirement).
func atomicSave(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
