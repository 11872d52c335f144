package handlers

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/s00inx/webserv/internal/config"
)

// StaticGet implements spec.md §4.5's static GET path: resolve,
// traversal-guard, directory-vs-file handling (default file,
// autoindex, or 403), then stream a regular file through a bounded
// BodySource.
func StaticGet(vh *config.VirtualHost, route *config.Route, requestPath string) Result {
	remainder := strings.TrimPrefix(requestPath, route.Prefix)
	target, ok := resolveTarget(route.Root, remainder)
	if !ok {
		return ErrorResult(vh, 403)
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsPermission(err) {
			return ErrorResult(vh, 403)
		}
		return ErrorResult(vh, 404)
	}

	if info.IsDir() {
		return serveDirectory(vh, route, target, requestPath)
	}
	return serveFile(vh, target)
}

func serveDirectory(vh *config.VirtualHost, route *config.Route, dir, requestPath string) Result {
	if route.DefaultFile != "" {
		dfPath := path.Join(dir, route.DefaultFile)
		if info, err := os.Stat(dfPath); err == nil && info.Mode().IsRegular() {
			return serveFile(vh, dfPath)
		}
	}
	if route.Autoindex {
		return autoindex(vh, dir, requestPath)
	}
	return ErrorResult(vh, 403)
}

func serveFile(vh *config.VirtualHost, target string) Result {
	f, err := os.Open(target)
	if err != nil {
		if os.IsPermission(err) {
			return ErrorResult(vh, 403)
		}
		return ErrorResult(vh, 404)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return ErrorResult(vh, 500)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return ErrorResult(vh, 403)
	}

	h := headerList("Content-Type", contentTypeByExt(target))
	return Result{
		Status:        200,
		Headers:       h,
		Source:        newFileBodySource(f),
		ContentLength: info.Size(),
	}
}

type dirEntryInfo struct {
	name  string
	isDir bool
}

// autoindex implements spec.md §4.5: directories first then files,
// each alphabetically case-insensitive, links relative to the request
// path, with a parent link unless the request path is "/".
func autoindex(vh *config.VirtualHost, dir, requestPath string) Result {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ErrorResult(vh, 403)
	}

	items := make([]dirEntryInfo, 0, len(entries))
	for _, e := range entries {
		items = append(items, dirEntryInfo{name: e.Name(), isDir: e.IsDir()})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].isDir != items[j].isDir {
			return items[i].isDir
		}
		return strings.ToLower(items[i].name) < strings.ToLower(items[j].name)
	})

	base := requestPath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><title>Index of %s</title></head><body>", htmlEscape(requestPath))
	fmt.Fprintf(&b, "<h1>Index of %s</h1><ul>", htmlEscape(requestPath))
	if requestPath != "/" && requestPath != "" {
		parent := path.Dir(strings.TrimSuffix(requestPath, "/"))
		if !strings.HasSuffix(parent, "/") {
			parent += "/"
		}
		fmt.Fprintf(&b, `<li><a href="%s">..</a></li>`, htmlEscape(parent))
	}
	for _, it := range items {
		name := it.name
		if it.isDir {
			name += "/"
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, htmlEscape(base+name), htmlEscape(name))
	}
	b.WriteString("</ul></body></html>")

	return html(200, b.String())
}

func htmlEscape(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(s)
}
