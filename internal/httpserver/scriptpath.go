package httpserver

import (
	"os"
	"path"
	"strings"
)

// resolveScriptPath applies the same traversal guard as
// internal/handlers' static path resolution, then requires the target
// to be an existing regular file before a CGI child is ever spawned
// against it (spec.md §4.6).
func resolveScriptPath(root, remainder string) (string, bool) {
	if strings.Contains(remainder, "\x00") {
		return "", false
	}
	for _, seg := range strings.Split(remainder, "/") {
		if seg == ".." {
			return "", false
		}
	}
	clean := path.Clean("/" + remainder)
	target := path.Join(root, clean)
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return target, true
}
