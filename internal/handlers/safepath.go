package handlers

import (
	"path"
	"strings"
)

// resolveTarget implements spec.md §4.5's lexical traversal guard: it
// rejects any resolved path that would escape route.root *before*
// touching the filesystem (spec.md §9 — realpath-after-the-fact
// invites a symlink-swap race). remainder is the request path with
// the matched route prefix already stripped.
func resolveTarget(root, remainder string) (string, bool) {
	if strings.Contains(remainder, "\x00") {
		return "", false
	}
	for _, seg := range strings.Split(remainder, "/") {
		if seg == ".." {
			return "", false
		}
	}
	clean := path.Clean("/" + remainder)
	return path.Join(root, clean), true
}

// sanitizeFilename implements the upload/delete filename policy of
// spec.md §4.5: strip directory components (a name with any '..'
// segment is rejected outright), reject empty names, reject names
// beginning with '.', and reject NUL and '\\'.
func sanitizeFilename(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if strings.ContainsAny(name, "\x00\\") {
		return "", false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", false
		}
	}
	base := path.Base(name)
	if base == "" || base == "." || base == ".." {
		return "", false
	}
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	return base, true
}
