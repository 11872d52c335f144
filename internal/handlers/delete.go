package handlers

import (
	"os"
	"strings"

	"github.com/s00inx/webserv/internal/config"
)

// Delete implements spec.md §4.5's DELETE contract: path form
// route.prefix + '/' + name, sanitized, unlinked from route.root.
func Delete(vh *config.VirtualHost, route *config.Route, requestPath string) Result {
	remainder := strings.TrimPrefix(requestPath, route.Prefix)
	remainder = strings.TrimPrefix(remainder, "/")
	name, ok := sanitizeFilename(remainder)
	if !ok {
		return ErrorResult(vh, 403)
	}

	target, ok := resolveTarget(route.Root, "/"+name)
	if !ok {
		return ErrorResult(vh, 403)
	}

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return ErrorResult(vh, 404)
		}
		if os.IsPermission(err) {
			return ErrorResult(vh, 403)
		}
		return ErrorResult(vh, 500)
	}
	return plain(200, "deleted: "+name+"\n")
}
