package handlers

import (
	"os"

	"github.com/s00inx/webserv/internal/config"
	"github.com/s00inx/webserv/internal/httpproto"
)

var builtinReason = map[int]string{
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	413: "Payload Too Large",
	500: "Internal Server Error",
	502: "Bad Gateway",
	504: "Gateway Timeout",
}

// ErrorResult renders an error response, preferring the vhost's
// configured error page (spec.md §7, supplemented by
// original_source/src/network/router.rs's <error_path>/<status>.html
// convention) and falling back to a built-in plain-text body when the
// page is absent or unreadable.
func ErrorResult(vh *config.VirtualHost, status int) Result {
	if vh != nil {
		if path, ok := vh.ErrorPages[status]; ok {
			if body, err := os.ReadFile(path); err == nil {
				h := headerList("Content-Type", "text/html; charset=utf-8")
				return Result{Status: status, Headers: h, Body: body, ContentLength: int64(len(body))}
			}
		}
	}
	reason := builtinReason[status]
	if reason == "" {
		reason = "Error"
	}
	return plain(status, reason+"\n")
}

func headerList(kv ...string) (h httpproto.HeaderList) {
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	return h
}
