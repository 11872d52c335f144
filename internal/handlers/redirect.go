package handlers

// Redirect implements spec.md §4.5's redirect rule: 302 with Location
// regardless of method, once the method gate has already been
// satisfied by the caller.
func Redirect(target string) Result {
	h := headerList("Location", target)
	return Result{Status: 302, Headers: h, Body: nil, ContentLength: 0}
}
