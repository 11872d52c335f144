// Package router resolves (listener endpoint, Host header, request
// path) to a route, per spec.md §4.4. The per-vhost route tree keeps
// the teacher's server/router prefix-node shape (a flat child slice
// per node, matched with strings.HasPrefix-style segment walking) but
// generalizes leaves to "longest matched prefix wins" instead of the
// teacher's exact full-path match, since spec.md routes are prefix
// rules, not literal endpoints.
package router

import (
	"strings"

	"github.com/s00inx/webserv/internal/config"
)

// Router resolves requests against a fully materialized ServerConfig.
type Router struct {
	cfg   *config.ServerConfig
	trees map[config.ListenerEndpoint][]*vhostTree
}

type vhostTree struct {
	vhost *config.VirtualHost
	root  *node
}

// node is one path segment in a per-vhost route prefix tree. A node
// may carry a *config.Route when some route's prefix ends exactly
// there; the deepest node reached while consuming the request path's
// segments is the longest matching prefix by construction.
type node struct {
	segment  string
	children []*node
	route    *config.Route
}

// New builds the router's per-endpoint, per-vhost route trees from
// cfg. cfg is never mutated afterward, so no locking is required to
// read it from the single reactor goroutine.
func New(cfg *config.ServerConfig) *Router {
	r := &Router{cfg: cfg, trees: map[config.ListenerEndpoint][]*vhostTree{}}
	for ep, vhosts := range cfg.Endpoints {
		for _, vh := range vhosts {
			t := &vhostTree{vhost: vh, root: &node{}}
			for i := range vh.Routes {
				t.root.insert(vh.Routes[i].Prefix, &vh.Routes[i])
			}
			r.trees[ep] = append(r.trees[ep], t)
		}
	}
	return r
}

func splitSegments(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (n *node) insert(prefix string, route *config.Route) {
	cur := n
	for _, seg := range splitSegments(prefix) {
		var child *node
		for _, c := range cur.children {
			if c.segment == seg {
				child = c
				break
			}
		}
		if child == nil {
			child = &node{segment: seg}
			cur.children = append(cur.children, child)
		}
		cur = child
	}
	if cur.route == nil { // declaration order: first prefix wins ties
		cur.route = route
	}
}

// match walks path's segments, remembering the last node with a
// route attached — that is the longest matched prefix.
func (n *node) match(path string) *config.Route {
	best := n.route
	cur := n
	for _, seg := range splitSegments(path) {
		var next *node
		for _, c := range cur.children {
			if c.segment == seg {
				next = c
				break
			}
		}
		if next == nil {
			break
		}
		cur = next
		if cur.route != nil {
			best = cur.route
		}
	}
	return best
}

// Result is the outcome of resolving a request.
type Result struct {
	VHost *config.VirtualHost
	Route *config.Route // nil means "no matching route" -> 404
}

// Resolve implements spec.md §4.4: strip :port from host, exact-match
// vhost name else default else first; then longest segment-aligned
// prefix route within that vhost.
func (r *Router) Resolve(endpoint config.ListenerEndpoint, host, path string) Result {
	trees := r.trees[endpoint]
	if len(trees) == 0 {
		return Result{}
	}

	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	var chosen *vhostTree
	for _, t := range trees {
		if t.vhost.MatchesHost(host) {
			chosen = t
			break
		}
	}
	if chosen == nil {
		vhosts := make([]*config.VirtualHost, len(trees))
		for i, t := range trees {
			vhosts[i] = t.vhost
		}
		dv := config.DefaultVHost(vhosts)
		for _, t := range trees {
			if t.vhost == dv {
				chosen = t
				break
			}
		}
	}

	return Result{VHost: chosen.vhost, Route: chosen.root.match(path)}
}
