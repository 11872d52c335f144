package router

import (
	"testing"

	"github.com/s00inx/webserv/internal/config"
)

func buildTestConfig() *config.ServerConfig {
	ep := config.ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	main := &config.VirtualHost{
		Names:   []string{"example.com"},
		Default: true,
		Routes: []config.Route{
			{Prefix: "/", Methods: map[string]bool{"GET": true}, Root: "/var/www"},
			{Prefix: "/static", Methods: map[string]bool{"GET": true}, Root: "/var/www/static"},
			{Prefix: "/static/images", Methods: map[string]bool{"GET": true}, Root: "/var/www/img"},
			{Prefix: "/upload", Methods: map[string]bool{"POST": true, "DELETE": true}, Root: "/var/www/uploads"},
			{Prefix: "/cgi-bin", Methods: map[string]bool{"GET": true, "POST": true}, CGIInterpreter: "/usr/bin/python3", Root: "/var/www/cgi-bin"},
		},
	}
	other := &config.VirtualHost{
		Names: []string{"other.example.com"},
		Routes: []config.Route{
			{Prefix: "/", Methods: map[string]bool{"GET": true}, Root: "/var/www/other"},
		},
	}
	return &config.ServerConfig{
		Endpoints: map[config.ListenerEndpoint][]*config.VirtualHost{
			ep: {main, other},
		},
	}
}

func TestRouterLongestPrefixMatch(t *testing.T) {
	ep := config.ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	r := New(buildTestConfig())

	tests := []struct {
		name       string
		path       string
		wantPrefix string
	}{
		{"root", "/", "/"},
		{"root file", "/index.html", "/"},
		{"static exact", "/static", "/static"},
		{"static file", "/static/app.css", "/static"},
		{"nested static wins over shallower", "/static/images/logo.png", "/static/images"},
		{"segment-aligned, not literal prefix", "/static-other", "/"},
		{"upload", "/upload/report.txt", "/upload"},
		{"cgi", "/cgi-bin/hello.py", "/cgi-bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(ep, "example.com", tt.path)
			if res.Route == nil {
				t.Fatalf("no route matched for %q", tt.path)
			}
			if res.Route.Prefix != tt.wantPrefix {
				t.Errorf("Prefix = %q, want %q", res.Route.Prefix, tt.wantPrefix)
			}
		})
	}
}

func TestRouterSegmentAlignment(t *testing.T) {
	// "/static-other" must NOT match the "/static" route despite sharing
	// the literal byte prefix "/static" — routing is segment-aligned.
	ep := config.ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	r := New(buildTestConfig())
	res := r.Resolve(ep, "example.com", "/static-other/x")
	if res.Route == nil || res.Route.Prefix != "/" {
		t.Fatalf("expected fallback to root route, got %+v", res.Route)
	}
}

func TestRouterVHostSelection(t *testing.T) {
	ep := config.ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	r := New(buildTestConfig())

	tests := []struct {
		name     string
		host     string
		wantName string
	}{
		{"exact match", "other.example.com", "other.example.com"},
		{"exact match with port stripped", "other.example.com:8080", "other.example.com"},
		{"unknown host falls back to default", "unknown.example.com", "example.com"},
		{"empty host falls back to default", "", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(ep, tt.host, "/")
			if res.VHost == nil {
				t.Fatalf("no vhost chosen for host %q", tt.host)
			}
			if res.VHost.Names[0] != tt.wantName {
				t.Errorf("VHost = %q, want %q", res.VHost.Names[0], tt.wantName)
			}
		})
	}
}

func TestRouterUnknownEndpoint(t *testing.T) {
	r := New(buildTestConfig())
	res := r.Resolve(config.ListenerEndpoint{Host: "0.0.0.0", Port: 9999}, "example.com", "/")
	if res.VHost != nil || res.Route != nil {
		t.Fatalf("expected empty Result for unregistered endpoint, got %+v", res)
	}
}

func TestRouterNoMatchingRoute(t *testing.T) {
	ep := config.ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	cfg := &config.ServerConfig{
		Endpoints: map[config.ListenerEndpoint][]*config.VirtualHost{
			ep: {{
				Names:   []string{"example.com"},
				Default: true,
				Routes: []config.Route{
					{Prefix: "/only", Methods: map[string]bool{"GET": true}},
				},
			}},
		},
	}
	r := New(cfg)
	res := r.Resolve(ep, "example.com", "/elsewhere")
	if res.Route != nil {
		t.Fatalf("expected nil route, got %+v", res.Route)
	}
}

func TestRouteAllowHeaderOrder(t *testing.T) {
	rt := config.Route{Methods: map[string]bool{"DELETE": true, "GET": true, "POST": true}}
	if got, want := rt.AllowHeader(), "GET, POST, DELETE"; got != want {
		t.Errorf("AllowHeader() = %q, want %q", got, want)
	}
}

func BenchmarkRouterResolve(b *testing.B) {
	ep := config.ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	r := New(buildTestConfig())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Resolve(ep, "example.com", "/static/images/logo.png")
	}
}
