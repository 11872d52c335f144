package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "webserv.conf")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSimpleConfig(t *testing.T) {
	path := writeTempConfig(t, `
# top-level listener with a single default route
listen = 0.0.0.0:8080
client_body_size_limit = 1048576

route / {
	methods = GET
	root = /var/www
	default_file = index.html
	autoindex = on
}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ep := ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	vhosts, ok := cfg.Endpoints[ep]
	if !ok || len(vhosts) != 1 {
		t.Fatalf("Endpoints[%v] = %v", ep, cfg.Endpoints)
	}
	vh := vhosts[0]
	if !vh.Default {
		t.Fatalf("expected default vhost")
	}
	if len(vh.Routes) != 1 {
		t.Fatalf("Routes = %v", vh.Routes)
	}
	r := vh.Routes[0]
	if r.Prefix != "/" || !r.AllowsMethod("GET") || !r.Autoindex || r.DefaultFile != "index.html" {
		t.Fatalf("route = %+v", r)
	}
	if vh.BodySizeLimit != 1048576 {
		t.Fatalf("BodySizeLimit = %d, want 1048576", vh.BodySizeLimit)
	}
}

func TestLoadRouteWithNoMethodsDefaultsToGET(t *testing.T) {
	path := writeTempConfig(t, `
listen = 0.0.0.0:8080
route / {
	root = /var/www
}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ep := ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	route := cfg.Endpoints[ep][0].Routes[0]
	if !route.AllowsMethod("GET") || route.AllowsMethod("POST") {
		t.Fatalf("route.Methods = %v, want only GET", route.Methods)
	}
}

func TestLoadVirtualHosts(t *testing.T) {
	path := writeTempConfig(t, `
listen = 0.0.0.0:8080

route / {
	root = /var/www/default
}

vhost example.com {
	route / {
		root = /var/www/example
		methods = GET, POST
	}
}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ep := ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	vhosts := cfg.Endpoints[ep]
	if len(vhosts) != 2 {
		t.Fatalf("expected 2 vhosts on the shared endpoint, got %d", len(vhosts))
	}
	var named *VirtualHost
	for _, v := range vhosts {
		if len(v.Names) > 0 && v.Names[0] == "example.com" {
			named = v
		}
	}
	if named == nil {
		t.Fatalf("example.com vhost not found in %v", vhosts)
	}
	if named.Default {
		t.Fatalf("named vhost must not be marked Default")
	}
	if !named.Routes[0].AllowsMethod("POST") {
		t.Fatalf("expected POST allowed on example.com route")
	}
}

func TestLoadErrorPagesFromErrorPath(t *testing.T) {
	path := writeTempConfig(t, `
listen = 0.0.0.0:8080
error_path = /etc/webserv/errors
route / {
	root = /var/www
}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ep := ListenerEndpoint{Host: "0.0.0.0", Port: 8080}
	vh := cfg.Endpoints[ep][0]
	if got, want := vh.ErrorPages[404], "/etc/webserv/errors/404.html"; got != want {
		t.Fatalf("ErrorPages[404] = %q, want %q", got, want)
	}
}

func TestLoadMissingListenDefaults(t *testing.T) {
	path := writeTempConfig(t, `
route / {
	root = /var/www
}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ep := ListenerEndpoint{Host: "127.0.0.1", Port: 8080}
	if _, ok := cfg.Endpoints[ep]; !ok {
		t.Fatalf("expected default listen endpoint 127.0.0.1:8080, got %v", cfg.Endpoints)
	}
}

func TestLoadMalformedRouteLine(t *testing.T) {
	path := writeTempConfig(t, `
listen = 0.0.0.0:8080
route {
	root = /var/www
}
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed route line")
	}
}

func TestLoadNoSuchFile(t *testing.T) {
	if _, err := Load("/nonexistent/webserv.conf"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
