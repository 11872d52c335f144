package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Load reads the directive-based configuration format described in
// spec.md §6 and materializes a ServerConfig. This is a convenience
// shim for cmd/webserv, not part of the core server contract: the
// core (internal/httpserver) only ever consumes a *ServerConfig*
// value, never a file path. Kept intentionally small — a real
// deployment would swap this for whatever config system fits, since
// spec.md §1 declares the textual parser an external collaborator.
//
// Grammar (line-oriented: one directive per line, a block header line
// ends in '{' and its closing '}' stands on a line of its own; '#'
// starts a comment):
//
//	listen = HOST:PORT[,HOST:PORT]*
//	client_body_size_limit = <bytes>
//	error_path = <dir>
//	route <PREFIX> {
//		methods = GET, POST, DELETE
//		root = <dir>
//		default_file = <name>
//		autoindex = on|off
//		redirect = <url>
//		cgi = <interpreter>
//	}
//	vhost <NAME> {
//		listen = HOST:PORT[,HOST:PORT]*   (optional)
//		route <PREFIX> {
//			...
//		}
//	}
func Load(path string) (*ServerConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

type rawRoute struct {
	prefix      string
	methods     []string
	root        string
	defaultFile string
	autoindex   bool
	redirect    string
	cgi         string
}

type rawVHost struct {
	name       string
	routes     []rawRoute
	errorPath  string
	listenAddr []string
}

func parse(f *os.File) (*ServerConfig, error) {
	sc := bufio.NewScanner(f)

	var (
		listen    []string
		bodyLimit = int64(DefaultBodySizeLimit)
		errorPath string
		topRoutes []rawRoute
		vhosts    []rawVHost
		curVHost  *rawVHost
		inRoute   bool
		curRoute  rawRoute
	)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		if line == "}" {
			if inRoute {
				if curVHost != nil {
					curVHost.routes = append(curVHost.routes, curRoute)
				} else {
					topRoutes = append(topRoutes, curRoute)
				}
				curRoute = rawRoute{}
				inRoute = false
				continue
			}
			if curVHost != nil {
				vhosts = append(vhosts, *curVHost)
				curVHost = nil
			}
			continue
		}

		if inRoute {
			key, val, _ := strings.Cut(line, "=")
			key = strings.TrimSpace(key)
			val = strings.TrimSpace(val)
			switch key {
			case "methods":
				for _, m := range strings.Split(val, ",") {
					m = strings.ToUpper(strings.TrimSpace(m))
					if m != "" {
						curRoute.methods = append(curRoute.methods, m)
					}
				}
			case "root":
				curRoute.root = val
			case "default_file", "default":
				curRoute.defaultFile = val
			case "autoindex":
				v := strings.ToLower(val)
				curRoute.autoindex = v == "on" || v == "true" || v == "yes"
			case "redirect":
				curRoute.redirect = val
			case "cgi":
				curRoute.cgi = val
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "vhost") && strings.HasSuffix(line, "{"):
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("config: malformed vhost line %q", line)
			}
			curVHost = &rawVHost{name: fields[1], errorPath: errorPath}

		case strings.HasPrefix(line, "route") && strings.HasSuffix(line, "{"):
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("config: malformed route line %q", line)
			}
			curRoute = rawRoute{prefix: fields[1]}
			inRoute = true

		case strings.HasPrefix(line, "listen"):
			_, val, _ := strings.Cut(line, "=")
			for _, a := range strings.Split(val, ",") {
				a = strings.TrimSpace(a)
				if a == "" {
					continue
				}
				if curVHost != nil {
					curVHost.listenAddr = append(curVHost.listenAddr, a)
				} else {
					listen = append(listen, a)
				}
			}

		case strings.HasPrefix(line, "client_body_size_limit"):
			_, val, _ := strings.Cut(line, "=")
			n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
			if err == nil {
				bodyLimit = n
			}

		case strings.HasPrefix(line, "error_path"):
			_, val, _ := strings.Cut(line, "=")
			errorPath = strings.TrimSpace(val)

		default:
			// unrecognized directive: ignored, matching the original
			// parser's tolerant behavior.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}

	if len(listen) == 0 {
		listen = []string{"127.0.0.1:8080"}
	}

	cfg := &ServerConfig{
		Endpoints:      map[ListenerEndpoint][]*VirtualHost{},
		IdleTimeout:    DefaultIdleTimeout,
		CGITimeout:     DefaultCGITimeout,
		ServerSoftware: DefaultServerSoftware,
	}

	baseVHost := &VirtualHost{
		Names:         nil,
		Default:       true,
		Routes:        materializeRoutes(topRoutes),
		ErrorPages:    materializeErrorPages(errorPath),
		BodySizeLimit: bodyLimit,
	}

	for _, ep := range listen {
		endpoint, err := parseEndpoint(ep)
		if err != nil {
			return nil, err
		}
		cfg.Endpoints[endpoint] = append(cfg.Endpoints[endpoint], baseVHost)
	}

	for _, rv := range vhosts {
		vh := &VirtualHost{
			Names:         []string{rv.name},
			Default:       false,
			Routes:        materializeRoutes(rv.routes),
			ErrorPages:    materializeErrorPages(rv.errorPath),
			BodySizeLimit: bodyLimit,
		}
		addrs := rv.listenAddr
		if len(addrs) == 0 {
			addrs = listen
		}
		for _, a := range addrs {
			endpoint, err := parseEndpoint(a)
			if err != nil {
				return nil, err
			}
			cfg.Endpoints[endpoint] = append(cfg.Endpoints[endpoint], vh)
		}
	}

	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("config: no listen endpoints configured")
	}
	return cfg, nil
}

func materializeRoutes(raws []rawRoute) []Route {
	out := make([]Route, 0, len(raws))
	for _, r := range raws {
		methods := map[string]bool{}
		if len(r.methods) == 0 {
			methods["GET"] = true
		}
		for _, m := range r.methods {
			methods[m] = true
		}
		out = append(out, Route{
			Prefix:         r.prefix,
			Methods:        methods,
			Root:           r.root,
			DefaultFile:    r.defaultFile,
			Autoindex:      r.autoindex,
			Redirect:       r.redirect,
			CGIInterpreter: r.cgi,
		})
	}
	return out
}

func materializeErrorPages(dir string) map[int]string {
	pages := map[int]string{}
	if dir == "" {
		return pages
	}
	for _, status := range []int{400, 403, 404, 405, 413, 500, 502, 504} {
		pages[status] = fmt.Sprintf("%s/%d.html", strings.TrimRight(dir, "/"), status)
	}
	return pages
}

func parseEndpoint(addr string) (ListenerEndpoint, error) {
	host, portStr, ok := cutLast(addr, ':')
	if !ok {
		return ListenerEndpoint{}, fmt.Errorf("config: malformed listen address %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ListenerEndpoint{}, fmt.Errorf("config: malformed port in %q: %w", addr, err)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return ListenerEndpoint{Host: host, Port: port}, nil
}

func cutLast(s string, sep byte) (before, after string, ok bool) {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}
