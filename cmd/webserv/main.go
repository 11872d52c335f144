// Command webserv is the process entrypoint: load the configuration
// file named on the command line, build the reactor-driven server
// around it, and run the single-goroutine event loop until it exits.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/s00inx/webserv/internal/config"
	"github.com/s00inx/webserv/internal/httpserver"
	"github.com/s00inx/webserv/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "webserv.conf", "path to the server configuration file")
		verbose    = flag.Bool("verbose", false, "enable development-mode console logging")
	)
	flag.Parse()

	log, err := logging.New(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "webserv: logger init failed: %v\n", err)
		return 1
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", zap.String("path", *configPath), zap.Error(err))
		return 1
	}

	srv, err := httpserver.New(cfg, log)
	if err != nil {
		log.Error("failed to start server", zap.Error(err))
		return 1
	}
	defer srv.Close()

	if err := srv.Run(); err != nil {
		log.Error("server loop exited", zap.Error(err))
		return 1
	}
	return 0
}
