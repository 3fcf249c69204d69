// Command syncd runs the sync scheduler and the webhook delivery
// worker. It is deployed alongside httpd; both can also run in one
// process with -serve.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/talentbridge/matchsync/internal/app"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	serve := flag.Bool("serve", false, "also run the HTTP API server")
	flag.Parse()

	a, err := app.New(app.Options{
		ConfigPath: *configPath,
		Version:    version,
		RunServer:  *serve,
		RunWorkers: true,
	})
	if err != nil {
		log.Fatalf("Failed to start syncd: %v", err)
	}

	if err := a.Run(context.Background()); err != nil {
		log.Fatalf("syncd exited with error: %v", err)
	}
}
