// Command httpd runs the matchsync HTTP API server.
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
	flag.Parse()

	a, err := app.New(app.Options{
		ConfigPath: *configPath,
		Version:    version,
		RunServer:  true,
	})
	if err != nil {
		log.Fatalf("Failed to start httpd: %v", err)
	}

	if err := a.Run(context.Background()); err != nil {
		log.Fatalf("httpd exited with error: %v", err)
	}
}
