// Package main hosts the serphub coordination service entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/serpflow/serpflow/internal/config"
	"github.com/serpflow/serpflow/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := server.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build application failed: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "serphub exited with error: %v\n", err)
		os.Exit(1)
	}
}
