// Package main is the quotes API entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/JakeFAU/market-quotes-api/internal/config"
	"github.com/JakeFAU/market-quotes-api/internal/server"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	envFile := flag.String("env-file", "database.env", "Optional dotenv file loaded before the environment is read")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := server.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}
