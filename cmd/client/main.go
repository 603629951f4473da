package main

import (
	"context"
	"log"
	"os"

	"github.com/01011010/notesum-hybrid/internal/buildinfo"
	"github.com/01011010/notesum-hybrid/internal/client/cli"
	"github.com/01011010/notesum-hybrid/internal/client/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
