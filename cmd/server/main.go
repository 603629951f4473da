package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/01011010/notesum-hybrid/internal/buildinfo"
	"github.com/01011010/notesum-hybrid/internal/flagx"
	"github.com/01011010/notesum-hybrid/internal/server"
	"github.com/01011010/notesum-hybrid/internal/server/config"
)

func main() {
	args := os.Args[1:]

	cfg, err := config.Load(args)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var tokenFor string
	if err := flagx.Parse("token", args, func(fs *flag.FlagSet) {
		fs.StringVar(&tokenFor, "k", "", "print an access token for this user id and exit")
	}); err != nil {
		log.Fatalf("%v", err)
	}
	if tokenFor != "" {
		token, err := server.IssueToken(cfg, tokenFor)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(token)
		return
	}

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
