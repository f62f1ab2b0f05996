// Package main starts the dnilist log-correlation service.
//
// The process joins gateway error events with network session events on
// their shared session id and appends each resolved SNI hostname to an
// external do-not-inspect list exactly once.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	dnilistcmd "github.com/robdanz/tf-cf-dni-list/internal/cmd/dnilist"
)

func main() {
	cfg, err := dnilistcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	log.SetPrefix("[DNILIST] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dnilistcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
