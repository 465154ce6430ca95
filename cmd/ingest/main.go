// Package main starts the Kafka activity ingest process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	ingestcmd "github.com/louisbranch/carbontrace/internal/cmd/ingest"
)

func main() {
	cfg, err := ingestcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[INGEST] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ingestcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to consume: %v", err)
	}
}
