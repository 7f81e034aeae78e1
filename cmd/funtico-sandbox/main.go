// Command funtico-sandbox runs the in-memory tournament backend seeded with a
// demo room, for local development against the SDK.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MJE43/funtico-sdk-go/internal/config"
	"github.com/MJE43/funtico-sdk-go/internal/sandbox"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	addr := cfg.SandboxAddr
	players := 4
	flag.StringVar(&addr, "addr", addr, "listen address")
	flag.IntVar(&players, "players", players, "number of demo players to seed")
	flag.Parse()

	if cfg.PrivateKey == "" {
		fmt.Fprintln(os.Stderr, "Error: FUNTICO_PRIVATE_KEY is required to verify envelopes")
		os.Exit(1)
	}

	logger := log.New(os.Stdout, "[sandbox] ", log.LstdFlags)
	sb := sandbox.New(sandbox.Config{
		Addr:       addr,
		PublicKey:  cfg.PublicKey,
		PrivateKey: cfg.PrivateKey,
		Logger:     logger,
	})
	sandbox.SeedDemo(sb, players)
	if err := sb.Start(); err != nil {
		logger.Fatalf("start: %v", err)
	}
	logger.Printf("demo room %q with %d players; platform tokens demo-token-1..%d", sandbox.DemoRoomID, players, players)
	logger.Printf("platform users endpoint at http://%s/api/v1/web/users", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sb.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}
