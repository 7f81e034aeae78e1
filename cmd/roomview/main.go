// Command roomview prints a room's leaderboard view or prize-pool
// distribution as JSON.
//
//	roomview -room demo-sprint -session <id>      leaderboard of a room session
//	roomview -room demo-sprint -distribution      prize-pool breakdown
//	roomview -journal                             locally journaled checkpoints
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/text/language"

	funtico "github.com/MJE43/funtico-sdk-go"
	"github.com/MJE43/funtico-sdk-go/pkg/leaderboard"
)

func main() {
	var (
		roomID       string
		sessionID    string
		matchID      string
		lang         string
		distribution bool
		pending      bool
		listJournal  bool
		verbose      bool
	)
	flag.StringVar(&roomID, "room", "", "room (event) id")
	flag.StringVar(&sessionID, "session", "", "room session id")
	flag.StringVar(&matchID, "match", "", "match id, for multiplayer rooms")
	flag.StringVar(&lang, "lang", "en", "language for amount formatting")
	flag.BoolVar(&distribution, "distribution", false, "print the prize-pool distribution instead of the leaderboard")
	flag.BoolVar(&pending, "predict", true, "predict prizes while the room is unsettled")
	flag.BoolVar(&listJournal, "journal", false, "list locally journaled checkpoints")
	flag.BoolVar(&verbose, "v", false, "log requests to stderr")
	flag.Parse()

	if roomID == "" && !listJournal {
		fmt.Fprintln(os.Stderr, "Error: -room is required")
		flag.Usage()
		os.Exit(2)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid -lang: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, roomID, sessionID, matchID, tag, distribution, pending, listJournal, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, roomID, sessionID, matchID string, tag language.Tag, distribution, pending, listJournal, verbose bool) error {
	cfg, err := funtico.LoadConfig(".env")
	if err != nil {
		return err
	}
	var opts []funtico.Option
	if verbose {
		opts = append(opts, funtico.WithLogger(log.New(os.Stderr, "[roomview] ", log.LstdFlags)))
	}
	client := funtico.New(opts...)
	if err := client.Configure(ctx, cfg); err != nil {
		return err
	}
	defer client.Shutdown(context.Background())

	var out any
	switch {
	case listJournal:
		out, err = client.JournalEntries(ctx, 50)
	case distribution:
		out, err = client.Leaderboard().WithLanguage(tag).Distribution(ctx, roomID)
	default:
		out, err = client.Leaderboard().WithLanguage(tag).Leaderboard(ctx, leaderboard.Request{
			EventID:        roomID,
			SessionID:      sessionID,
			MatchID:        matchID,
			PredictPending: pending,
		})
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
