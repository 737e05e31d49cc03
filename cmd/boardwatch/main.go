package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"go.uber.org/zap"

	"github.com/sujalbistaa/guestboard/internal/board"
	"github.com/sujalbistaa/guestboard/internal/client"
	"github.com/sujalbistaa/guestboard/internal/events"
	"github.com/sujalbistaa/guestboard/internal/logging"
	"github.com/sujalbistaa/guestboard/internal/models"
)

const BoardwatchVersion = "0.1.0"

const usage = `Visitor message board client.

The default url is http://localhost:8080

Usage:
    boardwatch watch [--url=<url>] [--debug]
    boardwatch list [--url=<url>]
    boardwatch post [--url=<url>] <name> <message>
    boardwatch vote [--url=<url>] (up|down) <id>

Options:
    -h --help        Show this screen.
    --version        Show version.
    --url=<url>      Board base url.
    --debug          Log stream lifecycle to stderr.`

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime)
}

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], BoardwatchVersion)
	if err != nil {
		panic(err)
	}
	os.Exit(run(opts))
}

// run executes one command and returns the process exit code, so deferred
// cleanup finishes before main exits.
func run(opts docopt.Opts) int {
	baseURL, _ := opts.String("--url")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	hc := &http.Client{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if watch, _ := opts.Bool("watch"); watch {
		debug, _ := opts.Bool("--debug")
		return runWatch(ctx, hc, baseURL, debug)
	}
	if list, _ := opts.Bool("list"); list {
		return runList(ctx, hc, baseURL)
	}
	if post, _ := opts.Bool("post"); post {
		name, _ := opts.String("<name>")
		message, _ := opts.String("<message>")
		return submit(ctx, hc, baseURL, board.IntentNew, url.Values{"name": {name}, "message": {message}})
	}
	if vote, _ := opts.Bool("vote"); vote {
		id, _ := opts.String("<id>")
		intent := board.IntentDownVote
		if up, _ := opts.Bool("up"); up {
			intent = board.IntentUpVote
		}
		return submit(ctx, hc, baseURL, intent, url.Values{"id": {id}})
	}
	return 2
}

func runWatch(ctx context.Context, hc *http.Client, baseURL string, debug bool) int {
	logger := zap.NewNop()
	if debug {
		l, err := logging.New("debug", "console")
		if err != nil {
			Err.Printf("%s", err)
			return 1
		}
		logger = l
	}

	sub := client.NewSubscriber(baseURL,
		client.WithHTTPClient(hc),
		client.WithLogger(logger),
		client.WithOnChange(func(kind events.Kind, r models.Record) {
			Out.Printf("%-22s %s", kind, formatRecord(r))
		}),
	)
	if err := sub.Mount(ctx); err != nil {
		Err.Printf("mount: %s", err)
		return 1
	}
	for _, r := range sub.View().Records() {
		Out.Println(formatRecord(r))
	}

	select {
	case <-ctx.Done():
	case <-sub.Done():
	}
	if err := sub.Unmount(); err != nil {
		Err.Printf("%s", err)
		return 1
	}
	return 0
}

func runList(ctx context.Context, hc *http.Client, baseURL string) int {
	records, err := client.Snapshot(ctx, hc, baseURL)
	if err != nil {
		Err.Printf("%s", err)
		return 1
	}
	for _, r := range records {
		Out.Println(formatRecord(r))
	}
	return 0
}

func submit(ctx context.Context, hc *http.Client, baseURL, intent string, fields url.Values) int {
	if err := client.Submit(ctx, hc, baseURL, intent, fields); err != nil {
		Err.Printf("%s", err)
		return 1
	}
	Out.Println("ok")
	return 0
}

func formatRecord(r models.Record) string {
	return fmt.Sprintf("%s  %4d  %s: %s  (%s)", r.ID, r.Likes, r.Name, r.Message, r.CreatedAt.Local().Format(time.DateTime))
}
