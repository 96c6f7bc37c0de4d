package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_takeout/internal/logger"
	"github.com/fjod/go_takeout/pkg/paywatch"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	baseURL := flag.String("url", getEnv("TAKEOUT_API_URL", "http://localhost:8080"), "takeout API base URL")
	interval := flag.Duration("interval", 2*time.Second, "delay between polls")
	maxDuration := flag.Duration("max-duration", 5*time.Minute, "give up after this long")
	maxErrors := flag.Int("max-errors", 3, "give up after this many consecutive failed polls")
	verbose := flag.Bool("v", false, "log every poll")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <merchant_payment_id>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	log := logger.New("paywatch", level, true, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := paywatch.New(paywatch.Config{
		BaseURL:         *baseURL,
		Interval:        *interval,
		MaxDuration:     *maxDuration,
		MaxServerErrors: *maxErrors,
	}, log)

	status, err := w.Wait(ctx, flag.Arg(0))
	if err != nil {
		log.Error().Err(err).Str("last_status", string(status)).Msg("payment did not settle")
		os.Exit(1)
	}
	fmt.Println(status)
	if status != paywatch.StatusCompleted {
		os.Exit(1)
	}
}
