package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aminovpavel/aprs-mqtt/internal/aprs"
	"github.com/aminovpavel/aprs-mqtt/internal/aprsis"
	"github.com/aminovpavel/aprs-mqtt/internal/classify"
	"github.com/aminovpavel/aprs-mqtt/internal/observability"
)

func main() {
	var (
		host   = flag.String("host", getenvDefault("rotate.aprs2.net", "APRSMQTT_APRS_HOST"), "APRS-IS server")
		port   = flag.Int("port", getenvIntDefault(14580, "APRSMQTT_APRS_PORT"), "APRS-IS port")
		call   = flag.String("callsign", getenvDefault("N0CALL", "APRSMQTT_APRS_CALLSIGN"), "Login callsign")
		filter = flag.String("filter", getenvDefault("r/51.5/-0.1/100", "APRSMQTT_APRS_FILTER"), "Server-side filter")
		count  = flag.Int("count", 20, "Stop after this many packets (0 = run until interrupted)")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client, err := aprsis.Dial(ctx, aprsis.Config{
		Host:     *host,
		Port:     *port,
		Callsign: *call,
		Passcode: "-1",
		Version:  "smoke",
	}, observability.NewLogger("info"))
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer client.Close()
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	if err := client.SetFilter(*filter); err != nil {
		log.Fatalf("set filter: %v", err)
	}
	log.Printf("connected to %s:%d as %s (verified=%t), awaiting packets...", *host, *port, *call, client.Verified)

	seen := 0
	start := time.Now()
	for *count == 0 || seen < *count {
		line, err := client.ReadLine()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, aprsis.ErrConnectionDrop) {
				log.Printf("connection closed after %d packets", seen)
				return
			}
			log.Fatalf("read: %v", err)
		}
		if line.IsComment() {
			log.Printf("SRV %s", line.Text)
			continue
		}
		seen++
		pkt, err := aprs.Parse(line.Text)
		if err != nil {
			log.Printf("PKT unparsed err=%v line=%s", err, line.Text)
			continue
		}
		category := "-"
		if msg, ok := classify.Classify(pkt); ok {
			category = string(msg.Category)
		}
		log.Printf("PKT from=%s format=%s category=%s", pkt.From, pkt.Format, category)
	}
	fmt.Printf("received %d packets in %s\n", seen, time.Since(start).Round(time.Millisecond))
}

func getenvDefault(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return fallback
}

func getenvIntDefault(fallback int, keys ...string) int {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			if parsed, err := strconv.Atoi(val); err == nil {
				return parsed
			}
		}
	}
	return fallback
}
