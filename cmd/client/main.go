// Command client subscribes to the notifications of one user and prints them.
package main

import (
	"chat-sync/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/net/websocket"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL   string `env:"CHAT_SERVER_URL,default=http://localhost:8080"`
	AccessToken string `env:"CHAT_ACCESS_TOKEN,required=true"`
	LogLevel    string `env:"LOG_LEVEL,default=INFO"`
}

// frame mirrors event.Envelope with the payload left raw.
type frame struct {
	Entity  event.EntityKind `json:"entity"`
	ID      string           `json:"id"`
	Change  event.Change     `json:"change"`
	Payload json.RawMessage  `json:"payload"`
	At      time.Time        `json:"at"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the subscription.
	wsURL := "ws" + strings.TrimPrefix(config.ServerURL, "http") + "/client/subscribe"
	wsConfig, err := websocket.NewConfig(wsURL, config.ServerURL)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid server url %s: %w", config.ServerURL, err)
	}
	wsConfig.Header.Set("Authorization", "Bearer "+config.AccessToken)
	conn, err := websocket.DialConfig(wsConfig)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not subscribe at %s: %w", wsURL, err)
	}
	go func() {
		<-ctx.Done()
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	log.Info(fmt.Sprintf(">>> Subscribed to %s (Ctrl+C to quit)...", config.ServerURL))

	// 4. Reception loop, until the user stops or the server goes away.
	for {
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("subscription error: %w", err)
		}
		var f frame
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			log.Warn("Unreadable frame", "error", err)
			continue
		}
		log.Info(fmt.Sprintf("[%s] %s %s %s %s",
			f.At.Format(time.TimeOnly), f.Entity, f.ID, f.Change, f.Payload))
	}
}
