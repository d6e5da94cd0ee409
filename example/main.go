package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/remoteresource"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockInventoryServer(":9999")
	time.Sleep(100 * time.Millisecond)

	opts := []remoteresource.HubOption{
		remoteresource.WithPort(8080),
		remoteresource.WithTitle("Inventory Demo"),
		remoteresource.WithHubChangeCallback(func(name string, s remoteresource.Snapshot[json.RawMessage]) {
			if s.Status == remoteresource.StatusFailed {
				slog.Warn("resource failed", "resource", name, "error", s.Err)
			}
		}),
	}

	// 2 services × 2 envs, each with its own recurring poll
	for _, svc := range []string{"users", "orders"} {
		for _, env := range []string{"prod", "staging"} {
			url := fmt.Sprintf("http://localhost:9999/inventory?svc=%s&env=%s", svc, env)
			r, err := remoteresource.NewWithDecoder(url, remoteresource.JSONOrTextDecoder,
				remoteresource.WithAutoPollInterval(5*time.Second),
			)
			if err != nil {
				slog.Error("failed to create resource", "error", err)
				os.Exit(1)
			}
			opts = append(opts, remoteresource.WithResource(svc+" "+env, r))
		}
	}

	// select one field of a JSON body, polled only on demand
	stock, err := remoteresource.NewWithDecoder(
		"http://localhost:9999/inventory?svc=billing&env=prod",
		remoteresource.JSONFieldDecoder("stock"),
		remoteresource.WithPollOnMount(false),
	)
	if err != nil {
		slog.Error("failed to create resource", "error", err)
		os.Exit(1)
	}
	opts = append(opts, remoteresource.WithResource("billing stock", stock))

	hub, err := remoteresource.NewHub(opts...)
	if err != nil {
		slog.Error("failed to create hub", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Remote resource demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Resources:")
	fmt.Println("    4 inventory feeds (2 services x 2 envs, every 5s)")
	fmt.Println("    1 selected field (billing stock, manual polls only)")
	fmt.Println()
	fmt.Println("  Click Poll repeatedly: responses arrive out of order,")
	fmt.Println("  but only the most recently issued poll is shown.")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := hub.Start(ctx); err != nil {
		slog.Error("hub error", "error", err)
		os.Exit(1)
	}
}
