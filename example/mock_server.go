package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockInventory tracks the stock level served for one service/env pair.
type mockInventory struct {
	version int
	stock   int
}

// StartMockInventoryServer runs a mock inventory API.
//
// Every request bumps the version of its service/env pair, so each accepted
// poll shows a fresh value. Latency varies between 50ms and 1.5s, which makes
// manual polls overlap often enough to watch the newest one win, and roughly
// one request in ten fails with 503.
// Call this in a goroutine before activating resources.
func StartMockInventoryServer(addr string) {
	var (
		items = make(map[string]*mockInventory)
		mu    sync.Mutex
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/inventory", func(w http.ResponseWriter, r *http.Request) {
		svc := r.URL.Query().Get("svc")
		env := r.URL.Query().Get("env")
		key := svc + "-" + env

		mu.Lock()
		item, exists := items[key]
		if !exists {
			item = &mockInventory{stock: 100 + rand.Intn(100)}
			items[key] = item
		}
		item.version++
		item.stock += rand.Intn(21) - 10
		snapshot := *item
		mu.Unlock()

		time.Sleep(time.Duration(50+rand.Intn(1450)) * time.Millisecond)

		if rand.Intn(10) == 0 {
			http.Error(w, "inventory temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"svc":     svc,
			"env":     env,
			"version": snapshot.version,
			"stock":   snapshot.stock,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
