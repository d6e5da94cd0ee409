package main

import (
	"fmt"
	"strings"
)

// parseHeaders turns "Key: Value" flags into key-value pairs for
// remoteresource.WithHeaders.
func parseHeaders(raw []string) ([]string, error) {
	pairs := make([]string, 0, len(raw)*2)
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Key: Value\"", h)
		}
		pairs = append(pairs, key, strings.TrimSpace(value))
	}
	return pairs, nil
}
