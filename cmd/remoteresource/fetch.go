package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/remoteresource"
	"github.com/spf13/cobra"
)

// newFetchCmd polls a URL once and prints the accepted body.
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Poll a URL once and print the body",
		Long: `Poll a URL once, the way a resource does on activation, and print the
accepted body to stdout.

Only 2xx responses are accepted. Anything else exits non-zero with the
failure reason.

Example:
  remoteresource fetch https://api.example.com/users
  remoteresource fetch https://api.example.com/users -H "Authorization: Bearer $TOKEN"
  remoteresource fetch https://api.example.com/status --select data.health`,
		Args: cobra.ExactArgs(1),
		RunE: runFetch,
	}

	cmd.Flags().StringArrayP("header", "H", nil, `request header as "Key: Value" (repeatable)`)
	cmd.Flags().Duration("timeout", 10*time.Second, "request timeout")
	cmd.Flags().String("select", "", "print a single JSON field using dot notation")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	rawHeaders, _ := cmd.Flags().GetStringArray("header")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	selectPath, _ := cmd.Flags().GetString("select")

	headers, err := parseHeaders(rawHeaders)
	if err != nil {
		return err
	}

	r, err := remoteresource.NewWithDecoder(args[0], bodyDecoder(selectPath),
		remoteresource.WithHeaders(headers...),
		remoteresource.WithTimeout(timeout),
		remoteresource.WithLogger(newLogger(slog.LevelError)),
	)
	if err != nil {
		return err
	}

	// the transport enforces timeout; the extra second covers decoding
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
	defer cancel()

	r.Activate(ctx)
	snap, err := r.Await(ctx)
	r.Deactivate()
	if err != nil {
		if errors.Is(err, remoteresource.ErrDeactivated) {
			err = ctx.Err()
		}
		return fmt.Errorf("fetch interrupted: %w", err)
	}

	if snap.Status != remoteresource.StatusSuccess {
		if snap.StatusCode != 0 {
			return fmt.Errorf("fetch failed (HTTP %d): %w", snap.StatusCode, snap.Err)
		}
		return fmt.Errorf("fetch failed: %w", snap.Err)
	}

	out := cmd.OutOrStdout()
	if _, err := out.Write(snap.Data); err != nil {
		return err
	}
	if len(snap.Data) == 0 || snap.Data[len(snap.Data)-1] != '\n' {
		fmt.Fprintln(out)
	}
	return nil
}

// bodyDecoder returns the raw body, or one JSON field of it when selectPath
// is set.
func bodyDecoder(selectPath string) remoteresource.Decoder[[]byte] {
	if selectPath == "" {
		return remoteresource.RawDecoder
	}
	field := remoteresource.JSONFieldDecoder(selectPath)
	return func(body []byte) ([]byte, error) {
		return field(body)
	}
}
