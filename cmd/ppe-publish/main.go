// Command ppe-publish writes a compliance snapshot into the realtime store so
// running monitors pick it up.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"ppewatch/internal/domain/compliance"
	"ppewatch/internal/platform/realtime"
)

func main() {
	if err := run(); err != nil {
		slog.Error("publish failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	redisURL := flag.String("redis", envOr("REDIS_URL", "redis://localhost:6379/0"), "redis URL")
	prefix := flag.String("prefix", envOr("REALTIME_PREFIX", "ppewatch"), "key prefix")
	path := flag.String("path", envOr("EVENTS_PATH", "ppe"), "snapshot path")
	file := flag.String("file", "-", "snapshot JSON file, - for stdin")
	strict := flag.Bool("strict", false, "refuse payloads with entries that match no known producer schema")
	flag.Parse()

	raw, err := readInput(*file)
	if err != nil {
		return err
	}
	report, err := compliance.ValidateContract(raw)
	if err != nil {
		return err
	}
	for _, entry := range report.Entries {
		if !entry.Valid {
			slog.Warn("entry does not match a producer schema", "key", entry.Key, "errors", entry.Errors)
		}
	}
	if *strict && !report.Valid {
		return fmt.Errorf("payload rejected: %d entries checked, not all valid", len(report.Entries))
	}

	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := realtime.NewRedisClient(ctx, *redisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := realtime.NewRedisSource(client, *prefix).Publish(ctx, *path, snapshot); err != nil {
		return err
	}
	slog.Info("snapshot published", "path", *path, "entries", len(report.Entries), "skipped", len(report.Skipped))
	return nil
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
