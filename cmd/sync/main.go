// Package main is the slotplan snapshot sync tool. It pushes a locally
// persisted snapshot to the API server as one bulk save, so work captured
// while offline reaches the server in a single request. With -watch it keeps
// running and re-pushes whenever the snapshot file changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mpetrov/slotplan/internal/identity"
	"github.com/mpetrov/slotplan/internal/remote"
	"github.com/mpetrov/slotplan/internal/snapshot"
)

// tokenTTL bounds tokens minted from -secret.
const tokenTTL = 24 * time.Hour

func main() {
	var (
		owner  = flag.String("owner", "", "owner ID whose snapshot to sync (required)")
		server = flag.String("server", "http://localhost:8080", "API server base URL")
		dir    = flag.String("dir", defaultSnapshotDir(), "snapshot directory")
		token  = flag.String("token", os.Getenv("SLOTPLAN_TOKEN"), "bearer token (defaults to $SLOTPLAN_TOKEN)")
		secret = flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret to mint a token when none is given (defaults to $JWT_SECRET)")
		watch  = flag.Bool("watch", false, "keep running and push on every snapshot change")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *owner == "" {
		fmt.Fprintln(os.Stderr, "usage: sync -owner <id> [-server URL] [-dir PATH] [-token TOKEN | -secret SECRET] [-watch]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	bearer := *token
	if bearer == "" {
		if *secret == "" {
			slog.Error("either -token or -secret is required")
			os.Exit(2)
		}
		minted, err := identity.NewProvider([]byte(*secret)).NewToken(*owner, tokenTTL)
		if err != nil {
			slog.Error("failed to mint token", "error", err)
			os.Exit(1)
		}
		bearer = minted
	}

	store, err := snapshot.NewFileStore(*dir)
	if err != nil {
		slog.Error("failed to open snapshot store", "dir", *dir, "error", err)
		os.Exit(1)
	}
	client := remote.NewClient(*server, bearer)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := push(ctx, store, client, *owner); err != nil {
		slog.Error("sync failed", "error", err)
		os.Exit(1)
	}

	if !*watch {
		return
	}

	changes, err := store.Watch(ctx, *owner)
	if err != nil {
		slog.Error("failed to watch snapshot", "error", err)
		os.Exit(1)
	}
	slog.Info("watching for snapshot changes", "dir", *dir, "owner", *owner)

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync stopped")
			return
		case <-changes:
			if err := push(ctx, store, client, *owner); err != nil {
				// Keep watching: the next change retries naturally.
				slog.Error("sync failed", "error", err)
			}
		}
	}
}

// push loads the owner's snapshot and bulk-saves its tasks to the server.
// A missing snapshot is not an error; there is simply nothing to sync yet.
func push(ctx context.Context, store *snapshot.FileStore, client *remote.Client, owner string) error {
	snap, ok, err := store.Load(ctx, owner)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		slog.Info("no snapshot found", "owner", owner)
		return nil
	}
	if len(snap.Tasks) == 0 {
		slog.Info("snapshot holds no tasks", "owner", owner, "saved_at", snap.SavedAt)
		return nil
	}

	if err := client.BulkSave(ctx, snap.Tasks, nil); err != nil {
		return fmt.Errorf("bulk save: %w", err)
	}
	slog.Info("snapshot pushed", "owner", owner, "tasks", len(snap.Tasks), "saved_at", snap.SavedAt)
	return nil
}

// defaultSnapshotDir mirrors where the engine persists snapshots when no
// explicit directory is configured.
func defaultSnapshotDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.slotplan/snapshots"
	}
	return "./snapshots"
}
