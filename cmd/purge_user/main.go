package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/runixer/grabber/internal/app"
	"github.com/runixer/grabber/internal/config"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/workspace"
)

func main() {
	userID := flag.Int64("user_id", 0, "User ID to purge")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	if *userID == 0 {
		fmt.Println("Please provide -user_id")
		os.Exit(1)
	}

	if _, err := app.LoadEnv(); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		fmt.Printf("Failed to init storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		fmt.Printf("Failed to init DB schema: %v\n", err)
		os.Exit(1)
	}

	if err := purge(os.Stdout, store, workspace.New(cfg.Download.Dir, logger), *userID); err != nil {
		fmt.Println(err)
		store.Close()
		os.Exit(1)
	}
	fmt.Println("Successfully purged user data.")
}

// purge removes the user's rows and working directory, including the
// custom thumbnail. Users unknown to the database still get their files
// removed.
func purge(out io.Writer, users storage.UserRepository, ws *workspace.Workspace, userID int64) error {
	user, err := users.GetUser(userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		fmt.Fprintf(out, "User %d is not in the database, removing files only...\n", userID)
	} else {
		fmt.Fprintf(out, "Purging data for user %d (%s)...\n", userID, describeUser(user))
	}

	if err := users.PurgeUser(userID); err != nil {
		return fmt.Errorf("failed to purge user data: %w", err)
	}
	if err := ws.Purge(userID); err != nil {
		return fmt.Errorf("failed to remove user files: %w", err)
	}
	return nil
}

func describeUser(u *storage.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.Username != "" {
		name = strings.TrimSpace(name + " @" + u.Username)
	}
	if name == "" {
		return "no name"
	}
	return name
}
