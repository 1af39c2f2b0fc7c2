package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"marketchat/backend/internal/config"
	"marketchat/backend/internal/identity"
	"marketchat/backend/internal/obs"
	"marketchat/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  migrate-up                     apply all pending migrations
  migrate-down                   revert the last migration
  issue-token <user_id> [hours]  sign an access token (default 24h)
  close-room <room_token>        deactivate a room without a notice`

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := obs.NewLogger(cfg.Env)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "migrate-up", "migrate-down":
		steps := 0
		if command == "migrate-down" {
			steps = -1
		}
		version, err := storage.Migrate(cfg.DSN(), steps)
		if err != nil {
			log.Error("migration failed", "command", command, "err", err)
			os.Exit(1)
		}
		fmt.Printf("Schema is at version %d.\n", version)

	case "issue-token":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin issue-token <user_id> [hours]")
			os.Exit(1)
		}
		userID, err := strconv.ParseInt(os.Args[2], 10, 64)
		if err != nil || userID <= 0 {
			fmt.Println("Invalid user id. Please provide a positive integer.")
			os.Exit(1)
		}
		hours := 24
		if len(os.Args) > 3 {
			if hours, err = strconv.Atoi(os.Args[3]); err != nil || hours <= 0 {
				fmt.Println("Invalid duration. Please provide a positive number of hours.")
				os.Exit(1)
			}
		}
		token, err := identity.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer).Issue(userID, "", time.Duration(hours)*time.Hour)
		if err != nil {
			log.Error("failed to sign token", "err", err)
			os.Exit(1)
		}
		fmt.Println(token)

	case "close-room":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin close-room <room_token>")
			os.Exit(1)
		}
		db, err := storage.Open(cfg.DSN())
		if err != nil {
			log.Error("failed to connect database", "err", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		if err := storage.NewStorageService(db, nil, log).CloseRoom(ctx, os.Args[2]); err != nil {
			log.Error("failed to close room", "room", os.Args[2], "err", err)
			os.Exit(1)
		}
		fmt.Printf("Room %s has been closed.\n", os.Args[2])

	default:
		fmt.Printf("Unknown command: %s\n\n%s\n", command, usage)
		os.Exit(1)
	}
}
