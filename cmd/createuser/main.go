package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/safar/go-pos-store/internal/auth"
	"github.com/safar/go-pos-store/internal/config"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/store"
)

func main() {
	if len(os.Args) != 4 {
		log.Fatal("Usage: go run ./cmd/createuser <username> <display name> <password>")
	}
	username, name, password := os.Args[1], strings.TrimSpace(os.Args[2]), os.Args[3]
	if name == "" {
		log.Fatal("Display name must not be empty")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := store.CreateUser(ctx, db, username, name, hash)
	if database.IsUniqueViolation(err) {
		log.Fatalf("User %s already exists", username)
	}
	if err != nil {
		log.Fatalf("Create user: %v", err)
	}

	log.Printf("Created user %s (%s)", user.Username, user.Name)
}
