// seed inserts a verified dev user into the local database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aybekd/meetgrid/internal/infrastructure/postgres"
	"github.com/aybekd/meetgrid/internal/password"
)

const (
	seedUsername = "devuser"
	seedEmail    = "dev@test.local"
	seedPassword = "devpassword1"
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	hash, err := password.Hash(seedPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	// Idempotent re-runs: refresh the hash if the user already exists.
	var userID string
	err = pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, email_verified)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (username) DO UPDATE
			SET password_hash = EXCLUDED.password_hash, updated_at = NOW()
		RETURNING id`,
		seedUsername, seedEmail, hash,
	).Scan(&userID)
	if err != nil {
		log.Fatalf("upsert user: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Username: %s\n", seedUsername)
	fmt.Printf("  Password: %s\n", seedPassword)
	fmt.Printf("  User ID:  %s\n", userID)
	fmt.Println()
	fmt.Println("  Login:  curl -X POST localhost:8080/auth/login \\")
	fmt.Printf("            -d '{\"username\":\"%s\",\"password\":\"%s\"}'\n", seedUsername, seedPassword)
}
