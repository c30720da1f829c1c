// seed inserts a development principal for local testing.
// Idempotent: skips inserts if the dev principal (dev) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"authcore/internal/config"
	"authcore/internal/db"
	"authcore/internal/principal/domain"
	"authcore/internal/principal/repository"
	"authcore/internal/security"
)

const (
	devUsername = "dev"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	repo := repository.NewPostgresRepository(conn)

	existing, err := repo.GetByUsername(ctx, devUsername)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev principal exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	if err := repo.Create(ctx, &domain.Principal{
		ID:           uuid.New().String(),
		Username:     devUsername,
		PasswordHash: passwordHash,
		Status:       domain.StatusActive,
		Roles:        []string{"admin"},
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		log.Fatalf("create dev principal: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devUsername, devPassword)
}
