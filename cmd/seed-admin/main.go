// seed-admin creates or updates the admin console user.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// Credentials come from ADMIN_USERNAME / ADMIN_PASSWORD, falling back
// to admin / admin123 for local development.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Evan-ql/shuadan/config"
	"github.com/Evan-ql/shuadan/models"
	"github.com/Evan-ql/shuadan/utils"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.User{}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate users table: %v\n", err)
		os.Exit(1)
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	if err := models.UpsertUser(ctx, username, string(hashed), models.UserRoleAdmin); err != nil {
		fmt.Fprintf(os.Stderr, "failed to upsert admin user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("admin user %q is ready\n", username)
}
