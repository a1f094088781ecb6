package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/baseplate/tracker/config"
	"github.com/baseplate/tracker/internal/core/auth"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/storage"
	"github.com/baseplate/tracker/internal/storage/postgres"
	"github.com/baseplate/tracker/internal/telemetry"
)

func main() {
	cfg := config.Load()
	logger := telemetry.NewLogger(cfg.Log)

	// Read environment variables
	ownerEmail := os.Getenv("OWNER_EMAIL")
	ownerPassword := os.Getenv("OWNER_PASSWORD")
	slug := os.Getenv("WORKSPACE_SLUG")
	if ownerEmail == "" || ownerPassword == "" || slug == "" {
		logger.Fatal().Msg("OWNER_EMAIL, OWNER_PASSWORD and WORKSPACE_SLUG environment variables are required")
	}
	name := envOr("WORKSPACE_NAME", slug)
	ownerName := envOr("OWNER_NAME", "Owner")

	// Connect to database
	db, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	st := postgres.NewStore(db, storage.Tables)
	ctx := context.Background()

	repo := auth.NewRepository(st)
	authService := auth.NewService(repo, &cfg.JWT)

	ownerID, err := ensureOwner(ctx, repo, authService, ownerEmail, ownerPassword, ownerName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare owner account")
	}

	ws, err := workspace.NewService(st).Create(ctx, ownerID, &workspace.CreateWorkspaceRequest{Name: name, Slug: slug})
	if errors.Is(err, workspace.ErrWorkspaceExists) {
		fmt.Printf("Workspace '%s' already exists\n", slug)
		return
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create workspace")
	}

	fmt.Printf("Created workspace '%s' (%s) owned by %s\n", ws.Slug, ws.ID, ownerEmail)
}

// ensureOwner returns the id of the account for email, registering it when
// it does not exist yet.
func ensureOwner(ctx context.Context, repo *auth.Repository, svc *auth.Service, email, password, name string) (string, error) {
	existing, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	resp, err := svc.Register(ctx, &auth.RegisterRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return "", err
	}
	return resp.User.ID, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
