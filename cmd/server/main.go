package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"league-backend/internal/auth"
	"league-backend/internal/handlers"
	"league-backend/internal/league"
	"league-backend/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Missing .env is fine; env vars win either way
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	secret := os.Getenv("TOKEN_SECRET")
	if secret == "" {
		logger.Fatal("TOKEN_SECRET is required")
	}

	pinHash := os.Getenv("ADMIN_PIN_HASH")
	if pinHash == "" {
		// Dev convenience: accept a plaintext PIN and hash it at boot.
		if pin := os.Getenv("ADMIN_PIN"); pin != "" {
			pinHash, err = auth.HashPIN(pin)
			if err != nil {
				logger.Fatal("Failed to hash ADMIN_PIN", zap.Error(err))
			}
			logger.Warn("Using plaintext ADMIN_PIN; set ADMIN_PIN_HASH in production")
		}
	}
	if pinHash == "" {
		logger.Warn("No admin PIN configured; all mutations will be rejected")
	}

	ctx := context.Background()
	st, closeStore, err := openStore(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	if closeStore != nil {
		defer closeStore()
	}

	au := auth.New(secret, pinHash)
	svc := league.NewService(st, logger)
	h := handlers.New(st, svc, au, logger)

	logger.Info("Server starting", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, h.Routes()); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

// openStore chooses the store backend via the STORE_BACKEND env var.
func openStore(ctx context.Context, logger *zap.Logger) (store.Store, func() error, error) {
	switch os.Getenv("STORE_BACKEND") {
	case "file":
		dataDir := os.Getenv("DATA_DIR")
		if dataDir == "" {
			dataDir = "./data"
		}
		fs, err := store.NewFileStore(dataDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file store", zap.String("dir", dataDir))
		return fs, nil, nil

	case "firestore":
		projectID := os.Getenv("GCP_PROJECT_ID")
		if projectID == "" {
			logger.Fatal("GCP_PROJECT_ID is required for the firestore backend")
		}
		fs, err := store.NewFirestoreStore(ctx, projectID,
			os.Getenv("FIRESTORE_DATABASE"),
			os.Getenv("STORE_ROOT"),
			os.Getenv("GCP_CREDENTIALS_FILE"))
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using firestore store", zap.String("project", projectID))
		return fs, fs.Close, nil

	default:
		logger.Info("Using in-memory store")
		return store.NewMemoryStore(), nil, nil
	}
}
