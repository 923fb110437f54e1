package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"league-backend/internal/auth"
	"league-backend/internal/league"
	"league-backend/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// repair is a one-shot admin pass: purge legacy championship entries, then
// reconcile the registry against the tournament documents. It is never run
// automatically; an operator invokes it after noticing stale data or a
// failed tournament creation.
func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	st, closeStore, err := openStore(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := league.NewService(st, logger)
	sess := &auth.Session{UID: "repair-cli", Admin: true}

	fmt.Println("Championships cleanup:")
	clean, changed, err := svc.PurgeLegacyChampionships(ctx, sess)
	if err != nil {
		logger.Fatal("Cleanup failed", zap.Error(err))
	}
	if changed {
		fmt.Printf("  purged legacy entries, %d pairing(s) kept\n", len(clean))
	} else {
		fmt.Printf("  nothing to purge, %d pairing(s)\n", len(clean))
	}

	fmt.Println("\nRegistry reconciliation:")
	report, err := svc.Repair(ctx, sess)
	if err != nil {
		logger.Fatal("Repair failed", zap.Error(err))
	}
	if len(report.DanglingEntries) == 0 && len(report.OrphanDocuments) == 0 {
		fmt.Println("  registry and tournament documents agree")
	}
	for _, id := range report.DanglingEntries {
		fmt.Printf("  removed registry entry with no document: %s\n", id)
	}
	for _, id := range report.OrphanDocuments {
		fmt.Printf("  orphan tournament document (left in place): %s\n", id)
	}

	fmt.Printf("\nDone. Removed %d registry entr(ies), found %d orphan document(s).\n",
		len(report.DanglingEntries), len(report.OrphanDocuments))
}

// openStore mirrors the server's backend selection.
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
		return fs, fs.Close, nil

	default:
		return store.NewMemoryStore(), nil, nil
	}
}
