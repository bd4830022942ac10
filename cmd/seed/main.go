// Command seed loads the starter catalog and an admin account into the
// configured record store.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"solestore/internal/db"
	"solestore/internal/domain/storage"
	"solestore/internal/seed"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "seed file (YAML or JSON); the built-in catalog when empty")
	reset := flag.Bool("reset", false, "empty every collection before seeding")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	zl, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger := zl.Sugar()
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	records, closeRecords, err := db.OpenRecords(ctx, db.StoreConfig{
		Driver:      strings.ToLower(os.Getenv("STORE_DRIVER")),
		DataDir:     envOr("DATA_DIR", "./data"),
		Addr:        os.Getenv("DB_ADDR"),
		MaxConns:    2,
		MaxIdleTime: "1m",
	}, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeRecords()

	store := storage.NewContainer(records, storage.Options{})

	data, err := loadData(*file)
	if err != nil {
		logger.Fatal(err)
	}

	if *reset {
		if err := records.Reset(ctx); err != nil {
			logger.Fatalw("reset failed", "error", err)
		}
		logger.Warnw("collections emptied", "collections", records.Names())
	}

	var admin *seed.Admin
	if email := os.Getenv("SEED_ADMIN_EMAIL"); email != "" {
		admin = &seed.Admin{
			Email:     email,
			Password:  os.Getenv("SEED_ADMIN_PASSWORD"),
			FirstName: envOr("SEED_ADMIN_FIRST_NAME", "Store"),
			LastName:  envOr("SEED_ADMIN_LAST_NAME", "Admin"),
		}
	} else {
		logger.Warn("SEED_ADMIN_EMAIL is not set, no admin account will be created")
	}

	seeder := &seed.Seeder{
		Products: store.Products,
		Users:    store.Users,
		Logger:   logger,
	}
	res, err := seeder.Run(ctx, data, admin)
	if err != nil {
		logger.Fatalw("seeding failed", "error", err)
	}

	logger.Infow("seeding complete",
		"categories_created", res.CategoriesCreated,
		"products_created", res.ProductsCreated,
		"admin_created", res.AdminCreated,
	)
}

func loadData(path string) (*seed.Data, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.Load(path)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
