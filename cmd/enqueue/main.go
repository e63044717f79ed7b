// Command enqueue registers a scan file and queues a job for it. Intended
// for operators and integration scripts; the worker does the actual parsing.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"vulnbridge/internal/adapters/queue"
	"vulnbridge/internal/adapters/storage"
	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/services/jobs"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func main() {
	filePath := flag.String("file", "", "Scan file path, relative to the upload root")
	userID := flag.String("user", "", "Owning user id")
	jobType := flag.String("type", string(domain.JobParseScan), "Job type to enqueue")
	source := flag.String("source", "", "Scanner name (optional)")
	redisURL := flag.String("redis", getEnv("VULNBRIDGE_REDIS", "redis://localhost:6379/0"), "Redis connection URL")
	dbPath := flag.String("db", getEnv("VULNBRIDGE_DB", "vulnbridge.db"), "Path to SQLite database")
	uploadRoot := flag.String("uploads", getEnv("VULNBRIDGE_UPLOADS", "uploads"), "Upload root directory")
	flag.Parse()

	if *filePath == "" || *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	if _, err := os.Stat(filepath.Join(*uploadRoot, *filePath)); err != nil {
		log.Fatalf("Scan file not readable: %v", err)
	}

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	broker, err := queue.NewRedisBroker(ctx, *redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer broker.Close()

	scan := &domain.Scan{
		ID:        uuid.NewString(),
		UserID:    *userID,
		FilePath:  *filePath,
		Source:    *source,
		Status:    domain.ScanQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveScan(ctx, scan); err != nil {
		log.Fatalf("Failed to register scan: %v", err)
	}

	service := jobs.NewService(store, broker)
	job, err := service.Enqueue(ctx, jobs.EnqueueRequest{
		JobType:  domain.JobType(*jobType),
		ScanID:   scan.ID,
		UserID:   *userID,
		FilePath: *filePath,
	})
	if err != nil {
		log.Fatalf("Failed to enqueue job: %v", err)
	}

	log.Printf("✓ Scan %s registered, job %s (%s) queued", scan.ID, job.ID, job.Type)
}
