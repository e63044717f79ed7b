// Package app wires storage, queue, services and the ops server into one
// runnable worker process. It acts as the Facade for the entire system.
package app

import (
	"context"
	"fmt"
	"log"

	"vulnbridge/internal/adapters/queue"
	"vulnbridge/internal/adapters/reporting"
	"vulnbridge/internal/adapters/storage"
	"vulnbridge/internal/adapters/web"
	"vulnbridge/internal/config"
	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
	"vulnbridge/internal/core/services/ingest"
	"vulnbridge/internal/core/services/jobs"
	"vulnbridge/internal/core/services/report"
	"vulnbridge/internal/mock"
	"vulnbridge/internal/telemetry"
)

// Application holds the core components of the worker process.
type Application struct {
	Config     *config.Config
	Store      ports.Store
	Broker     ports.Broker
	JobService *jobs.Service
	Worker     *ingest.Worker
	OpsServer  *web.OpsServer
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}
	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	store, err := storage.NewSQLiteStore(app.Config.DBPath)
	if err != nil {
		return err
	}
	app.Store = store

	if app.Config.MockMode {
		log.Println("Mock Mode Active: using in-memory queue")
		app.Broker = mock.NewBroker()
	} else {
		broker, err := queue.NewRedisBroker(context.Background(), app.Config.RedisURL)
		if err != nil {
			return err
		}
		app.Broker = broker
	}

	// 2. Domain Services
	app.JobService = jobs.NewService(app.Store, app.Broker)

	processor := ingest.NewProcessor(app.Store, app.Config.UploadRoot, app.Config.MergeBatchSize)
	generator := report.NewGenerator(app.Store, reporting.NewPDFExporter(), app.Config.ReportDir)

	// 3. Worker
	// ml_analysis and jira_creation payloads are accepted by Enqueue but have
	// no handler here; their queues are drained by dedicated services.
	app.Worker = ingest.NewWorker(app.Broker, app.Config.PopTimeout)
	app.Worker.Register(domain.JobParseScan, processor.Process)
	app.Worker.Register(domain.JobReportGeneration, generator.Process)

	// 4. Ops HTTP surface
	app.OpsServer = web.NewOpsServer(app.Config.OpsAddr, app.JobService)

	return nil
}

// Run starts the ops server and the worker loops, blocking until the context
// is cancelled.
func (app *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := app.OpsServer.Start(); err != nil {
			errCh <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx := context.WithoutCancel(ctx)
		if err := app.OpsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Ops server shutdown failed: %v", err)
		}
	}()

	app.Worker.Run(ctx)

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// Close releases infrastructure handles.
func (app *Application) Close() {
	if app.Broker != nil {
		if err := app.Broker.Close(); err != nil {
			log.Printf("Broker close failed: %v", err)
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			log.Printf("Store close failed: %v", err)
		}
	}
}
