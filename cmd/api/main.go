package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anayak/bank2tally/internal/api/handlers"
	"github.com/anayak/bank2tally/internal/api/middleware"
	"github.com/anayak/bank2tally/internal/archive"
	"github.com/anayak/bank2tally/internal/classify"
	"github.com/anayak/bank2tally/internal/ledger"
	"github.com/anayak/bank2tally/internal/logger"
	"github.com/anayak/bank2tally/internal/pipeline"
	"github.com/anayak/bank2tally/internal/store"
)

func main() {
	// Parse command-line flags
	var (
		port    = flag.String("port", envOr("PORT", "8080"), "HTTP server port")
		dbPath  = flag.String("db", envOr("LEDGER_DB", "data/ledger-map.db"), "Path to the ledger cache database (or set LEDGER_DB)")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for statement archival (or set GCS_BUCKET)")
		model   = flag.String("model", envOr("GEMINI_MODEL", classify.DefaultModelName), "Gemini model for ledger classification")
		workers = flag.Int("workers", pipeline.DefaultWorkers, "Max concurrent classification calls")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	ctx := context.Background()

	// Persistent narration -> ledger cache
	cache, err := store.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("Failed to open ledger cache")
	}
	defer cache.Close()

	// External classifier
	classifier, err := classify.NewGemini(ctx, *model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini classifier")
	}

	resolver := ledger.NewResolver(cache, classifier, log)
	previewPipeline := pipeline.New(resolver, *workers, log)

	var archiver archive.Archiver
	if *bucket != "" {
		archiver = archive.NewGCS(*bucket)
	} else {
		log.Warn().Msg("No GCS bucket configured - statement archival is disabled")
	}

	// Initialize handlers
	statementsHandler := handlers.NewStatementsHandler(previewPipeline, archiver, log)
	vouchersHandler := handlers.NewVouchersHandler(log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/preview", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.Preview(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/generate-xml", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			vouchersHandler.GenerateXML(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", handlers.Health)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second, // classification of a large batch can be slow
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Str("model", *model).Int("workers", *workers).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown; in-flight batches get a grace period, cache writes
	// already committed stay.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
