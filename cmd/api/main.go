package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/procurement-engine/internal/bootstrap"
	"github.com/andresuchdata/procurement-engine/internal/config"
	"github.com/andresuchdata/procurement-engine/internal/drive"
	"github.com/andresuchdata/procurement-engine/pkg/logger"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	credentials, err := os.ReadFile(cfg.Drive.CredentialsFile)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("file", cfg.Drive.CredentialsFile).Msg("Failed to read Google Drive credentials")
	}

	driveService, err := drive.NewService(ctx, credentials)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
	}

	store, err := bootstrap.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}

	r := mux.NewRouter()

	importer := drive.NewImporter(driveService, store, cfg.Pipeline.InputPrefix)
	drive.NewHandler(driveService, importer).RegisterRoutes(r)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	logger.Log.Info().Str("addr", addr).Msg("Drive import server starting")
	if err := srv.ListenAndServe(); err != nil {
		logger.Log.Fatal().Err(err).Msg("Drive import server stopped")
	}
}
