package main

import (
	"context"
	"fmt"

	"github.com/finnqiao/umilog-sync/internal/config"
	httphandler "github.com/finnqiao/umilog-sync/internal/handler/http"
	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/internal/server"
	"github.com/finnqiao/umilog-sync/internal/store"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("umilog-recordstore")
	cfg, err := config.GetServerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	var storage httphandler.RecordStorage
	if cfg.PostgresDSN != "" {
		db, err := store.NewConnectPostgres(context.Background(), cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal().Err(err).Msg("error connecting database")
		}
		defer db.Close()

		storage, err = store.NewPostgresRecords(context.Background(), db, log)
		if err != nil {
			log.Fatal().Err(err).Msg("error creating record storage")
		}
	} else {
		storage = store.NewMemoryRecords(log)
	}

	handler := httphandler.NewHandler(storage, cfg.TokenSignKey, log)

	srv, err := server.NewServer(handler, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating server")
	}

	srv.RunServer()
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
