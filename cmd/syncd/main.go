// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/finnqiao/umilog-sync/internal/capture"
	"github.com/finnqiao/umilog-sync/internal/config"
	"github.com/finnqiao/umilog-sync/internal/crypto"
	"github.com/finnqiao/umilog-sync/internal/logger"
	"github.com/finnqiao/umilog-sync/internal/queue"
	"github.com/finnqiao/umilog-sync/internal/remote"
	"github.com/finnqiao/umilog-sync/internal/resolver"
	"github.com/finnqiao/umilog-sync/internal/store"
	"github.com/finnqiao/umilog-sync/internal/workers"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewFileLogger("umilog-syncd")
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	// local storage, opened through the hooked driver so commits on
	// syncable tables are observed
	bridge := store.NewCaptureBridge(log)
	db, err := store.NewConnectSQLiteWithCapture(ctx, cfg.Storage.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error connecting local database")
	}
	defer db.Close()

	if err = db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("error migrating local database")
	}

	// field encryption key, loaded or generated on first run
	keystore := crypto.NewFileKeystore(cfg.App.KeystoreDir, cfg.App.KeyService, cfg.App.KeyAccount)
	encryptor, err := crypto.NewFieldEncryptor(keystore)
	if err != nil {
		log.Fatal().Err(err).Msg("error initializing field encryptor")
	}

	queueRepo := store.NewQueueRepository(db, log)
	recordsRepo := store.NewRecordsRepository(db, log)
	conflictRepo := store.NewConflictRepository(db, log)
	silentRecords := store.NewSilentRecords(recordsRepo, bridge)

	syncQueue := queue.NewSyncQueue(queueRepo, queue.Options{
		MaxRetries:  cfg.Workers.MaxRetries,
		BaseBackoff: cfg.Workers.BaseBackoff,
		LeaseTTL:    cfg.Workers.LeaseTTL,
	}, log)

	observer := capture.NewChangeCapture(syncQueue, recordsRepo, recordsRepo, log)
	bridge.SetObserver(observer)
	go bridge.Run(ctx)

	recordStore := remote.NewHTTPRecordStore(remote.HTTPClientConfig{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.RequestTimeout,
	})
	if cfg.Remote.AuthToken != "" {
		recordStore.SetToken(cfg.Remote.AuthToken)
	}

	conflictResolver := resolver.NewResolver(conflictRepo, log)

	uploader := workers.NewUploader(syncQueue, recordStore, encryptor, silentRecords, workers.UploaderOptions{
		Interval:  cfg.Workers.UploadInterval,
		BatchSize: cfg.Workers.BatchSize,
	}, log)
	puller := workers.NewPuller(recordStore, conflictResolver, silentRecords, encryptor, workers.PullerOptions{
		Interval: cfg.Workers.PullInterval,
	}, log)

	engine := workers.NewWorkers(uploader, puller)
	engine.Start(ctx)
	log.Info().Msg("sync engine started")

	<-ctx.Done()
	engine.Stop()
	log.Info().Msg("sync engine stopped gracefully")
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
