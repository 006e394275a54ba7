// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ledgerline/settler"
	"github.com/ledgerline/settler/internal/database"
	"github.com/ledgerline/settler/pkg/audittrail"
	"github.com/ledgerline/settler/pkg/batch"
	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/handoff"
	"github.com/ledgerline/settler/pkg/kv"
	"github.com/ledgerline/settler/pkg/lock"
	"github.com/ledgerline/settler/pkg/mapping"
	"github.com/ledgerline/settler/pkg/notify"
	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/ratelimit"
	"github.com/ledgerline/settler/pkg/schedule"
	"github.com/ledgerline/settler/pkg/secrets"
	"github.com/ledgerline/settler/pkg/stream"
	"github.com/ledgerline/settler/pkg/upload"
	"github.com/ledgerline/settler/pkg/util"
	"github.com/ledgerline/settler/pkg/vault"
	"github.com/ledgerline/settler/pkg/verification"

	"github.com/moov-io/base/admin"
)

var (
	flagConfigFile = flag.String("config", "", "Filepath for config file to load")
)

func main() {
	flag.Parse()

	cfg, err := config.FromFile(util.Or(os.Getenv("CONFIG_FILE"), *flagConfigFile))
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	logger := cfg.Logger
	logger.Log("startup", fmt.Sprintf("Starting settler version %s", settler.Version))

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	// migrate database
	db, err := database.New(ctx, logger, cfg.Database)
	if err != nil {
		panic(fmt.Sprintf("error creating database: %v", err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Log("exit", err)
		}
	}()

	// Listen for application termination.
	errs := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	// Spin up admin HTTP server
	adminServer := admin.NewServer(cfg.Admin.BindAddress)
	adminServer.AddVersionHandler(settler.Version) // Setup 'GET /version'
	go func() {
		logger.Log("admin", fmt.Sprintf("listening on %s", adminServer.BindAddr()))
		if err := adminServer.Listen(); err != nil {
			err = fmt.Errorf("problem starting admin http: %v", err)
			logger.Log("admin", err)
			errs <- err
		}
	}()
	defer adminServer.Shutdown()

	// Fail-closed encryption keeper for bank details and strategy payloads
	keeper, err := secrets.OpenSecretKeeper(ctx, "settler-bank-details", os.Getenv("CLOUD_PROVIDER"))
	if err != nil {
		panic(err)
	}
	stringKeeper := secrets.NewStringKeeper(keeper, 10*time.Second)

	store := kv.NewSQLStore(db)

	ordersClient := orders.NewClient(logger, db, stringKeeper)

	notifier, err := notify.NewMultiSender(logger, cfg.Notifications)
	if err != nil {
		panic(fmt.Sprintf("problem setting up notifications: %v", err))
	}

	topic, err := stream.OpenTopic(ctx, cfg.Audit.Stream)
	if err != nil {
		panic(fmt.Sprintf("problem opening audit stream: %v", err))
	}
	if topic != nil {
		defer topic.Shutdown(ctx)
	}
	events := stream.NewPublisher(topic)

	trail, err := audittrail.NewStorage(cfg.Audit.Trail)
	if err != nil {
		panic(fmt.Sprintf("problem opening audit trail: %v", err))
	}
	defer trail.Close()

	limiter := ratelimit.NewLimiter(logger, cfg.RateLimit, store)

	verifyRepo := verification.NewRepository(db)
	manager, err := verification.NewManager(logger, cfg.Verification, verifyRepo, ordersClient, limiter,
		verification.NewMicroDeposits(logger, cfg.Verification.MicroDeposits, verifyRepo, stringKeeper,
			verification.NewStreamOriginator(logger, events)),
		verification.NewManual(logger, cfg.Verification.Manual, verifyRepo, notifier),
		verification.NewInstant(logger, cfg.Verification.Instant, verifyRepo, stringKeeper, ordersClient,
			verification.NewHTTPProvider(logger, cfg.Verification.Instant)),
	)
	if err != nil {
		panic(fmt.Sprintf("problem setting up verification: %v", err))
	}
	verification.RegisterAdminRoutes(logger, adminServer, manager)

	handoffService := handoff.NewService(logger, cfg.Handoff, store, limiter)
	handoff.RegisterAdminRoutes(logger, adminServer, handoffService)

	fileVault, err := vault.New(logger, cfg.Storage)
	if err != nil {
		panic(fmt.Sprintf("problem setting up vault: %v", err))
	}

	agent, err := upload.New(logger, cfg.ODFI)
	if err != nil {
		panic(fmt.Sprintf("problem setting up transfer agent: %v", err))
	}
	defer agent.Close()

	registry, err := mapping.NewRegistry(mapping.DefaultProfile(map[string]string{
		"destination":           cfg.ODFI.Destination,
		"destinationName":       cfg.ODFI.DestinationName,
		"origin":                cfg.ODFI.RoutingNumber,
		"originName":            cfg.ODFI.OriginName,
		"companyName":           cfg.ODFI.OriginName,
		"companyIdentification": cfg.ODFI.CompanyIdentification,
		"routingNumber":         cfg.ODFI.RoutingNumber,
	}))
	if err != nil {
		panic(fmt.Sprintf("problem setting up mapping profiles: %v", err))
	}

	runner, err := batch.NewRunner(batch.Environment{
		Logger:   logger,
		Config:   cfg.Batch,
		ODFI:     cfg.ODFI,
		Repo:     batch.NewRepository(db),
		Orders:   ordersClient,
		Profiles: registry,
		Locks:    lock.NewLocker(logger, store, events),
		Vault:    fileVault,
		Trail:    trail,
		Agent:    agent,
		Events:   events,
		Notifier: notifier,
	})
	if err != nil {
		panic(fmt.Sprintf("problem setting up batch runner: %v", err))
	}
	batch.RegisterAdminRoutes(logger, adminServer, runner)

	// Trigger settlement runs at the configured cutoff windows
	if len(cfg.ODFI.Cutoffs.Windows) > 0 {
		cutoffs, err := schedule.ForCutoffTimes(cfg.ODFI.Cutoffs)
		if err != nil {
			panic(fmt.Sprintf("problem setting up cutoff times: %v", err))
		}
		defer cutoffs.Stop()
		go func() {
			for range cutoffs.C {
				result := runner.Run()
				logger.Log(
					"batch", "cutoff run finished",
					"success", result.Success,
					"batchID", result.BatchID,
					"orders", result.OrderCount,
					"errors", strings.Join(result.Errors, "; "),
				)
			}
		}()
		logger.Log("startup", fmt.Sprintf("scheduled cutoff windows %v", cfg.ODFI.Cutoffs.Windows))
	} else {
		logger.Log("startup", "no cutoff windows configured, runs are manual")
	}

	if err := <-errs; err != nil {
		logger.Log("exit", err)
	}
}
