/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package server wires the storage services together and runs the HTTP
// front end plus the background workers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/backend"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/cluster"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/handlers"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
	storageklog "github.com/AMD-AIG-AIMA/PrimusStore/pkg/klog"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/locks"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/migrations"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/objects"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/options"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/pubsub"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/queue"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/scanner"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/shard"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tenant"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/timeutil"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/trace"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/tus"
)

// Server owns the service graph: the registry, the blob backend, the
// locker, the object manager, the TUS engine, the job queue and its
// worker, the migration fleet, the shard allocator, the orphan scanner,
// the cluster watcher, and the periodic sweeps. Everything starts with
// Start and drains on Stop.
type Server struct {
	opts       *options.Options
	httpServer *http.Server

	registry  *tenant.Registry
	store     backend.Backend
	bus       *pubsub.Bus
	locker    locks.Locker
	manager   *objects.Manager
	tusEngine *tus.Engine
	scanner   *scanner.Scanner
	migrator  *migrations.Migrator
	fleet     *migrations.Fleet
	allocator *shard.Allocator
	jobQueue  *queue.Queue
	worker    *queue.Worker
	watcher   *cluster.Watcher
	sweeps    *cron.Cron

	ctx      context.Context
	cancel   context.CancelFunc
	isInited bool
}

func NewServer() (*Server, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := &Server{
		opts:   &options.Options{},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) init() error {
	gin.SetMode(gin.ReleaseMode)
	var err error
	if err = s.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if err = s.initLogs(); err != nil {
		klog.ErrorS(err, "failed to init logs")
		return err
	}
	if err = s.initConfig(); err != nil {
		klog.ErrorS(err, "failed to init config")
		return err
	}
	if err = trace.InitTracer("primus-store"); err != nil {
		// tracing is best-effort; the server runs without a collector
		klog.Warningf("failed to init tracer: %v", err)
	}
	if err = s.initServices(); err != nil {
		klog.ErrorS(err, "failed to init services")
		return err
	}
	if err = s.initSweeps(); err != nil {
		klog.ErrorS(err, "failed to init sweeps")
		return err
	}
	s.isInited = true
	return nil
}

// Start launches the worker pool, the sweeps, the cluster watcher and the
// HTTP server, then blocks until a termination signal arrives.
func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init primus-store first")
		return
	}
	gin.EnableJsonDecoderDisallowUnknownFields()

	klog.Infof("starting primus-store")
	if err := s.worker.Start(s.ctx); err != nil {
		klog.ErrorS(err, "failed to start queue worker")
		os.Exit(-1)
	}
	s.sweeps.Start()
	s.watcher.Start(s.ctx)

	go func() {
		if err := s.startHttpServer(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start http-server")
			os.Exit(-1)
		}
	}()

	<-s.ctx.Done()
	s.Stop()
}

// Stop drains in dependency order: stop accepting requests, stop the
// background workers, then close the shared connections.
func (s *Server) Stop() {
	timeout := time.Duration(config.GetServerShutdownTimeoutSecond()) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			klog.ErrorS(err, "failed to shutdown http-server")
		}
	}
	s.cancel()
	s.watcher.Stop()
	sweepCtx := s.sweeps.Stop()
	<-sweepCtx.Done()
	s.worker.Stop()
	s.bus.Close()
	s.registry.Close()
	if err := trace.CloseTracer(); err != nil {
		klog.Warningf("failed to close tracer: %v", err)
	}
	klog.Info("primus-store is stopped")
	klog.Flush()
}

func (s *Server) initLogs() error {
	return storageklog.Init(s.opts.LogfilePath, s.opts.LogFileSize)
}

func (s *Server) initConfig() error {
	fullPath, err := filepath.Abs(s.opts.Config)
	if err != nil {
		return err
	}
	if err = config.LoadConfig(fullPath); err != nil {
		return fmt.Errorf("config path: %s, err: %v", fullPath, err)
	}
	return nil
}

func (s *Server) initServices() error {
	var err error
	client := dbclient.NewClient()
	s.registry = tenant.NewRegistry()
	if s.store, err = backend.New(s.ctx); err != nil {
		return err
	}
	s.bus = pubsub.NewBus(s.ctx, client.SourceName())
	if s.locker, err = locks.New(s.registry, s.bus, s.store); err != nil {
		return err
	}
	if s.jobQueue, err = queue.New(client, config.GetQueueRetryLimit()); err != nil {
		return err
	}
	s.manager = objects.NewManager(s.registry, s.store, s.locker, s.jobQueue)
	s.tusEngine = tus.NewEngine(s.registry, s.store, s.locker)
	s.scanner = scanner.New(s.registry, s.store)
	s.migrator = migrations.NewMigrator(s.registry)
	s.fleet = migrations.NewFleet(s.registry, s.jobQueue, s.migrator)
	if s.allocator, err = shard.New(client); err != nil {
		return err
	}
	s.watcher = cluster.NewWatcher()

	s.worker = queue.NewWorker(s.jobQueue)
	s.worker.Register(queue.JobRunMigrationsOnTenants, s.fleet.HandleJob)
	s.worker.Register(queue.JobObjectAdminDeleteAllBefore, s.handleDeleteAllBefore)
	return nil
}

// initSweeps schedules the periodic maintenance passes. The queue archive
// sweep lives in the worker itself.
func (s *Server) initSweeps() error {
	s.sweeps = cron.New()
	sweeps := []struct {
		name     string
		interval int
		run      func()
	}{
		{"zombie-locks", config.GetLockZombieSweepIntervalSecond(), func() {
			if n, err := s.locker.CleanupZombieLocks(s.ctx); err != nil {
				klog.ErrorS(err, "zombie lock sweep failed")
			} else if n > 0 {
				klog.Infof("removed %d zombie locks", n)
			}
		}},
		{"shard-leases", config.GetShardExpireSweepIntervalSecond(), func() {
			if n, err := s.allocator.ExpireLeases(s.ctx); err != nil {
				klog.ErrorS(err, "shard lease sweep failed")
			} else if n > 0 {
				klog.Infof("reclaimed %d expired shard reservations", n)
			}
		}},
		{"tus-expiry", config.GetTusSweepIntervalSecond(), func() {
			s.tusEngine.SweepExpired(s.ctx)
		}},
	}
	for _, sweep := range sweeps {
		spec := fmt.Sprintf("@every %ds", sweep.interval)
		if _, err := s.sweeps.AddFunc(spec, sweep.run); err != nil {
			return fmt.Errorf("failed to schedule %s sweep: %v", sweep.name, err)
		}
	}
	return nil
}

func (s *Server) startHttpServer() error {
	if config.GetServerPort() <= 0 {
		return fmt.Errorf("the server port is not defined")
	}
	handler, err := handlers.InitHttpHandlers(&handlers.Dependencies{
		Registry:  s.registry,
		Store:     s.store,
		Manager:   s.manager,
		TusEngine: s.tusEngine,
		Scanner:   s.scanner,
		Migrator:  s.migrator,
		Fleet:     s.fleet,
		Allocator: s.allocator,
		JobQueue:  s.jobQueue,
	})
	if err != nil {
		return err
	}
	addr := fmt.Sprintf(":%d", config.GetServerPort())
	s.httpServer = &http.Server{Addr: addr, Handler: handler}
	klog.Infof("http-server listen port: %d", config.GetServerPort())
	return s.httpServer.ListenAndServe()
}

func (s *Server) handleDeleteAllBefore(ctx context.Context, job *queue.Job) error {
	var payload queue.DeleteAllBeforePayload
	if err := jsonutils.Unmarshal(job.Payload, &payload); err != nil {
		return err
	}
	before, err := timeutil.ParseRFC3339(payload.Before)
	if err != nil {
		return err
	}
	deleted, err := s.manager.DeleteAllBefore(ctx, payload.Tenant, payload.BucketId, before)
	if err != nil {
		return err
	}
	klog.Infof("purged %d versions before %s, tenant: %s, bucket: %s, req: %s",
		deleted, payload.Before, payload.Tenant, payload.BucketId, payload.ReqId)
	return nil
}
