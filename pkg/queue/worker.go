/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/config"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
)

// Handler processes one leased job. Returning an error re-queues the job
// until its retry budget runs out.
type Handler func(ctx context.Context, job *Job) error

// Payloads of the built-in job types.
type (
	RunMigrationsPayload struct {
		TenantId string `json:"tenantId"`
	}
	DeleteAllBeforePayload struct {
		BucketId string `json:"bucketId"`
		Before   string `json:"before"`
		Tenant   string `json:"tenant"`
		ReqId    string `json:"reqId"`
	}
	MoveJobsPayload struct {
		FromQueue                   string `json:"fromQueue"`
		ToQueue                     string `json:"toQueue"`
		DeleteJobsFromOriginalQueue bool   `json:"deleteJobsFromOriginalQueue"`
	}
)

// Worker drains the queue with a bounded pool of goroutines and runs the
// periodic archive sweep.
type Worker struct {
	queue         *Queue
	handlers      map[string]Handler
	handlerLock   sync.RWMutex
	concurrent    int
	fetchInterval time.Duration
	cron          *cron.Cron
	cancel        context.CancelFunc
	done          sync.WaitGroup
}

// NewWorker builds a worker over the queue with the configured concurrency.
func NewWorker(queue *Queue) *Worker {
	w := &Worker{
		queue:         queue,
		handlers:      map[string]Handler{},
		concurrent:    config.GetQueueWorkerConcurrent(),
		fetchInterval: time.Duration(config.GetQueueFetchIntervalMs()) * time.Millisecond,
		cron:          cron.New(),
	}
	// queue housekeeping is a job type too, so operators can trigger it
	w.Register(JobMoveJobs, w.handleMoveJobs)
	w.Register(JobUpgradePgBossV10, w.handleUpgrade)
	return w
}

// Register binds a handler to a job name. Unknown job names fail their jobs.
func (w *Worker) Register(name string, handler Handler) {
	w.handlerLock.Lock()
	defer w.handlerLock.Unlock()
	w.handlers[name] = handler
}

// Start launches the worker pool and the archive sweep. It returns
// immediately; Stop drains.
func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	for i := 0; i < w.concurrent; i++ {
		w.done.Add(1)
		go w.loop(runCtx)
	}
	sweepSpec := fmt.Sprintf("@every %ds", config.GetQueueSweepIntervalSecond())
	if _, err := w.cron.AddFunc(sweepSpec, func() { w.sweep(runCtx) }); err != nil {
		cancel()
		return err
	}
	w.cron.Start()
	klog.Infof("queue worker started: concurrent=%d, fetch-interval=%s", w.concurrent, w.fetchInterval)
	return nil
}

// Stop cancels the pool and waits for in-flight jobs.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	w.done.Wait()
	klog.Infof("queue worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	defer w.done.Done()
	ticker := time.NewTicker(w.fetchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for {
			job, err := w.queue.Fetch(ctx, DefaultQueue)
			if err != nil {
				klog.V(4).Infof("queue fetch failed: %v", err)
				break
			}
			if job == nil {
				break
			}
			w.run(ctx, job)
		}
	}
}

func (w *Worker) run(ctx context.Context, job *Job) {
	w.handlerLock.RLock()
	handler, ok := w.handlers[job.Name]
	w.handlerLock.RUnlock()
	if !ok {
		klog.Errorf("no handler registered for job %s (%s)", job.Name, job.Id)
		if err := w.queue.Fail(ctx, job.Id, fmt.Errorf("no handler for %s", job.Name)); err != nil {
			klog.ErrorS(err, "failed to park job", "id", job.Id)
		}
		return
	}
	if err := handler(ctx, job); err != nil {
		klog.ErrorS(err, "job failed", "name", job.Name, "id", job.Id, "retry", job.RetryCount)
		if failErr := w.queue.Fail(ctx, job.Id, err); failErr != nil {
			klog.ErrorS(failErr, "failed to record job failure", "id", job.Id)
		}
		return
	}
	if err := w.queue.Complete(ctx, job.Id); err != nil {
		klog.ErrorS(err, "failed to complete job", "id", job.Id)
	}
}

func (w *Worker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-time.Duration(config.GetQueueArchiveAfterSecond()) * time.Second)
	n, err := w.queue.Archive(ctx, cutoff)
	if err != nil {
		klog.ErrorS(err, "queue archive sweep failed")
		return
	}
	if n > 0 {
		klog.V(4).Infof("archived %d terminal jobs", n)
	}
}

func (w *Worker) handleMoveJobs(ctx context.Context, job *Job) error {
	var payload MoveJobsPayload
	if err := jsonutils.Unmarshal(job.Payload, &payload); err != nil {
		return err
	}
	_, err := w.queue.MoveJobs(ctx, payload.FromQueue, payload.ToQueue, payload.DeleteJobsFromOriginalQueue)
	return err
}

// handleUpgrade is the housekeeping slot kept for storage-format upgrades;
// the current format needs none.
func (w *Worker) handleUpgrade(_ context.Context, job *Job) error {
	klog.Infof("queue upgrade job %s: nothing to do for the current format", job.Id)
	return nil
}
