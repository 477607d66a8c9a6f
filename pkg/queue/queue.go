/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package queue

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"k8s.io/klog/v2"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/jsonutils"
)

// Job names understood by the workers.
const (
	JobRunMigrationsOnTenants     = "RunMigrationsOnTenants"
	JobObjectAdminDeleteAllBefore = "ObjectAdminDeleteAllBefore"
	JobMoveJobs                   = "MoveJobs"
	JobUpgradePgBossV10           = "UpgradePgBossV10"
)

// Job states.
const (
	StatusCreated   = "created"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusArchived  = "archived"
)

const TJob = "jobs"

var (
	insertJobCmd = fmt.Sprintf(`INSERT INTO %s (id, queue, name, payload, status, retry_count, retry_limit, created_at)
		VALUES (:id, :queue, :name, :payload, :status, :retry_count, :retry_limit, now())`, TJob)
	fetchJobCmd = fmt.Sprintf(`UPDATE %s SET status = '%s', started_at = now()
		WHERE id = (
			SELECT id FROM %s
			WHERE queue = $1 AND status = '%s'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`, TJob, StatusActive, TJob, StatusCreated)
	completeJobCmd = fmt.Sprintf(`UPDATE %s SET status = '%s', completed_at = now() WHERE id = $1`,
		TJob, StatusCompleted)
	failJobCmd = fmt.Sprintf(`UPDATE %s
		SET status = CASE WHEN retry_count + 1 < retry_limit THEN '%s' ELSE '%s' END,
		    retry_count = retry_count + 1,
		    last_error = $2,
		    completed_at = CASE WHEN retry_count + 1 < retry_limit THEN NULL ELSE now() END
		WHERE id = $1`, TJob, StatusCreated, StatusFailed)
	pendingCountCmd = fmt.Sprintf(`SELECT count(*) FROM %s WHERE queue = $1 AND name = $2 AND status IN ('%s', '%s')`,
		TJob, StatusCreated, StatusActive)
	archiveJobsCmd = fmt.Sprintf(`UPDATE %s SET status = '%s'
		WHERE status IN ('%s', '%s') AND completed_at < $1`,
		TJob, StatusArchived, StatusCompleted, StatusFailed)
	moveJobsCmd = fmt.Sprintf(`UPDATE %s SET queue = $2 WHERE queue = $1 AND status = '%s' RETURNING id`,
		TJob, StatusCreated)
	copyJobsCmd = fmt.Sprintf(`INSERT INTO %s (id, queue, name, payload, status, retry_count, retry_limit, created_at)
		SELECT gen_random_uuid(), $2, name, payload, status, retry_count, retry_limit, created_at
		FROM %s WHERE queue = $1 AND status = '%s' RETURNING id`, TJob, TJob, StatusCreated)
)

// DefaultQueue is the queue jobs land on unless redirected by MoveJobs.
const DefaultQueue = "default"

// Job is one queued unit of work.
type Job struct {
	Id          string         `db:"id"`
	Queue       string         `db:"queue"`
	Name        string         `db:"name"`
	Payload     []byte         `db:"payload"`
	Status      string         `db:"status"`
	RetryCount  int            `db:"retry_count"`
	RetryLimit  int            `db:"retry_limit"`
	LastError   sql.NullString `db:"last_error"`
	CreatedAt   pq.NullTime    `db:"created_at"`
	StartedAt   pq.NullTime    `db:"started_at"`
	CompletedAt pq.NullTime    `db:"completed_at"`
}

// Queue is the persistent job queue on the registry database. Jobs are
// leased at-least-once through FOR UPDATE SKIP LOCKED fetches; handlers
// must be idempotent.
type Queue struct {
	db         *sqlx.DB
	retryLimit int
}

// New binds the queue to the registry database.
func New(client *dbclient.Client, retryLimit int) (*Queue, error) {
	db, err := client.DB()
	if err != nil {
		return nil, err
	}
	if retryLimit <= 0 {
		retryLimit = 1
	}
	return &Queue{db: db, retryLimit: retryLimit}, nil
}

// Send enqueues a job and returns its id. The payload is serialized to JSON.
func (q *Queue) Send(ctx context.Context, name string, payload any) (string, error) {
	if name == "" {
		return "", storageerrors.NewMissingParameter("job name")
	}
	job := &Job{
		Id:         uuid.NewString(),
		Queue:      DefaultQueue,
		Name:       name,
		Payload:    jsonutils.MarshalSilently(payload),
		Status:     StatusCreated,
		RetryLimit: q.retryLimit,
	}
	if _, err := q.db.NamedExecContext(ctx, insertJobCmd, job); err != nil {
		return "", utils.NormalizeError(err)
	}
	return job.Id, nil
}

// Fetch leases the oldest created job on the queue, or returns nil when the
// queue is drained.
func (q *Queue) Fetch(ctx context.Context, queue string) (*Job, error) {
	var job Job
	if err := q.db.GetContext(ctx, &job, fetchJobCmd, queue); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, utils.NormalizeError(err)
	}
	return &job, nil
}

// Complete marks a leased job done.
func (q *Queue) Complete(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, completeJobCmd, id)
	return utils.NormalizeError(err)
}

// Fail records a job failure; the job is re-queued until its retry budget
// runs out, then parked as failed.
func (q *Queue) Fail(ctx context.Context, id string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	_, err := q.db.ExecContext(ctx, failJobCmd, id, message)
	return utils.NormalizeError(err)
}

// Pending counts jobs of the given name still waiting or running.
func (q *Queue) Pending(ctx context.Context, name string) (int, error) {
	var count int
	if err := q.db.GetContext(ctx, &count, pendingCountCmd, DefaultQueue, name); err != nil {
		return 0, utils.NormalizeError(err)
	}
	return count, nil
}

// Archive parks terminal jobs older than the cutoff.
func (q *Queue) Archive(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, archiveJobsCmd, before)
	if err != nil {
		return 0, utils.NormalizeError(err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// MoveJobs relocates the waiting jobs of one queue onto another. When
// deleteFromOriginal is set the rows move; otherwise they are copied.
func (q *Queue) MoveJobs(ctx context.Context, from, to string, deleteFromOriginal bool) (int, error) {
	if from == "" || to == "" {
		return 0, storageerrors.NewMissingParameter("fromQueue/toQueue")
	}
	cmd := copyJobsCmd
	if deleteFromOriginal {
		cmd = moveJobsCmd
	}
	var ids []string
	if err := q.db.SelectContext(ctx, &ids, cmd, from, to); err != nil {
		return 0, utils.NormalizeError(err)
	}
	klog.Infof("moved %d jobs from queue %s to %s (delete=%v)", len(ids), from, to, deleteFromOriginal)
	return len(ids), nil
}
