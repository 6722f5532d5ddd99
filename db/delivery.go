package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

const (
	deliveryJobColumns = `id, entity, entity_type, sender_id, recipient_id, status, attempts, next_attempt_at,
		last_error, created_at, updated_at`

	sqlInsertDeliveryJob = `INSERT INTO delivery_jobs(id, entity, entity_type, sender_id, recipient_id, status, attempts,
			next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlClaimDeliveryJobs = `UPDATE delivery_jobs SET status = 'in_progress', claimed_at = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM delivery_jobs WHERE status = 'pending' AND next_attempt_at <= ?
			ORDER BY next_attempt_at LIMIT ?
		)
		RETURNING ` + deliveryJobColumns
	sqlCompleteDeliveryJob = `UPDATE delivery_jobs SET status = 'complete', last_error = NULL, updated_at = ? WHERE id = ?`
	sqlRetryDeliveryJob    = `UPDATE delivery_jobs SET status = 'pending', attempts = attempts + 1, last_error = ?,
		next_attempt_at = ?, updated_at = ? WHERE id = ?`
	sqlFailDeliveryJob = `UPDATE delivery_jobs SET status = 'failed', attempts = attempts + 1, last_error = ?,
		updated_at = ? WHERE id = ?`
	sqlResetStaleDeliveryJobs = `UPDATE delivery_jobs SET status = 'pending', updated_at = ?
		WHERE status = 'in_progress' AND claimed_at < ?`

	sqlSelectDeliveryJobs = `SELECT ` + deliveryJobColumns + ` FROM delivery_jobs
		WHERE status = ? ORDER BY updated_at DESC LIMIT ?`
	sqlSelectAllDeliveryJobs = `SELECT ` + deliveryJobColumns + ` FROM delivery_jobs
		WHERE status != 'complete' ORDER BY updated_at DESC LIMIT ?`
	sqlRequeueDeliveryJob = `UPDATE delivery_jobs SET status = 'pending', next_attempt_at = ?, updated_at = ?,
			attempts = CASE WHEN status = 'failed' THEN 0 ELSE attempts END
		WHERE id = ? AND status IN ('pending', 'failed')`
	sqlDeleteDeliveryJob = `DELETE FROM delivery_jobs WHERE id = ?`
)

func scanDeliveryJob(row scanner) (*domain.DeliveryJob, error) {
	var j domain.DeliveryJob
	var next int64
	var lastError sql.NullString
	err := row.Scan(&j.Id, &j.Entity, &j.EntityType, &j.SenderId, &j.RecipientId, &j.Status, &j.Attempts, &next,
		&lastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	j.NextAttemptAt = time.Unix(next, 0).UTC()
	j.LastError = lastError.String
	return &j, nil
}

// EnqueueDeliveryJob stores j as pending. A zero NextAttemptAt makes it due
// immediately.
func (db *DB) EnqueueDeliveryJob(ctx context.Context, j *domain.DeliveryJob) error {
	if j.Id == uuid.Nil {
		j.Id = uuid.New()
	}
	now := time.Now().UTC()
	if j.NextAttemptAt.IsZero() {
		j.NextAttemptAt = now
	}
	j.Status = domain.DeliveryPending
	j.CreatedAt = now
	j.UpdatedAt = now

	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertDeliveryJob, j.Id, j.Entity, j.EntityType, j.SenderId, j.RecipientId,
			j.Status, j.Attempts, j.NextAttemptAt.Unix(), j.CreatedAt, j.UpdatedAt)
		return err
	})
}

// ClaimDeliveryJobs moves up to limit due jobs to in_progress and returns
// them. A job is handed out to one caller only.
func (db *DB) ClaimDeliveryJobs(ctx context.Context, limit int) ([]domain.DeliveryJob, error) {
	var jobs []domain.DeliveryJob
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		jobs = jobs[:0]
		now := time.Now().UTC()
		rows, err := tx.QueryContext(ctx, sqlClaimDeliveryJobs, now.Unix(), now, now.Unix(), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			j, err := scanDeliveryJob(rows)
			if err != nil {
				return err
			}
			jobs = append(jobs, *j)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (db *DB) CompleteDeliveryJob(ctx context.Context, id uuid.UUID) error {
	return db.updateDeliveryJob(ctx, sqlCompleteDeliveryJob, time.Now().UTC(), id)
}

// FailDeliveryJob records a failed attempt. The job is retried at
// nextAttemptAt, or marked failed for good when nextAttemptAt is zero.
func (db *DB) FailDeliveryJob(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	now := time.Now().UTC()
	if nextAttemptAt.IsZero() {
		return db.updateDeliveryJob(ctx, sqlFailDeliveryJob, lastError, now, id)
	}
	return db.updateDeliveryJob(ctx, sqlRetryDeliveryJob, lastError, nextAttemptAt.Unix(), now, id)
}

// ResetStaleDeliveryJobs hands in_progress jobs claimed longer than
// olderThan ago back to the queue.
func (db *DB) ResetStaleDeliveryJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now().UTC()
	var n int64
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlResetStaleDeliveryJobs, now, now.Add(-olderThan).Unix())
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// ListDeliveryJobs returns jobs with the given status, or every unfinished
// job when status is empty.
func (db *DB) ListDeliveryJobs(ctx context.Context, status domain.DeliveryStatus, limit int) ([]domain.DeliveryJob, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = db.db.QueryContext(ctx, sqlSelectAllDeliveryJobs, limit)
	} else {
		rows, err = db.db.QueryContext(ctx, sqlSelectDeliveryJobs, status, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.DeliveryJob
	for rows.Next() {
		j, err := scanDeliveryJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// RetryDeliveryJob makes a pending or failed job due now. Failed jobs
// start over with a fresh attempt budget.
func (db *DB) RetryDeliveryJob(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return db.updateDeliveryJob(ctx, sqlRequeueDeliveryJob, now.Unix(), now, id)
}

// DropDeliveryJob removes a job whatever its state.
func (db *DB) DropDeliveryJob(ctx context.Context, id uuid.UUID) error {
	return db.deleteById(ctx, sqlDeleteDeliveryJob, id)
}

func (db *DB) updateDeliveryJob(ctx context.Context, query string, args ...any) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
