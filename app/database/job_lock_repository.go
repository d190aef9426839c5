package database

import (
	"fmt"
	"time"
)

var _ JobLockRepository = (*JobLockRepo)(nil)

// JobLockRepo implements the per-job lease that keeps two runs of the same
// job from overlapping. A lease left behind by a crashed run is stolen once
// its expiry passes.
type JobLockRepo struct {
	db *DB
}

func NewJobLockRepository(db *DB) *JobLockRepo {
	return &JobLockRepo{db: db}
}

func (r *JobLockRepo) AcquireJobLock(jobName string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expires := now.Add(ttl)

	res, err := r.db.Exec(`
		INSERT INTO job_locks (job_name, locked_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (job_name) DO UPDATE SET
			locked_at = excluded.locked_at,
			expires_at = excluded.expires_at
		WHERE job_locks.expires_at <= ?
	`, jobName, now, expires, now)

	if err != nil {
		return false, fmt.Errorf("failed to acquire job lock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock result: %w", err)
	}

	return affected > 0, nil
}

func (r *JobLockRepo) ReleaseJobLock(jobName string) error {
	_, err := r.db.Exec("DELETE FROM job_locks WHERE job_name = ?", jobName)
	if err != nil {
		return fmt.Errorf("failed to release job lock: %w", err)
	}
	return nil
}
