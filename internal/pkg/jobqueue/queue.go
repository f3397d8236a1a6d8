package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "bizhub:jobs:"

	JobKeyPrefix     = keyPrefix + "job:"
	JobQueueKey      = keyPrefix + "pending"
	JobProcessingKey = keyPrefix + "processing"
	JobDelayedKey    = keyPrefix + "delayed"
	JobStatsKey      = keyPrefix + "stats"

	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour

	defaultQueueWorkers = 3
	pollTimeout         = time.Second
	promoteInterval     = time.Second
	stuckAfter          = 10 * time.Minute
	sweepInterval       = time.Minute
)

// Processor runs one job. Returning an error schedules a retry unless the
// error is wrapped with Permanent.
type Processor func(ctx context.Context, job *Job) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Queue is a Redis backed job queue. Job bodies live under JobKeyPrefix, ids
// move between the pending list, the processing list and the delayed set.
type Queue struct {
	client     *redis.Client
	workers    int
	retryDelay func(attempt int) time.Duration

	procMu     sync.RWMutex
	processors map[JobType]Processor

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueue(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = defaultQueueWorkers
	}
	return &Queue{
		client:     client,
		workers:    workers,
		processors: make(map[JobType]Processor),
		retryDelay: func(attempt int) time.Duration { return time.Duration(attempt) * time.Minute },
	}
}

// RegisterProcessor binds a processor to a job type, replacing any previous one.
func (q *Queue) RegisterProcessor(jobType JobType, p Processor) {
	q.procMu.Lock()
	defer q.procMu.Unlock()
	q.processors[jobType] = p
}

func (q *Queue) processor(jobType JobType) (Processor, bool) {
	q.procMu.RLock()
	defer q.procMu.RUnlock()
	p, ok := q.processors[jobType]
	return p, ok
}

func (q *Queue) isRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancel != nil
}

// Start launches the workers and the maintenance loop. It is a no-op when
// already running.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.maintain(ctx)
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()
	if cancel == nil {
		return
	}

	log.Info("[JobQueue] Stopping workers...")
	cancel()
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := q.dequeueJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, redis.Nil) {
				log.Errorf("[JobQueue] Worker %d: dequeue: %v", id, err)
				time.Sleep(pollTimeout)
			}
			continue
		}
		log.Debugf("[JobQueue] Worker %d picked job %s (%s)", id, job.ID, job.Type)
		// A job that started runs to completion even when Stop is called.
		q.processJob(context.WithoutCancel(ctx), job)
	}
}

// maintain promotes due retries and recovers jobs orphaned in processing.
func (q *Queue) maintain(ctx context.Context) {
	defer q.wg.Done()
	promote := time.NewTicker(promoteInterval)
	defer promote.Stop()
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-promote.C:
			q.promoteDue(ctx, now)
		case now := <-sweep.C:
			q.recoverStuckJobs(ctx, stuckAfter, now)
		}
	}
}

// EnqueueJob stores a new pending job and pushes its id onto the queue.
func (q *Queue) EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
		pipe.LPush(ctx, JobQueueKey, job.ID)
		pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	log.Debugf("[JobQueue] Enqueued job %s (%s)", job.ID, job.Type)
	return job, nil
}

// dequeueJob blocks up to pollTimeout for the next id and moves it to the
// processing list. redis.Nil means the queue was empty.
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BLMove(ctx, JobQueueKey, JobProcessingKey, "RIGHT", "LEFT", pollTimeout).Result()
	if err != nil {
		return nil, err
	}
	job, err := q.GetJob(ctx, id)
	if err != nil {
		q.removeFromProcessing(ctx, id)
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	err := q.run(ctx, job)
	switch {
	case err == nil:
		job.MarkAsCompleted()
		q.incrStats(ctx, JobStatusCompleted)
		if derr := q.client.Del(ctx, JobKeyPrefix+job.ID).Err(); derr != nil {
			log.Errorf("[JobQueue] Failed to delete completed job %s: %v", job.ID, derr)
		}
		log.Infof("[JobQueue] Job %s (%s) completed", job.ID, job.Type)

	default:
		job.MarkAsFailed(err.Error())
		var perm permanentError
		if job.IsRetryable() && !errors.As(err, &perm) {
			job.MarkAsRetrying()
			q.updateJob(ctx, job)
			q.scheduleRetry(ctx, job.ID, time.Now().Add(q.retryDelay(job.RetryCount)))
			log.Warnf("[JobQueue] Job %s failed (attempt %d/%d), retrying: %v", job.ID, job.RetryCount, job.MaxRetries, err)
		} else {
			q.updateJob(ctx, job)
			q.incrStats(ctx, JobStatusFailed)
			log.Errorf("[JobQueue] Job %s (%s) failed permanently after %d attempts: %v", job.ID, job.Type, job.RetryCount, err)
		}
	}
	q.removeFromProcessing(ctx, job.ID)
}

func (q *Queue) run(ctx context.Context, job *Job) error {
	p, ok := q.processor(job.Type)
	if !ok {
		return Permanent(fmt.Errorf("no processor for job type %q", job.Type))
	}
	return p(ctx, job)
}

func (q *Queue) scheduleRetry(ctx context.Context, id string, due time.Time) {
	err := q.client.ZAdd(ctx, JobDelayedKey, redis.Z{Score: float64(due.UnixMilli()), Member: id}).Err()
	if err != nil {
		log.Errorf("[JobQueue] Failed to schedule retry for %s: %v", id, err)
	}
}

// promoteDue moves retries whose time has come back onto the pending list and
// returns how many were moved. ZRem decides ownership when several processes
// promote at once.
func (q *Queue) promoteDue(ctx context.Context, now time.Time) int {
	ids, err := q.client.ZRangeByScore(ctx, JobDelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			log.Errorf("[JobQueue] Failed to read delayed jobs: %v", err)
		}
		return 0
	}

	moved := 0
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, JobDelayedKey, id).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, JobQueueKey, id).Err(); err != nil {
			log.Errorf("[JobQueue] Failed to requeue %s: %v", id, err)
			continue
		}
		moved++
	}
	return moved
}

// recoverStuckJobs requeues jobs that sat in processing longer than maxAge,
// which only happens when a worker died mid-job.
func (q *Queue) recoverStuckJobs(ctx context.Context, maxAge time.Duration, now time.Time) int {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		log.Errorf("[JobQueue] Failed to list processing jobs: %v", err)
		return 0
	}

	recovered := 0
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil || job.Status != JobStatusProcessing {
			q.removeFromProcessing(ctx, id)
			continue
		}
		started := job.UpdatedAt
		if job.ProcessedAt != nil {
			started = *job.ProcessedAt
		}
		if now.Sub(started) <= maxAge {
			continue
		}

		log.Warnf("[JobQueue] Recovering job %s (%s) stuck for %s", job.ID, job.Type, now.Sub(started).Round(time.Second))
		job.Status = JobStatusPending
		job.ErrorMsg = "recovered after worker stalled"
		job.UpdatedAt = now
		q.updateJob(ctx, job)
		q.removeFromProcessing(ctx, id)
		if err := q.client.RPush(ctx, JobQueueKey, id).Err(); err != nil {
			log.Errorf("[JobQueue] Failed to requeue %s: %v", id, err)
			continue
		}
		recovered++
	}
	return recovered
}

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to store job %s: %v", job.ID, err)
	}
}

func (q *Queue) removeFromProcessing(ctx context.Context, id string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, id).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove %s from processing: %v", id, err)
	}
}

func (q *Queue) incrStats(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJob loads a job by id. Completed jobs are deleted and return redis.Nil.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+id).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// GetJobStats returns lifetime counters per status.
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	raw, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}
	stats := make(map[JobStatus]int64, len(raw))
	for status, v := range raw {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			stats[JobStatus(status)] = n
		}
	}
	return stats, nil
}

func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}

// GetDelayedSize returns the number of jobs waiting for a retry slot.
func (q *Queue) GetDelayedSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, JobDelayedKey).Result()
}
