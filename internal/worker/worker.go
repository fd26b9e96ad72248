package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeWelcomeEmail   JobType = "welcome_email"
	JobTypeSessionCleanup JobType = "session_cleanup"
	JobTypeCacheEvict     JobType = "cache_evict"
)

const (
	RetryQueue = "retry_queue"
	DeadQueue  = "dead_queue"
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
	ProcessAt time.Time              `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
}

// Worker polls Redis list queues and dispatches jobs to registered
// handlers. Failed jobs go to the retry queue until MaxTries is spent,
// then to the dead queue.
type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	concurrency  int
	pollInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
}

func NewWorker(config WorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       config.Queues,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches n polling goroutines. Zero or negative n falls back to
// the configured concurrency.
func (w *Worker) Start(n int) {
	if n <= 0 {
		n = w.concurrency
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.run()
	}
	log.Printf("🔄 Worker started with %d goroutines polling %v", n, w.queues)
}

func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	log.Println("🛑 Worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.processNextJob(); err != nil {
				log.Printf("⚠️ Job processing error: %v", err)
			}
		}
	}
}

// processNextJob pops at most one job across the configured queues.
// An empty pass is not an error.
func (w *Worker) processNextJob() error {
	for _, queue := range w.queues {
		data, err := w.client.LPop(w.ctx, queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to pop from %s: %w", queue, err)
		}

		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return fmt.Errorf("failed to decode job from %s: %w", queue, err)
		}

		if job.ProcessAt.After(time.Now()) {
			raw, _ := json.Marshal(&job)
			if err := w.client.RPush(w.ctx, queue, raw).Err(); err != nil {
				return fmt.Errorf("failed to requeue delayed job %s: %w", job.ID, err)
			}
			return nil
		}

		return w.dispatch(&job)
	}
	return nil
}

func (w *Worker) dispatch(job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()
	if !exists {
		return fmt.Errorf("no handler registered for job type %s", job.Type)
	}

	if err := handler(w.ctx, job); err != nil {
		return w.handleFailure(job, err)
	}
	return nil
}

func (w *Worker) handleFailure(job *Job, cause error) error {
	job.Attempts++

	target := RetryQueue
	if job.Attempts >= job.MaxTries {
		target = DeadQueue
		log.Printf("💀 Job %s (%s) exhausted %d attempts: %v", job.ID, job.Type, job.Attempts, cause)
	} else {
		job.ProcessAt = time.Now().Add(backoff(job.Attempts))
		log.Printf("⚠️ Job %s (%s) failed attempt %d/%d: %v", job.ID, job.Type, job.Attempts, job.MaxTries, cause)
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := w.client.RPush(w.ctx, target, raw).Err(); err != nil {
		return fmt.Errorf("failed to move job %s to %s: %w", job.ID, target, err)
	}
	return nil
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt*attempt) * time.Second
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

// JobQueue is the producer side of the worker queues.
type JobQueue struct {
	client *redis.Client
}

func NewJobQueue(client *redis.Client) *JobQueue {
	return &JobQueue{client: client}
}

func (q *JobQueue) Enqueue(queue string, jobType JobType, payload map[string]interface{}) error {
	return q.EnqueueAt(queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(queue string, jobType JobType, payload map[string]interface{}, processAt time.Time) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("failed to generate job id: %w", err)
	}

	job := Job{
		ID:        id.String(),
		Type:      jobType,
		Payload:   payload,
		Attempts:  0,
		MaxTries:  3,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	raw, err := json.Marshal(&job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return q.client.RPush(context.Background(), queue, raw).Err()
}

func (q *JobQueue) GetQueueSize(queue string) (int64, error) {
	return q.client.LLen(context.Background(), queue).Result()
}
