package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestWorker(t *testing.T) (*Worker, *redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	config := WorkerConfig{
		RedisClient:  client,
		Concurrency:  2,
		PollInterval: time.Millisecond * 100,
		Queues:       []string{"jobs", RetryQueue},
	}

	return NewWorker(config), client, mr
}

func enqueueRaw(t *testing.T, client *redis.Client, queue string, job *Job) {
	t.Helper()
	raw, _ := json.Marshal(job)
	if err := client.RPush(context.Background(), queue, raw).Err(); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}
}

func TestNewWorker(t *testing.T) {
	worker, _, mr := setupTestWorker(t)
	defer mr.Close()

	if worker.client == nil {
		t.Error("Expected Redis client to be set")
	}
	if len(worker.handlers) != 0 {
		t.Error("Expected empty handlers map initially")
	}
	if len(worker.queues) != 2 {
		t.Errorf("Expected 2 queues, got %d", len(worker.queues))
	}
	if worker.ctx == nil {
		t.Error("Expected context to be initialized")
	}
}

func TestWorker_RegisterHandler(t *testing.T) {
	worker, _, mr := setupTestWorker(t)
	defer mr.Close()

	worker.RegisterHandler(JobTypeWelcomeEmail, func(ctx context.Context, job *Job) error {
		return nil
	})

	if _, exists := worker.handlers[JobTypeWelcomeEmail]; !exists {
		t.Error("Expected handler to be registered for JobTypeWelcomeEmail")
	}
}

func TestWorker_StartAndStop(t *testing.T) {
	worker, _, mr := setupTestWorker(t)
	defer mr.Close()

	worker.Start(1)
	time.Sleep(time.Millisecond * 50)
	worker.Stop()

	select {
	case <-worker.ctx.Done():
	default:
		t.Error("Expected context to be cancelled after stop")
	}
}

func TestWorker_ProcessJob_Success(t *testing.T) {
	worker, client, mr := setupTestWorker(t)
	defer mr.Close()

	var processed *Job
	worker.RegisterHandler(JobTypeWelcomeEmail, func(ctx context.Context, job *Job) error {
		processed = job
		return nil
	})

	job := &Job{
		ID:        "job-1",
		Type:      JobTypeWelcomeEmail,
		Payload:   map[string]interface{}{"email": "new@example.com"},
		MaxTries:  3,
		CreatedAt: time.Now(),
		ProcessAt: time.Now(),
	}
	enqueueRaw(t, client, "jobs", job)

	if err := worker.processNextJob(); err != nil {
		t.Fatalf("Failed to process job: %v", err)
	}

	if processed == nil {
		t.Fatal("Expected job to be processed")
	}
	if processed.ID != job.ID {
		t.Errorf("Expected job ID %s, got %s", job.ID, processed.ID)
	}
	if processed.Payload["email"] != "new@example.com" {
		t.Errorf("Unexpected payload: %v", processed.Payload)
	}
}

func TestWorker_ProcessJob_NoHandler(t *testing.T) {
	worker, client, mr := setupTestWorker(t)
	defer mr.Close()

	job := &Job{
		ID:        "job-2",
		Type:      JobTypeCacheEvict,
		Payload:   map[string]interface{}{},
		MaxTries:  3,
		CreatedAt: time.Now(),
		ProcessAt: time.Now(),
	}
	enqueueRaw(t, client, "jobs", job)

	if err := worker.processNextJob(); err == nil {
		t.Error("Expected error when processing job without handler")
	}
}

func TestWorker_ProcessJob_HandlerError(t *testing.T) {
	worker, client, mr := setupTestWorker(t)
	defer mr.Close()

	calls := 0
	worker.RegisterHandler(JobTypeSessionCleanup, func(ctx context.Context, job *Job) error {
		calls++
		return errors.New("handler failed")
	})

	job := &Job{
		ID:        "job-3",
		Type:      JobTypeSessionCleanup,
		Payload:   map[string]interface{}{},
		MaxTries:  2,
		CreatedAt: time.Now(),
		ProcessAt: time.Now(),
	}
	enqueueRaw(t, client, "jobs", job)

	if err := worker.processNextJob(); err != nil {
		t.Fatalf("Unexpected error during job processing: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected handler to be called once, got %d", calls)
	}

	retryLen, err := client.LLen(context.Background(), RetryQueue).Result()
	if err != nil {
		t.Fatalf("Failed to check retry queue length: %v", err)
	}
	if retryLen != 1 {
		t.Errorf("Expected 1 job in retry queue, got %d", retryLen)
	}
}

func TestWorker_ProcessJob_MaxAttemptsReached(t *testing.T) {
	worker, client, mr := setupTestWorker(t)
	defer mr.Close()

	worker.RegisterHandler(JobTypeCacheEvict, func(ctx context.Context, job *Job) error {
		return errors.New("persistent failure")
	})

	job := &Job{
		ID:        "job-4",
		Type:      JobTypeCacheEvict,
		Payload:   map[string]interface{}{},
		Attempts:  2,
		MaxTries:  2,
		CreatedAt: time.Now(),
		ProcessAt: time.Now(),
	}
	enqueueRaw(t, client, "jobs", job)

	if err := worker.processNextJob(); err != nil {
		t.Fatalf("Unexpected error during job processing: %v", err)
	}

	deadLen, err := client.LLen(context.Background(), DeadQueue).Result()
	if err != nil {
		t.Fatalf("Failed to check dead queue length: %v", err)
	}
	if deadLen != 1 {
		t.Errorf("Expected 1 job in dead queue, got %d", deadLen)
	}
}

func TestWorker_ProcessJob_FutureProcessTime(t *testing.T) {
	worker, client, mr := setupTestWorker(t)
	defer mr.Close()

	job := &Job{
		ID:        "job-5",
		Type:      JobTypeWelcomeEmail,
		Payload:   map[string]interface{}{},
		MaxTries:  3,
		CreatedAt: time.Now(),
		ProcessAt: time.Now().Add(time.Hour),
	}
	enqueueRaw(t, client, "jobs", job)

	if err := worker.processNextJob(); err != nil {
		t.Fatalf("Unexpected error during job processing: %v", err)
	}

	queueLen, err := client.LLen(context.Background(), "jobs").Result()
	if err != nil {
		t.Fatalf("Failed to check queue length: %v", err)
	}
	if queueLen != 1 {
		t.Errorf("Expected 1 job back in queue, got %d", queueLen)
	}
}

func TestWorker_ProcessNextJob_EmptyQueue(t *testing.T) {
	worker, _, mr := setupTestWorker(t)
	defer mr.Close()

	if err := worker.processNextJob(); err != nil {
		t.Errorf("Expected no error with empty queue, got: %v", err)
	}
}

func TestWorker_ProcessNextJob_InvalidJSON(t *testing.T) {
	worker, client, mr := setupTestWorker(t)
	defer mr.Close()

	if err := client.RPush(context.Background(), "jobs", "invalid-json").Err(); err != nil {
		t.Fatalf("Failed to enqueue invalid data: %v", err)
	}

	if err := worker.processNextJob(); err == nil {
		t.Error("Expected error when processing invalid JSON")
	}
}

func TestJobQueue_Enqueue(t *testing.T) {
	_, client, mr := setupTestWorker(t)
	defer mr.Close()

	queue := NewJobQueue(client)

	payload := map[string]interface{}{"email": "new@example.com"}
	if err := queue.Enqueue("jobs", JobTypeWelcomeEmail, payload); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	jobData, err := client.LPop(context.Background(), "jobs").Result()
	if err != nil {
		t.Fatalf("Failed to pop job: %v", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		t.Fatalf("Failed to unmarshal job: %v", err)
	}

	if job.Type != JobTypeWelcomeEmail {
		t.Errorf("Expected job type %s, got %s", JobTypeWelcomeEmail, job.Type)
	}
	if job.Payload["email"] != "new@example.com" {
		t.Errorf("Unexpected payload: %v", job.Payload)
	}
	if job.MaxTries != 3 {
		t.Errorf("Expected MaxTries 3, got %d", job.MaxTries)
	}
	if job.ID == "" {
		t.Error("Expected job ID to be set")
	}
}

func TestJobQueue_EnqueueAt(t *testing.T) {
	_, client, mr := setupTestWorker(t)
	defer mr.Close()

	queue := NewJobQueue(client)

	processAt := time.Now().Add(time.Hour)
	if err := queue.EnqueueAt("jobs", JobTypeSessionCleanup, map[string]interface{}{"user_id": "u1"}, processAt); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	jobData, err := client.LPop(context.Background(), "jobs").Result()
	if err != nil {
		t.Fatalf("Failed to pop job: %v", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		t.Fatalf("Failed to unmarshal job: %v", err)
	}
	if job.ProcessAt.Unix() != processAt.Unix() {
		t.Errorf("Expected ProcessAt %v, got %v", processAt, job.ProcessAt)
	}
}

func TestJobQueue_GetQueueSize(t *testing.T) {
	_, client, mr := setupTestWorker(t)
	defer mr.Close()

	queue := NewJobQueue(client)

	size, err := queue.GetQueueSize("jobs")
	if err != nil {
		t.Fatalf("Failed to get queue size: %v", err)
	}
	if size != 0 {
		t.Errorf("Expected queue size 0, got %d", size)
	}

	for i := 0; i < 3; i++ {
		if err := queue.Enqueue("jobs", JobTypeWelcomeEmail, map[string]interface{}{}); err != nil {
			t.Fatalf("Failed to enqueue job %d: %v", i, err)
		}
	}

	size, err = queue.GetQueueSize("jobs")
	if err != nil {
		t.Fatalf("Failed to get queue size: %v", err)
	}
	if size != 3 {
		t.Errorf("Expected queue size 3, got %d", size)
	}
}

func TestJobTypes(t *testing.T) {
	tests := []struct {
		jobType  JobType
		expected string
	}{
		{JobTypeWelcomeEmail, "welcome_email"},
		{JobTypeSessionCleanup, "session_cleanup"},
		{JobTypeCacheEvict, "cache_evict"},
	}

	for _, tt := range tests {
		if string(tt.jobType) != tt.expected {
			t.Errorf("Expected job type %s, got %s", tt.expected, string(tt.jobType))
		}
	}
}
