package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"villasole/internal/database"
	"villasole/internal/domain"
	"villasole/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	TaskBookingCreated   = "booking_created"
	TaskBookingConfirmed = "booking_confirmed"
)

// notifyPayload is persisted in NotifyTask.Payload as JSON.
type notifyPayload struct {
	BookingID int64           `json:"booking_id"`
	Booking   *models.Booking `json:"booking,omitempty"`
}

// NotifyQueueWorker drains notify_queue tasks and delivers them through the
// configured notifier. Delivery is best effort with backoff; a task that
// exhausts its retries lands in the dead-letter list and never blocks a
// booking.
type NotifyQueueWorker struct {
	db            *database.DB
	notifier      domain.Notifier
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan database.NotifyTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *log.Logger
}

// NewNotifyQueueWorker builds a worker with sane defaults.
func NewNotifyQueueWorker(db *database.DB, notifier domain.Notifier, redisClient *redis.Client, retry RetryPolicy, logger *log.Logger) *NotifyQueueWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		logger = log.Default()
	}

	return &NotifyQueueWorker{
		db:            db,
		notifier:      notifier,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan database.NotifyTask, models.WorkerQueueSize),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueBookingCreated persists and schedules a created-booking notification.
func (w *NotifyQueueWorker) EnqueueBookingCreated(ctx context.Context, booking *models.Booking) error {
	return w.enqueue(ctx, TaskBookingCreated, booking)
}

// EnqueueBookingConfirmed persists and schedules a confirmation notification.
func (w *NotifyQueueWorker) EnqueueBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	return w.enqueue(ctx, TaskBookingConfirmed, booking)
}

func (w *NotifyQueueWorker) enqueue(ctx context.Context, taskType string, booking *models.Booking) error {
	if booking == nil || booking.ID == 0 {
		return errors.New("booking id is required")
	}

	payloadBytes, err := json.Marshal(notifyPayload{BookingID: booking.ID, Booking: booking})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := database.NotifyTask{
		TaskType:  taskType,
		BookingID: booking.ID,
		Payload:   string(payloadBytes),
		Status:    "pending",
		CreatedAt: time.Now(),
	}

	if err := w.db.CreateNotifyTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notify task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Printf("notify_worker: redis push failed, fallback to memory queue: %v", err)
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
	default:
		w.logger.Printf("notify_worker: in-memory queue full, task %d dropped to polling", task.ID)
	}

	return nil
}

// Start launches main loop; stops when ctx is done.
func (w *NotifyQueueWorker) Start(ctx context.Context) {
	w.logger.Printf("notify_worker: started")
	defer w.logger.Printf("notify_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingNotifyTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Printf("notify_worker: fetch pending: %v", err)
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *NotifyQueueWorker) tryLocalQueue() (database.NotifyTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return database.NotifyTask{}, false
	}
}

func (w *NotifyQueueWorker) tryRedis(ctx context.Context) (database.NotifyTask, bool) {
	if w.redis == nil {
		return database.NotifyTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return database.NotifyTask{}, false
		}
		w.logger.Printf("notify_worker: redis BRPOP error: %v", err)
		return database.NotifyTask{}, false
	}
	if len(res) != 2 {
		return database.NotifyTask{}, false
	}
	var task database.NotifyTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Printf("notify_worker: decode redis task: %v", err)
		return database.NotifyTask{}, false
	}
	return task, true
}

func (w *NotifyQueueWorker) processTask(ctx context.Context, task *database.NotifyTask) {
	claimed, err := w.db.ClaimNotifyTask(ctx, task.ID)
	if err != nil {
		w.logger.Printf("notify_worker: claim %d: %v", task.ID, err)
		return
	}
	if !claimed {
		// Already delivered through the other path.
		return
	}

	var payload notifyPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.deliver(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Printf("notify_worker: mark completed %d: %v", task.ID, err)
	}
}

func (w *NotifyQueueWorker) deliver(ctx context.Context, taskType string, payload notifyPayload) error {
	booking := payload.Booking
	if booking == nil {
		loaded, err := w.db.GetBooking(ctx, payload.BookingID)
		if err != nil {
			return fmt.Errorf("load booking %d: %w", payload.BookingID, err)
		}
		booking = loaded
	}

	switch taskType {
	case TaskBookingCreated:
		return w.notifier.NotifyBookingCreated(ctx, booking)
	case TaskBookingConfirmed:
		return w.notifier.NotifyBookingConfirmed(ctx, booking)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *NotifyQueueWorker) retryOrFail(ctx context.Context, task *database.NotifyTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
			w.logger.Printf("notify_worker: mark failed %d: %v", task.ID, err)
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Printf("notify_worker: mark retry %d: %v", task.ID, err)
	}
}

func (w *NotifyQueueWorker) failTask(ctx context.Context, task *database.NotifyTask, err error) {
	if err := w.db.UpdateNotifyTaskStatus(ctx, task.ID, "failed", err.Error(), nil); err != nil {
		w.logger.Printf("notify_worker: mark failed %d: %v", task.ID, err)
	}
	w.pushDeadLetter(ctx, task)
}

func (w *NotifyQueueWorker) pushRedis(ctx context.Context, task database.NotifyTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotifyQueueWorker) pushDeadLetter(ctx context.Context, task *database.NotifyTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Printf("notify_worker: encode deadletter %d: %v", task.ID, err)
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Printf("notify_worker: deadletter push %d: %v", task.ID, err)
	}
}
