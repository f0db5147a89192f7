package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskSMSReminder is the asynq task type for a delayed SMS.
const TaskSMSReminder = "sms:reminder"

// NewReminderTask builds the task for r. It is held in Redis until r.At.
func NewReminderTask(r Reminder) (*asynq.Task, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal reminder: %w", err)
	}
	return asynq.NewTask(
		TaskSMSReminder,
		payload,
		asynq.MaxRetry(5),
		asynq.Queue("default"),
		asynq.Timeout(30*time.Second),
	), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueScheduler hands reminders to asynq so they survive restarts and are
// retried on carrier failures.
type QueueScheduler struct {
	client enqueuer
	logger zerolog.Logger
}

func NewQueueScheduler(client *asynq.Client, logger zerolog.Logger) *QueueScheduler {
	return &QueueScheduler{client: client, logger: logger}
}

func (s *QueueScheduler) Schedule(ctx context.Context, r Reminder) error {
	task, err := NewReminderTask(r)
	if err != nil {
		return err
	}
	info, err := s.client.EnqueueContext(ctx, task, asynq.ProcessAt(r.At))
	if err != nil {
		return fmt.Errorf("enqueue reminder: %w", err)
	}
	s.logger.Info().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Time("process_at", r.At).
		Msg("reminder scheduled")
	return nil
}

// Worker processes reminder tasks from Redis.
type Worker struct {
	server *asynq.Server
	sender SMSSender
	logger zerolog.Logger
}

func NewWorker(redis asynq.RedisConnOpt, sender SMSSender, logger zerolog.Logger) *Worker {
	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
	})
	return &Worker{
		server: server,
		sender: sender,
		logger: logger.With().Str("component", "reminder-worker").Logger(),
	}
}

// Mux routes reminder tasks to HandleReminder.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSMSReminder, w.HandleReminder)
	return mux
}

// Start runs the worker in the background until Shutdown.
func (w *Worker) Start() error {
	w.logger.Info().Msg("starting reminder worker")
	return w.server.Start(w.Mux())
}

// Run blocks until SIGTERM or SIGINT.
func (w *Worker) Run() error {
	w.logger.Info().Msg("running reminder worker")
	return w.server.Run(w.Mux())
}

func (w *Worker) Shutdown() {
	w.logger.Info().Msg("stopping reminder worker")
	w.server.Shutdown()
}

// HandleReminder sends one reminder. A returned error makes asynq retry.
func (w *Worker) HandleReminder(ctx context.Context, t *asynq.Task) error {
	var r Reminder
	if err := json.Unmarshal(t.Payload(), &r); err != nil {
		return fmt.Errorf("unmarshal reminder payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.sender.SendSMS(ctx, r.Number, r.Text); err != nil {
		w.logger.Error().Err(err).Str("to", r.Number).Msg("send reminder failed")
		return err
	}
	w.logger.Info().Str("to", r.Number).Msg("reminder sent")
	return nil
}
