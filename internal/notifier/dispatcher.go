// Package notifier асинхронно рассылает email-уведомления о событиях
// задач и комментариев. Задания несут только идентификаторы: состояние
// перечитывается из БД в момент доставки, а не в момент постановки.
package notifier

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"tasktracker/internal/model"
	"tasktracker/internal/repository"

	"github.com/google/uuid"
)

// Темы писем
const (
	TitleTaskCreated  = "A new task has been created"
	TitleTaskChanged  = "Task has been changed"
	titleCommentAdded = "A new comment has been added to the task"
)

// TaskEvent - событие создания или изменения задачи.
type TaskEvent struct {
	TaskID uuid.UUID
	Title  string
}

// CommentEvent - событие добавления комментария к задаче.
type CommentEvent struct {
	TaskID    uuid.UUID
	CommentID uuid.UUID
}

// TaskSource выдает задачу по идентификатору в момент доставки.
type TaskSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
}

// CommentSource выдает комментарий по идентификатору в момент доставки.
type CommentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error)
}

// Config задает параметры пула воркеров и политику повторов.
type Config struct {
	Workers        int
	QueueSize      int
	MaxRetries     int           // количество повторов после первой неудачной попытки
	RetryDelay     time.Duration // фиксированная пауза между попытками
	AttemptTimeout time.Duration // лимит времени на одну попытку доставки
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		Workers:        2,
		QueueSize:      100,
		MaxRetries:     3,
		RetryDelay:     5 * time.Minute,
		AttemptTimeout: 30 * time.Second,
	}
}

type jobKind int

const (
	jobTask jobKind = iota
	jobComment
)

type job struct {
	kind      jobKind
	taskID    uuid.UUID
	commentID uuid.UUID
	title     string
}

// Dispatcher управляет очередью заданий и пулом воркеров.
// Nil-диспетчер безопасен: все Notify-методы становятся no-op,
// так транспорт отключается при отсутствии SMTP-настроек.
type Dispatcher struct {
	cfg      Config
	tasks    TaskSource
	comments CommentSource
	mailer   Mailer

	jobs   chan job
	stop   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(cfg Config, tasks TaskSource, comments CommentSource, mailer Mailer) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:      cfg,
		tasks:    tasks,
		comments: comments,
		mailer:   mailer,
		jobs:     make(chan job, cfg.QueueSize),
		stop:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start запускает воркеров.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i + 1)
	}
	log.Printf("[notifier] started with %d workers", d.cfg.Workers)
}

// Stop закрывает очередь и дожидается завершения воркеров.
// Паузы между попытками при остановке пропускаются, оставшиеся
// попытки выполняются сразу; текущая попытка доставки завершается
// или прерывается по таймауту.
func (d *Dispatcher) Stop() {
	if d == nil {
		return
	}
	close(d.stop)
	close(d.jobs)
	d.wg.Wait()
	d.cancel()
	log.Println("[notifier] stopped")
}

// NotifyTask ставит в очередь уведомление о создании или изменении задачи.
// Постановка выполняется по принципу fire-and-forget: переполнение очереди
// приводит к потере задания с записью в лог, но никогда не к ошибке запроса.
func (d *Dispatcher) NotifyTask(e TaskEvent) {
	if d == nil {
		return
	}
	d.enqueue(job{kind: jobTask, taskID: e.TaskID, title: e.Title})
}

// NotifyComment ставит в очередь уведомление о новом комментарии.
func (d *Dispatcher) NotifyComment(e CommentEvent) {
	if d == nil {
		return
	}
	d.enqueue(job{kind: jobComment, taskID: e.TaskID, commentID: e.CommentID, title: titleCommentAdded})
}

func (d *Dispatcher) enqueue(j job) {
	select {
	case d.jobs <- j:
	default:
		log.Printf("[notifier] queue is full, dropping job for task %s", j.taskID)
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.jobs {
		d.process(id, j)
	}
}

// errGone означает, что задача или комментарий исчезли из БД:
// задание отбрасывается без повторов.
var errGone = errors.New("referenced record no longer exists")

func (d *Dispatcher) process(workerID int, j job) {
	maxAttempts := d.cfg.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(d.ctx, d.cfg.AttemptTimeout)
		err := d.deliver(attemptCtx, j)
		cancel()

		if err == nil {
			log.Printf("[worker-%d] job for task %s delivered (attempt %d)", workerID, j.taskID, attempt)
			return
		}
		if errors.Is(err, errGone) {
			log.Printf("[worker-%d] job for task %s dropped: %v", workerID, j.taskID, err)
			return
		}
		if attempt == maxAttempts {
			log.Printf("[worker-%d] job for task %s failed permanently after %d attempts: %v",
				workerID, j.taskID, attempt, err)
			return
		}

		log.Printf("[worker-%d] job for task %s failed (attempt %d/%d), retry in %v: %v",
			workerID, j.taskID, attempt, maxAttempts, d.cfg.RetryDelay, err)
		select {
		case <-time.After(d.cfg.RetryDelay):
		case <-d.stop:
		case <-d.ctx.Done():
			return
		}
	}
}

// deliver перечитывает состояние, формирует письмо и отправляет его
// создателю и исполнителю задачи.
func (d *Dispatcher) deliver(ctx context.Context, j job) error {
	task, err := d.tasks.GetByID(ctx, j.taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return errGone
		}
		return err
	}

	body := ""
	switch j.kind {
	case jobTask:
		body = renderTaskBody(task)
	case jobComment:
		comment, err := d.comments.GetByID(ctx, j.commentID)
		if err != nil {
			if errors.Is(err, repository.ErrCommentNotFound) {
				return errGone
			}
			return err
		}
		body = renderCommentBody(task, comment)
	}

	recipients := make([]string, 0, 2)
	if task.Creator != nil {
		recipients = append(recipients, task.Creator.Email)
	}
	if task.Performer != nil {
		recipients = append(recipients, task.Performer.Email)
	}
	if len(recipients) == 0 {
		return nil
	}

	return d.mailer.Send(ctx, j.title, body, recipients)
}
