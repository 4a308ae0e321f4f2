package notifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tasktracker/internal/model"
	"tasktracker/internal/notifier"
	"tasktracker/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// Источники данных для диспетчера поверх карт в памяти
type taskSource map[uuid.UUID]*model.Task

func (s taskSource) GetByID(_ context.Context, id uuid.UUID) (*model.Task, error) {
	if t, ok := s[id]; ok {
		return t, nil
	}
	return nil, repository.ErrTaskNotFound
}

type commentSource map[uuid.UUID]*model.Comment

func (s commentSource) GetByID(_ context.Context, id uuid.UUID) (*model.Comment, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, repository.ErrCommentNotFound
}

// fakeMailer фиксирует попытки отправки.
// Первые failFirst попыток завершаются ошибкой транспорта (-1 - все).
type fakeMailer struct {
	mu        sync.Mutex
	failFirst int
	attempts  int
	subjects  []string
	bodies    []string
	to        [][]string
}

func (m *fakeMailer) Send(_ context.Context, subject, body string, to []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, body)
	m.to = append(m.to, to)
	if m.failFirst < 0 || m.attempts <= m.failFirst {
		return errors.New("smtp: connection refused")
	}
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func testConfig() notifier.Config {
	return notifier.Config{
		Workers:        1,
		QueueSize:      4,
		MaxRetries:     2,
		RetryDelay:     5 * time.Millisecond,
		AttemptTimeout: 200 * time.Millisecond,
	}
}

func testTask() (*model.Task, *model.User, *model.User) {
	creator := &model.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}
	performer := &model.User{ID: uuid.New(), Username: "bob", Email: "bob@example.com"}
	dueDate := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	task := &model.Task{
		ID:            uuid.New(),
		Name:          "Ship release",
		Specification: "Deploy v2",
		DueDate:       &dueDate,
		CreatorID:     &creator.ID,
		PerformerID:   &performer.ID,
		Status:        model.StatusInWork,
		Creator:       creator,
		Performer:     performer,
	}
	return task, creator, performer
}

func TestDispatcher_DeliveredOnFirstAttempt(t *testing.T) {
	// Arrange
	task, _, _ := testTask()
	mailer := &fakeMailer{}
	d := notifier.NewDispatcher(testConfig(), taskSource{task.ID: task}, commentSource{}, mailer)
	d.Start()

	// Act
	d.NotifyTask(notifier.TaskEvent{TaskID: task.ID, Title: notifier.TitleTaskCreated})
	d.Stop()

	// Assert - доставлено с первой попытки, повторов нет
	assert.Equal(t, 1, mailer.count())
	assert.Equal(t, notifier.TitleTaskCreated, mailer.subjects[0])
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, mailer.to[0])

	// Письмо отражает состояние задачи на момент доставки
	assert.Contains(t, mailer.bodies[0], "Task name: Ship release")
	assert.Contains(t, mailer.bodies[0], "Specification: Deploy v2")
	assert.Contains(t, mailer.bodies[0], "Due date: 2026-06-15")
	assert.Contains(t, mailer.bodies[0], "Creator: alice")
	assert.Contains(t, mailer.bodies[0], "Performer: bob")
	assert.Contains(t, mailer.bodies[0], "Status: In work")
}

func TestDispatcher_RetriesThenDelivers(t *testing.T) {
	// Arrange - первые две попытки завершаются ошибкой транспорта
	task, _, _ := testTask()
	mailer := &fakeMailer{failFirst: 2}
	d := notifier.NewDispatcher(testConfig(), taskSource{task.ID: task}, commentSource{}, mailer)
	d.Start()

	// Act
	d.NotifyTask(notifier.TaskEvent{TaskID: task.ID, Title: notifier.TitleTaskChanged})
	d.Stop()

	// Assert - доставлено на третьей попытке, дальше повторов нет
	assert.Equal(t, 3, mailer.count())
}

func TestDispatcher_ExhaustsRetries(t *testing.T) {
	// Arrange - транспорт не работает совсем
	task, _, _ := testTask()
	mailer := &fakeMailer{failFirst: -1}
	d := notifier.NewDispatcher(testConfig(), taskSource{task.ID: task}, commentSource{}, mailer)
	d.Start()

	// Act
	d.NotifyTask(notifier.TaskEvent{TaskID: task.ID, Title: notifier.TitleTaskChanged})
	d.Stop()

	// Assert - ровно первая попытка плюс MaxRetries повторов, затем отказ
	assert.Equal(t, 3, mailer.count())
}

func TestDispatcher_CommentNotification(t *testing.T) {
	// Arrange
	task, _, performer := testTask()
	comment := &model.Comment{
		ID:          uuid.New(),
		TaskID:      task.ID,
		Description: "Started work",
		AuthorID:    &performer.ID,
		Author:      performer,
		PostDate:    time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC),
	}
	mailer := &fakeMailer{}
	d := notifier.NewDispatcher(testConfig(), taskSource{task.ID: task}, commentSource{comment.ID: comment}, mailer)
	d.Start()

	// Act
	d.NotifyComment(notifier.CommentEvent{TaskID: task.ID, CommentID: comment.ID})
	d.Stop()

	// Assert
	assert.Equal(t, 1, mailer.count())
	assert.Equal(t, "A new comment has been added to the task", mailer.subjects[0])
	assert.Contains(t, mailer.bodies[0], "Task name: Ship release")
	assert.Contains(t, mailer.bodies[0], "New comment: Started work")
	assert.Contains(t, mailer.bodies[0], "Author: bob")
	assert.Contains(t, mailer.bodies[0], "Posting date: 15.06.2026 10:30")
}

func TestDispatcher_TaskGone(t *testing.T) {
	// Arrange - задача удалена между постановкой и доставкой
	mailer := &fakeMailer{}
	d := notifier.NewDispatcher(testConfig(), taskSource{}, commentSource{}, mailer)
	d.Start()

	// Act
	d.NotifyTask(notifier.TaskEvent{TaskID: uuid.New(), Title: notifier.TitleTaskChanged})
	d.Stop()

	// Assert - задание отброшено без попыток отправки и без повторов
	assert.Equal(t, 0, mailer.count())
}

func TestDispatcher_StopSkipsRetryDelay(t *testing.T) {
	// Arrange - транспорт не работает, пауза между попытками огромна
	task, _, _ := testTask()
	mailer := &fakeMailer{failFirst: -1}
	cfg := testConfig()
	cfg.RetryDelay = time.Hour
	d := notifier.NewDispatcher(cfg, taskSource{task.ID: task}, commentSource{}, mailer)
	d.Start()

	// Act
	d.NotifyTask(notifier.TaskEvent{TaskID: task.ID, Title: notifier.TitleTaskChanged})
	start := time.Now()
	d.Stop()

	// Assert - остановка не ждет паузу между попытками,
	// но оставшиеся попытки выполняются
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 3, mailer.count())
}

func TestDispatcher_NilDispatcherIsNoOp(t *testing.T) {
	// Без SMTP-настроек диспетчер отсутствует: все вызовы безопасны
	var d *notifier.Dispatcher

	d.NotifyTask(notifier.TaskEvent{TaskID: uuid.New(), Title: notifier.TitleTaskCreated})
	d.NotifyComment(notifier.CommentEvent{TaskID: uuid.New(), CommentID: uuid.New()})
	d.Stop()
}

// slowMailer не успевает отправить письмо за отведенное время
type slowMailer struct {
	mu       sync.Mutex
	attempts int
}

func (m *slowMailer) Send(ctx context.Context, _, _ string, _ []string) error {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcher_AttemptTimeoutCountsAsFailure(t *testing.T) {
	// Arrange
	task, _, _ := testTask()
	mailer := &slowMailer{}
	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.AttemptTimeout = 10 * time.Millisecond
	d := notifier.NewDispatcher(cfg, taskSource{task.ID: task}, commentSource{}, mailer)
	d.Start()

	// Act
	d.NotifyTask(notifier.TaskEvent{TaskID: task.ID, Title: notifier.TitleTaskChanged})
	d.Stop()

	// Assert - просроченная попытка считается неудачной и повторяется
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	assert.Equal(t, 2, mailer.attempts)
}
