package repository

import (
	"context"
	"errors"

	"tasktracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskRepository struct {
	db *gorm.DB
}

type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	GetByName(ctx context.Context, name string) (*model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	Search(ctx context.Context, query string) ([]model.Task, error)
}

var _ TaskRepositoryInterface = (*TaskRepository)(nil)

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create adds a new task to the database
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task by its ID with creator and performer preloaded
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Performer").
		First(&task, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// GetByName retrieves a task by its unique name
func (r *TaskRepository) GetByName(ctx context.Context, name string) (*model.Task, error) {
	var task model.Task
	result := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Performer").
		First(&task, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, result.Error
	}
	return &task, nil
}

// Update updates an existing task
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	result := r.db.WithContext(ctx).Save(task)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Search retrieves tasks filtered by a substring match on the task name
// or the performer username. An empty query returns all tasks.
func (r *TaskRepository) Search(ctx context.Context, query string) ([]model.Task, error) {
	var tasks []model.Task
	tx := r.db.WithContext(ctx).
		Preload("Creator").
		Preload("Performer").
		Order("due_date DESC")
	if query != "" {
		pattern := "%" + query + "%"
		tx = tx.
			Joins("LEFT JOIN users ON users.id = tasks.performer_id").
			Where("tasks.name ILIKE ? OR users.username ILIKE ?", pattern, pattern)
	}
	result := tx.Find(&tasks)
	if result.Error != nil {
		return nil, result.Error
	}
	return tasks, nil
}
