// Package policy решает, кто имеет право изменять задачу.
package policy

import (
	"tasktracker/internal/model"

	"github.com/google/uuid"
)

// CanMutateTask сообщает, может ли пользователь изменять задачу.
// Изменять задачу могут только её создатель и исполнитель.
func CanMutateTask(task *model.Task, userID uuid.UUID) bool {
	if task.CreatorID != nil && *task.CreatorID == userID {
		return true
	}
	if task.PerformerID != nil && *task.PerformerID == userID {
		return true
	}
	return false
}

// CanReassignPerformer сообщает, может ли пользователь сменить исполнителя.
// Передать задачу другому исполнителю может только её создатель.
func CanReassignPerformer(task *model.Task, userID uuid.UUID) bool {
	return task.CreatorID != nil && *task.CreatorID == userID
}
