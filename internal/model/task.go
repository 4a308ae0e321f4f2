package model

import (
	"time"

	"github.com/google/uuid"
)

// Статусы задачи
const (
	StatusNew       = "new"       // задача создана, работа не начата
	StatusInWork    = "in_work"   // задача в работе
	StatusCompleted = "completed" // задача выполнена
)

// MaxTaskNameLength ограничивает длину имени задачи.
const MaxTaskNameLength = 200

type Task struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name          string     `gorm:"size:200;uniqueIndex;not null"`
	Specification string     `gorm:"not null"`
	DueDate       *time.Time
	CreatorID     *uuid.UUID `gorm:"type:uuid"`
	PerformerID   *uuid.UUID `gorm:"type:uuid"`
	Status        string     `gorm:"not null;default:'new';check:status IN ('new', 'in_work', 'completed')"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
	UpdatedAt     time.Time

	Creator   *User `gorm:"foreignKey:CreatorID;constraint:OnDelete:SET NULL"`
	Performer *User `gorm:"foreignKey:PerformerID;constraint:OnDelete:SET NULL"`
}

// ValidStatus сообщает, является ли значение допустимым статусом задачи.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusInWork, StatusCompleted:
		return true
	}
	return false
}

// StatusLabel возвращает человекочитаемое название статуса.
func StatusLabel(s string) string {
	switch s {
	case StatusNew:
		return "New"
	case StatusInWork:
		return "In work"
	case StatusCompleted:
		return "Completed"
	}
	return s
}
