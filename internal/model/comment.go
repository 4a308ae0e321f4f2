package model

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	TaskID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	Description string     `gorm:"not null"`
	AuthorID    *uuid.UUID `gorm:"type:uuid"`
	PostDate    time.Time  `gorm:"autoCreateTime"`

	Task   Task  `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	Author *User `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL"`
}
