package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"default:user"` // user, admin
	Plan         string `gorm:"default:free"` // mirror of the active membership tier, reset to free on expiry
	TargetExam   string
}

type UserProgress struct {
	gorm.Model
	UserID         uint
	LastActive     time.Time
	StreakDays     int `gorm:"default:0"`
	TestsCompleted int `gorm:"default:0"`
}

type LoginHistory struct {
	gorm.Model
	UserID    uint
	LoginTime time.Time
}

type Notification struct {
	gorm.Model
	UserID  uint
	Kind    string // membership_expired, payment_captured, payment_failed
	Title   string
	Message string
	ReadAt  *time.Time
}
