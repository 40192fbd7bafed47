package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TestTypeMock     = "mock"
	TestTypePYQ      = "pyq"
	TestTypePractice = "practice"
)

const (
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
)

type Exam struct {
	gorm.Model
	Name      string `gorm:"unique;not null"`
	ShortDesc string
	LogoURL   string
}

type Test struct {
	gorm.Model
	ExamID         uint   `gorm:"index;not null"`
	TestType       string `gorm:"not null"` // mock, pyq, practice
	Title          string
	ShortDesc      string
	Year           string // for pyq
	DurationMins   int
	IsPremium      bool `gorm:"default:false"`
	TotalQuestions int
	Questions      []TestQuestion
}

type TestQuestion struct {
	gorm.Model
	TestID        uint `gorm:"index"`
	Question      string
	Options       string // JSON array of options
	CorrectAnswer int
	Marks         float64 `gorm:"default:1"`
	SequenceOrder int
}

/// TestAttempt is append-only: every start inserts a new row, retries
// included, so per-attempt history is preserved. For a given
// (user, test, type) at most one row is in_progress at a time.
type TestAttempt struct {
	gorm.Model
	UserID         uint   `gorm:"index;not null"`
	ExamID         uint   `gorm:"index;not null"`
	TestID         uint   `gorm:"index;not null"`
	TestType       string `gorm:"not null"`
	Status         string `gorm:"default:in_progress"` // in_progress, completed
	Score          float64
	TotalQuestions int
	CorrectAnswers int
	TimeTaken      int // seconds
	Answers        datatypes.JSON
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// TestCompletion is the derived best/latest pointer over the attempt
// history, one row per (user, test, type).
type TestCompletion struct {
	gorm.Model
	UserID          uint   `gorm:"index;not null"`
	TestID          uint   `gorm:"index;not null"`
	TestType        string `gorm:"not null"`
	BestScore       float64
	LastScore       float64
	AttemptCount    int
	Rank            int
	LastCompletedAt time.Time
}

type ExamStats struct {
	gorm.Model
	UserID         uint `gorm:"index;not null"`
	ExamID         uint `gorm:"index;not null"`
	BestScore      float64
	Last10Average  float64
	TotalCompleted int
	Breakdown      datatypes.JSON // per test type: count, best, average
}
