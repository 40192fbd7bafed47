package services

import (
	"errors"
	"log"
	"time"

	"examprep/backend/models"
	"examprep/backend/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestSubmission carries the final answers for an in_progress attempt.
type TestSubmission struct {
	UserID         uint
	TestID         uint
	TestType       string
	Score          float64
	TotalQuestions int
	CorrectAnswers int
	TimeTaken      int
	Answers        datatypes.JSON
}

type AttemptService struct {
	DB     *gorm.DB
	Stats  *StatsService
	Logger *log.Logger
}

func NewAttemptService(db *gorm.DB, stats *StatsService, logger *log.Logger) *AttemptService {
	return &AttemptService{DB: db, Stats: stats, Logger: logger}
}

// RecordTestAttempt starts an attempt. Attempts are append-only: a retry
// inserts a fresh in_progress row and earlier completed rows stay
// untouched. An existing in_progress row for the same (user, test, type)
// is resumed with a fresh start time instead of duplicated.
func (as *AttemptService) RecordTestAttempt(userID, testID, examID uint, testType string, totalQuestions int) (*models.TestAttempt, error) {
	var existing models.TestAttempt
	err := as.DB.Where("user_id = ? AND test_id = ? AND test_type = ? AND status = ?",
		userID, testID, testType, models.AttemptInProgress).
		First(&existing).Error
	if err == nil {
		restartAttempt(&existing, time.Now())
		if err := as.DB.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	attempt := models.TestAttempt{
		UserID:         userID,
		ExamID:         examID,
		TestID:         testID,
		TestType:       testType,
		Status:         models.AttemptInProgress,
		TotalQuestions: totalQuestions,
		StartedAt:      time.Now(),
	}
	if err := as.DB.Create(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// restartAttempt resumes an open attempt with a fresh clock instead of
// inserting a second in_progress row for the same (user, test, type).
func restartAttempt(attempt *models.TestAttempt, now time.Time) {
	attempt.Status = models.AttemptInProgress
	attempt.StartedAt = now
	attempt.CompletedAt = nil
}

// SubmitTestAttempt finalizes the in_progress attempt and then runs the
// best-effort completion pipeline: completion projection, rank recompute,
// cache invalidation, aggregate recompute. Steps after the score write
// log and continue on failure; nothing is rolled back.
func (as *AttemptService) SubmitTestAttempt(sub TestSubmission) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := as.DB.Where("user_id = ? AND test_id = ? AND test_type = ? AND status = ?",
		sub.UserID, sub.TestID, sub.TestType, models.AttemptInProgress).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	attempt.Status = models.AttemptCompleted
	attempt.Score = sub.Score
	attempt.TotalQuestions = sub.TotalQuestions
	attempt.CorrectAnswers = sub.CorrectAnswers
	attempt.TimeTaken = sub.TimeTaken
	attempt.Answers = sub.Answers
	attempt.CompletedAt = &now

	if err := as.DB.Save(&attempt).Error; err != nil {
		return nil, err
	}

	if err := as.upsertCompletion(&attempt); err != nil {
		as.Logger.Printf("[ERROR] completion projection for attempt %d: %v", attempt.ID, err)
	}

	err = utils.Retry(3, 100*time.Millisecond, func() error {
		return as.recomputeTestRanks(attempt.TestID, attempt.TestType)
	})
	if err != nil {
		as.Logger.Printf("[ERROR] rank recompute for test %d: %v", attempt.TestID, err)
	}

	as.Stats.Invalidate(attempt.UserID, attempt.ExamID)

	if err := as.Stats.UpdateExamStats(attempt.UserID, attempt.ExamID); err != nil {
		as.Logger.Printf("[ERROR] exam stats recompute for user %d exam %d: %v",
			attempt.UserID, attempt.ExamID, err)
	}

	if err := as.bumpTestsCompleted(attempt.UserID); err != nil {
		as.Logger.Printf("[ERROR] progress counter for user %d: %v", attempt.UserID, err)
	}

	return &attempt, nil
}

// applyCompletion folds a finished attempt into the best/latest
// projection: best score is monotonic, last score and timestamp always
// follow the newest submission.
func applyCompletion(completion *models.TestCompletion, attempt *models.TestAttempt) {
	if attempt.Score > completion.BestScore {
		completion.BestScore = attempt.Score
	}
	completion.LastScore = attempt.Score
	completion.AttemptCount++
	completion.LastCompletedAt = *attempt.CompletedAt
}

// upsertCompletion обновляет проекцию best/latest для пары (user, test)
func (as *AttemptService) upsertCompletion(attempt *models.TestAttempt) error {
	var completion models.TestCompletion
	err := as.DB.Where("user_id = ? AND test_id = ? AND test_type = ?",
		attempt.UserID, attempt.TestID, attempt.TestType).
		First(&completion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		completion = models.TestCompletion{
			UserID:   attempt.UserID,
			TestID:   attempt.TestID,
			TestType: attempt.TestType,
		}
		applyCompletion(&completion, attempt)
		return as.DB.Create(&completion).Error
	}
	if err != nil {
		return err
	}

	applyCompletion(&completion, attempt)
	return as.DB.Save(&completion).Error
}

// recomputeTestRanks переназначает ранги по best_score для одного теста
func (as *AttemptService) recomputeTestRanks(testID uint, testType string) error {
	var completions []models.TestCompletion
	if err := as.DB.Where("test_id = ? AND test_type = ?", testID, testType).
		Order("best_score DESC, last_completed_at ASC").
		Find(&completions).Error; err != nil {
		return err
	}

	for i := range completions {
		rank := i + 1
		if completions[i].Rank == rank {
			continue
		}
		if err := as.DB.Model(&completions[i]).Update("rank", rank).Error; err != nil {
			return err
		}
	}
	return nil
}

func (as *AttemptService) bumpTestsCompleted(userID uint) error {
	var progress models.UserProgress
	err := as.DB.Where("user_id = ?", userID).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		progress = models.UserProgress{UserID: userID, LastActive: time.Now(), TestsCompleted: 1}
		return as.DB.Create(&progress).Error
	}
	if err != nil {
		return err
	}
	progress.TestsCompleted++
	progress.LastActive = time.Now()
	return as.DB.Save(&progress).Error
}

// GetAttemptHistory returns all attempts for a (user, test, type) pair,
// newest first.
func (as *AttemptService) GetAttemptHistory(userID, testID uint, testType string) ([]models.TestAttempt, error) {
	var attempts []models.TestAttempt
	err := as.DB.Where("user_id = ? AND test_id = ? AND test_type = ?", userID, testID, testType).
		Order("started_at DESC").
		Find(&attempts).Error
	return attempts, err
}
