package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"examprep/backend/models"
)

func completedAttempt(score float64, completedAt time.Time) *models.TestAttempt {
	return &models.TestAttempt{
		UserID:      1,
		TestID:      10,
		TestType:    models.TestTypeMock,
		Status:      models.AttemptCompleted,
		Score:       score,
		CompletedAt: &completedAt,
	}
}

func TestRestartAttempt(t *testing.T) {
	started := time.Now().Add(-2 * time.Hour)
	finished := started.Add(30 * time.Minute)
	attempt := models.TestAttempt{
		UserID:      1,
		TestID:      10,
		TestType:    models.TestTypeMock,
		Status:      models.AttemptInProgress,
		StartedAt:   started,
		CompletedAt: &finished,
	}

	now := time.Now()
	restartAttempt(&attempt, now)

	assert.Equal(t, models.AttemptInProgress, attempt.Status)
	assert.Equal(t, now, attempt.StartedAt, "resume should reset the clock")
	assert.Nil(t, attempt.CompletedAt)
}

func TestApplyCompletionFirstAttempt(t *testing.T) {
	completedAt := time.Now()
	completion := models.TestCompletion{
		UserID:   1,
		TestID:   10,
		TestType: models.TestTypeMock,
	}

	applyCompletion(&completion, completedAttempt(72, completedAt))

	assert.Equal(t, 72.0, completion.BestScore)
	assert.Equal(t, 72.0, completion.LastScore)
	assert.Equal(t, 1, completion.AttemptCount)
	assert.Equal(t, completedAt, completion.LastCompletedAt)
}

func TestApplyCompletionKeepsBestScore(t *testing.T) {
	first := time.Now().Add(-time.Hour)
	second := time.Now()
	completion := models.TestCompletion{UserID: 1, TestID: 10, TestType: models.TestTypeMock}

	applyCompletion(&completion, completedAttempt(85, first))
	applyCompletion(&completion, completedAttempt(60, second))

	assert.Equal(t, 85.0, completion.BestScore, "a worse retry must not lower the best")
	assert.Equal(t, 60.0, completion.LastScore)
	assert.Equal(t, 2, completion.AttemptCount)
	assert.Equal(t, second, completion.LastCompletedAt)
}

func TestApplyCompletionImprovesBestScore(t *testing.T) {
	first := time.Now().Add(-time.Hour)
	second := time.Now()
	completion := models.TestCompletion{UserID: 1, TestID: 10, TestType: models.TestTypeMock}

	applyCompletion(&completion, completedAttempt(55, first))
	applyCompletion(&completion, completedAttempt(90, second))

	assert.Equal(t, 90.0, completion.BestScore)
	assert.Equal(t, 90.0, completion.LastScore)
	assert.Equal(t, 2, completion.AttemptCount)
}

func TestPlanLimitsStableAcrossReads(t *testing.T) {
	// Reading limits must not change them: the same inputs give the
	// same answer no matter how many times they are computed.
	first := ComputePlanLimits(models.PlanPro, 4)
	second := ComputePlanLimits(models.PlanPro, 4)

	assert.Equal(t, first, second)
	assert.Equal(t, ProMaxTests, first.MaxTests)
	assert.Equal(t, 4, first.UsedTests)
	assert.Equal(t, ProMaxTests-4, first.RemainingTests)
}
