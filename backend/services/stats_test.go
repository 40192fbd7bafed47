package services

import (
	"io"
	"log"
	"testing"
	"time"

	"examprep/backend/models"

	"github.com/stretchr/testify/assert"
)

func statsCompletedAttempt(testID uint, testType string, score float64, completedAt time.Time) models.TestAttempt {
	return models.TestAttempt{
		UserID:      1,
		ExamID:      1,
		TestID:      testID,
		TestType:    testType,
		Status:      models.AttemptCompleted,
		Score:       score,
		CompletedAt: &completedAt,
	}
}

func TestAggregateAttemptsEmpty(t *testing.T) {
	stats := AggregateAttempts(nil)

	assert.Equal(t, 0, stats.TotalCompleted)
	assert.Equal(t, float64(0), stats.BestScore)
	assert.Empty(t, stats.RecentTests)
}

func TestAggregateAttemptsBestAndLast10(t *testing.T) {
	// Three prior completed attempts plus a fresh submission of 85
	base := time.Now().Add(-time.Hour)
	attempts := []models.TestAttempt{
		statsCompletedAttempt(1, models.TestTypeMock, 70, base),
		statsCompletedAttempt(2, models.TestTypeMock, 90, base.Add(time.Minute)),
		statsCompletedAttempt(3, models.TestTypeMock, 60, base.Add(2*time.Minute)),
		statsCompletedAttempt(4, models.TestTypeMock, 85, base.Add(3*time.Minute)),
	}

	stats := AggregateAttempts(attempts)

	assert.Equal(t, 4, stats.TotalCompleted)
	assert.Equal(t, float64(90), stats.BestScore)
	// round((70+90+60+85)/4) = round(76.25) = 76
	assert.Equal(t, float64(76), stats.Last10Average)
}

func TestAggregateAttemptsLast10Window(t *testing.T) {
	// 12 attempts; only the 10 most recent contribute to the average
	base := time.Now().Add(-24 * time.Hour)
	var attempts []models.TestAttempt
	for i := 0; i < 12; i++ {
		score := float64(50)
		if i >= 2 {
			score = 100 // the 10 newest
		}
		attempts = append(attempts, statsCompletedAttempt(uint(i+1), models.TestTypeMock, score, base.Add(time.Duration(i)*time.Minute)))
	}

	stats := AggregateAttempts(attempts)

	assert.Equal(t, float64(100), stats.Last10Average)
	assert.Len(t, stats.RecentTests, 10)
}

func TestAggregateAttemptsIgnoresInProgress(t *testing.T) {
	base := time.Now()
	attempts := []models.TestAttempt{
		statsCompletedAttempt(1, models.TestTypeMock, 80, base),
		{UserID: 1, ExamID: 1, TestID: 2, TestType: models.TestTypeMock, Status: models.AttemptInProgress, Score: 0},
	}

	stats := AggregateAttempts(attempts)

	assert.Equal(t, 1, stats.TotalCompleted)
	assert.Equal(t, float64(80), stats.Last10Average)
}

func TestAggregateAttemptsBreakdownByType(t *testing.T) {
	base := time.Now()
	attempts := []models.TestAttempt{
		statsCompletedAttempt(1, models.TestTypeMock, 80, base),
		statsCompletedAttempt(2, models.TestTypeMock, 60, base.Add(time.Minute)),
		statsCompletedAttempt(3, models.TestTypePYQ, 90, base.Add(2*time.Minute)),
	}

	stats := AggregateAttempts(attempts)

	mock := stats.Breakdown[models.TestTypeMock]
	assert.Equal(t, 2, mock.Count)
	assert.Equal(t, float64(80), mock.Best)
	assert.Equal(t, float64(70), mock.Average)

	pyq := stats.Breakdown[models.TestTypePYQ]
	assert.Equal(t, 1, pyq.Count)
	assert.Equal(t, float64(90), pyq.Best)

	_, hasPractice := stats.Breakdown[models.TestTypePractice]
	assert.False(t, hasPractice)
}

func TestAggregateAttemptsRecentTestsNewestFirst(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	attempts := []models.TestAttempt{
		statsCompletedAttempt(1, models.TestTypeMock, 50, base),
		statsCompletedAttempt(2, models.TestTypeMock, 75, base.Add(30*time.Minute)),
	}

	stats := AggregateAttempts(attempts)

	assert.Equal(t, uint(2), stats.RecentTests[0].TestID)
	assert.Equal(t, uint(1), stats.RecentTests[1].TestID)
}

func TestStatsCacheInvalidate(t *testing.T) {
	ss := NewStatsService(nil, testLogger())

	key := statsCacheKey(1, 2)
	ss.cache.SetDefault(key, ComprehensiveStats{BestScore: 42})

	// Served from cache without touching the database
	stats, err := ss.GetComprehensiveStats(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, float64(42), stats.BestScore)

	ss.Invalidate(1, 2)
	_, found := ss.cache.Get(key)
	assert.False(t, found)

	ss.cache.SetDefault(statsCacheKey(3, 4), ComprehensiveStats{})
	ss.Flush()
	_, found = ss.cache.Get(statsCacheKey(3, 4))
	assert.False(t, found)
}

func TestStatsCacheKey(t *testing.T) {
	assert.Equal(t, "7:9", statsCacheKey(7, 9))
	assert.NotEqual(t, statsCacheKey(1, 23), statsCacheKey(12, 3))
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
