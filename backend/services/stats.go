package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"examprep/backend/models"

	"github.com/patrickmn/go-cache"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const statsCacheTTL = 5 * time.Minute

// CategoryStats is the per-test-type slice of the aggregate.
type CategoryStats struct {
	Count   int     `json:"count"`
	Best    float64 `json:"best"`
	Average float64 `json:"average"`
}

type RecentTest struct {
	TestID      uint      `json:"test_id"`
	TestType    string    `json:"test_type"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
}

// ComprehensiveStats aggregates all completed attempts for one exam.
type ComprehensiveStats struct {
	BestScore      float64                  `json:"best_score"`
	Last10Average  float64                  `json:"last10_average"`
	TotalCompleted int                      `json:"total_completed"`
	Breakdown      map[string]CategoryStats `json:"breakdown"`
	RecentTests    []RecentTest             `json:"recent_tests"`
}

type StatsService struct {
	DB     *gorm.DB
	Logger *log.Logger
	cache  *cache.Cache
}

func NewStatsService(db *gorm.DB, logger *log.Logger) *StatsService {
	return &StatsService{
		DB:     db,
		Logger: logger,
		cache:  cache.New(statsCacheTTL, 10*time.Minute),
	}
}

func statsCacheKey(userID, examID uint) string {
	return fmt.Sprintf("%d:%d", userID, examID)
}

// AggregateAttempts сводит завершенные попытки: лучший результат,
// среднее последних 10 (с округлением) и разбивка по типам тестов.
func AggregateAttempts(attempts []models.TestAttempt) ComprehensiveStats {
	stats := ComprehensiveStats{Breakdown: make(map[string]CategoryStats)}

	completed := make([]models.TestAttempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Status == models.AttemptCompleted && a.CompletedAt != nil {
			completed = append(completed, a)
		}
	}
	stats.TotalCompleted = len(completed)
	if len(completed) == 0 {
		return stats
	}

	// Сортируем по времени завершения, новые первыми
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CompletedAt.After(*completed[j].CompletedAt)
	})

	last := completed
	if len(last) > 10 {
		last = last[:10]
	}
	var sum float64
	for _, a := range last {
		sum += a.Score
	}
	stats.Last10Average = math.Round(sum / float64(len(last)))

	totals := make(map[string]float64)
	for _, a := range completed {
		if a.Score > stats.BestScore {
			stats.BestScore = a.Score
		}

		cat := stats.Breakdown[a.TestType]
		cat.Count++
		if a.Score > cat.Best {
			cat.Best = a.Score
		}
		totals[a.TestType] += a.Score
		stats.Breakdown[a.TestType] = cat
	}
	for testType, cat := range stats.Breakdown {
		cat.Average = math.Round(totals[testType] / float64(cat.Count))
		stats.Breakdown[testType] = cat
	}

	for i, a := range completed {
		if i >= 10 {
			break
		}
		stats.RecentTests = append(stats.RecentTests, RecentTest{
			TestID:      a.TestID,
			TestType:    a.TestType,
			Score:       a.Score,
			CompletedAt: *a.CompletedAt,
		})
	}

	return stats
}

// GetComprehensiveStats returns the aggregate for (user, exam), serving
// from the TTL cache when fresh.
func (ss *StatsService) GetComprehensiveStats(userID, examID uint) (ComprehensiveStats, error) {
	key := statsCacheKey(userID, examID)
	if cached, found := ss.cache.Get(key); found {
		return cached.(ComprehensiveStats), nil
	}

	var attempts []models.TestAttempt
	if err := ss.DB.Where("user_id = ? AND exam_id = ?", userID, examID).
		Find(&attempts).Error; err != nil {
		return ComprehensiveStats{}, err
	}

	stats := AggregateAttempts(attempts)
	ss.cache.Set(key, stats, cache.DefaultExpiration)
	return stats, nil
}

// Invalidate drops the cached aggregate after a new submission.
func (ss *StatsService) Invalidate(userID, examID uint) {
	ss.cache.Delete(statsCacheKey(userID, examID))
}

// Flush очищает весь кэш (logout, тесты)
func (ss *StatsService) Flush() {
	ss.cache.Flush()
}

// UpdateExamStats persists the recomputed aggregate into exam_stats.
func (ss *StatsService) UpdateExamStats(userID, examID uint) error {
	var attempts []models.TestAttempt
	if err := ss.DB.Where("user_id = ? AND exam_id = ?", userID, examID).
		Find(&attempts).Error; err != nil {
		return err
	}

	stats := AggregateAttempts(attempts)
	breakdown, err := json.Marshal(stats.Breakdown)
	if err != nil {
		return err
	}

	row := models.ExamStats{
		UserID:         userID,
		ExamID:         examID,
		BestScore:      stats.BestScore,
		Last10Average:  stats.Last10Average,
		TotalCompleted: stats.TotalCompleted,
		Breakdown:      datatypes.JSON(breakdown),
	}

	var existing models.ExamStats
	err = ss.DB.Where("user_id = ? AND exam_id = ?", userID, examID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ss.DB.Create(&row).Error
	}
	if err != nil {
		return err
	}

	existing.BestScore = row.BestScore
	existing.Last10Average = row.Last10Average
	existing.TotalCompleted = row.TotalCompleted
	existing.Breakdown = row.Breakdown
	return ss.DB.Save(&existing).Error
}
