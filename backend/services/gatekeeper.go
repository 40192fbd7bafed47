package services

import (
	"fmt"
	"log"

	"examprep/backend/models"

	"gorm.io/gorm"
)

// GateDecision is the verdict for a start/retry request.
type GateDecision struct {
	CanTake bool   `json:"can_take"`
	Reason  string `json:"reason,omitempty"`
	IsRetry bool   `json:"is_retry"`
}

type GatekeeperService struct {
	DB          *gorm.DB
	Memberships *MembershipService
	Logger      *log.Logger
}

func NewGatekeeperService(db *gorm.DB, memberships *MembershipService, logger *log.Logger) *GatekeeperService {
	return &GatekeeperService{DB: db, Memberships: memberships, Logger: logger}
}

// Decide is the pure decision core over already-fetched state.
// Order matters: free tests are always allowed, retries bypass quota.
func Decide(limits PlanLimits, isPremium, hasCompleted bool) GateDecision {
	if !isPremium {
		return GateDecision{CanTake: true}
	}

	if limits.PlanType == models.PlanFree {
		return GateDecision{
			CanTake: false,
			Reason:  "This is a premium test. Upgrade to Pro or Pro+ to unlock it.",
		}
	}

	// Повтор уже пройденного теста не расходует квоту
	if hasCompleted {
		return GateDecision{CanTake: true, IsRetry: true}
	}

	if !limits.CanTakeTest {
		return GateDecision{
			CanTake: false,
			Reason: fmt.Sprintf("You have used all %d tests in your Pro plan (%d/%d). Upgrade to Pro+ for unlimited tests.",
				limits.MaxTests, limits.UsedTests, limits.MaxTests),
		}
	}

	return GateDecision{CanTake: true}
}

// CanUserTakeTest authorizes a start request for the given test.
func (gs *GatekeeperService) CanUserTakeTest(userID uint, testType string, test *models.Test) GateDecision {
	if !test.IsPremium {
		return GateDecision{CanTake: true}
	}

	limits := gs.Memberships.GetUserPlanLimits(userID)

	hasCompleted, err := gs.hasCompletedAttempt(userID, test.ID, testType)
	if err != nil {
		gs.Logger.Printf("[ERROR] gatekeeper: completed-attempt lookup for user %d test %d: %v", userID, test.ID, err)
		hasCompleted = false
	}

	return Decide(limits, test.IsPremium, hasCompleted)
}

func (gs *GatekeeperService) hasCompletedAttempt(userID, testID uint, testType string) (bool, error) {
	var count int64
	err := gs.DB.Model(&models.TestAttempt{}).
		Where("user_id = ? AND test_id = ? AND test_type = ? AND status = ?",
			userID, testID, testType, models.AttemptCompleted).
		Count(&count).Error
	return count > 0, err
}
