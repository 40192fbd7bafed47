package services

import (
	"errors"
	"log"
	"time"

	"examprep/backend/models"

	"gorm.io/gorm"
)

const (
	// ProMaxTests — лимит премиум-тестов для тарифа pro за расчетный период
	ProMaxTests = 11
	// UnlimitedTests моделирует безлимит тарифа pro_plus
	UnlimitedTests = 999999
	// GracePeriodDays — окно после конца подписки, когда доступ еще открыт
	GracePeriodDays = 7
)

// PlanLimits is the derived quota view for a user, recomputed on request.
type PlanLimits struct {
	PlanType       string    `json:"plan_type"`
	MaxTests       int       `json:"max_tests"`
	UsedTests      int       `json:"used_tests"`
	RemainingTests int       `json:"remaining_tests"`
	CanTakeTest    bool      `json:"can_take_test"`
	IsGracePeriod  bool      `json:"is_grace_period"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
}

type MembershipService struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewMembershipService(db *gorm.DB, logger *log.Logger) *MembershipService {
	return &MembershipService{DB: db, Logger: logger}
}

// ResolveMembershipState reports whether a membership row is still active
// at the given instant. An end date equal to now counts as expired.
func ResolveMembershipState(m *models.Membership, now time.Time) string {
	if m == nil || m.Status != models.MembershipActive {
		return models.MembershipExpired
	}
	if !now.Before(m.EndDate) {
		return models.MembershipExpired
	}
	return models.MembershipActive
}

// InGracePeriod reports whether the membership end date has passed but
// the instant still falls inside the post-expiry grace window. Cancelled
// rows were superseded by a repurchase and never get grace.
func InGracePeriod(m *models.Membership, now time.Time) bool {
	if m == nil || m.Status == models.MembershipCancelled {
		return false
	}
	return !now.Before(m.EndDate) && now.Before(m.EndDate.Add(GracePeriodDays*24*time.Hour))
}

// EffectivePlan returns the plan the quota should be computed for at the
// given instant, plus whether the grace warning applies. After the end
// date access continues at the paid tier for the grace window, then
// drops to free.
func EffectivePlan(m *models.Membership, now time.Time) (string, bool) {
	if m == nil || m.Status == models.MembershipCancelled {
		return models.PlanFree, false
	}
	if ResolveMembershipState(m, now) == models.MembershipActive {
		return m.PlanID, false
	}
	if InGracePeriod(m, now) {
		return m.PlanID, true
	}
	return models.PlanFree, false
}

// ComputePlanLimits строит квоту по тарифу и числу использованных тестов
func ComputePlanLimits(planID string, usedTests int) PlanLimits {
	limits := PlanLimits{PlanType: planID, UsedTests: usedTests}

	switch planID {
	case models.PlanPro:
		limits.MaxTests = ProMaxTests
	case models.PlanProPlus:
		limits.MaxTests = UnlimitedTests
	default:
		limits.PlanType = models.PlanFree
		limits.MaxTests = 0
	}

	limits.RemainingTests = limits.MaxTests - usedTests
	if limits.RemainingTests < 0 {
		limits.RemainingTests = 0
	}
	limits.CanTakeTest = limits.RemainingTests > 0

	return limits
}

// BillingPeriodStart returns the window start for quota counting: the
// membership start date, or the first of the current month without one.
func BillingPeriodStart(m *models.Membership, now time.Time) time.Time {
	if m != nil && !m.StartDate.IsZero() {
		return m.StartDate
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}

// GetUserPlanLimits реализует ленивую проверку истечения подписки: если
// end_date уже прошла, помечает подписку expired, сбрасывает тариф в
// профиле и создает уведомление. В течение 7 дней после end_date доступ
// остается на оплаченном тарифе с флагом grace, затем квота считается
// как для free. Любая ошибка чтения дает максимально закрытый результат.
func (ms *MembershipService) GetUserPlanLimits(userID uint) PlanLimits {
	now := time.Now()

	// Expired rows are still read so the grace window survives the
	// lazy expiry write of an earlier request
	var membership models.Membership
	err := ms.DB.Where("user_id = ? AND status IN ?", userID,
		[]string{models.MembershipActive, models.MembershipExpired}).
		Order("end_date DESC").First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ComputePlanLimits(models.PlanFree, 0)
		}
		ms.Logger.Printf("[ERROR] plan limits: membership lookup for user %d: %v", userID, err)
		return failClosed()
	}

	if membership.Status == models.MembershipActive &&
		ResolveMembershipState(&membership, now) == models.MembershipExpired {
		ms.expireMembership(&membership)
	}

	planID, grace := EffectivePlan(&membership, now)
	if planID == models.PlanFree {
		return ComputePlanLimits(models.PlanFree, 0)
	}

	used, err := ms.countPremiumTestsUsed(userID, BillingPeriodStart(&membership, now))
	if err != nil {
		ms.Logger.Printf("[ERROR] plan limits: usage count for user %d: %v", userID, err)
		return failClosed()
	}

	limits := ComputePlanLimits(planID, used)
	limits.IsGracePeriod = grace
	limits.ExpiresAt = membership.EndDate
	return limits
}

// countPremiumTestsUsed считает различные премиум-тесты, начатые в
// расчетном периоде. Повторы того же теста квоту не расходуют.
func (ms *MembershipService) countPremiumTestsUsed(userID uint, since time.Time) (int, error) {
	var count int64
	err := ms.DB.Model(&models.TestAttempt{}).
		Joins("JOIN tests ON tests.id = test_attempts.test_id").
		Where("test_attempts.user_id = ? AND tests.is_premium = true AND test_attempts.started_at >= ?",
			userID, since).
		Distinct("test_attempts.test_id").
		Count(&count).Error
	return int(count), err
}

// expireMembership — побочный эффект ленивой проверки: каждая запись
// логируется и не откатывает предыдущие шаги при ошибке.
func (ms *MembershipService) expireMembership(m *models.Membership) {
	m.Status = models.MembershipExpired
	if err := ms.DB.Save(m).Error; err != nil {
		ms.Logger.Printf("[ERROR] expire membership %d: %v", m.ID, err)
	}

	if err := ms.DB.Model(&models.User{}).Where("id = ?", m.UserID).
		Update("plan", models.PlanFree).Error; err != nil {
		ms.Logger.Printf("[ERROR] reset plan for user %d: %v", m.UserID, err)
	}

	notification := models.Notification{
		UserID:  m.UserID,
		Kind:    "membership_expired",
		Title:   "Membership expired",
		Message: "Your " + m.PlanID + " membership has expired. Renew to keep access to premium tests.",
	}
	if err := ms.DB.Create(&notification).Error; err != nil {
		ms.Logger.Printf("[ERROR] expiry notification for user %d: %v", m.UserID, err)
	}
}

// ActivateMembership supersedes any active membership with a new row for
// the purchased plan. Called from the payment webhook path.
func (ms *MembershipService) ActivateMembership(userID uint, planID string, durationDays int) (*models.Membership, error) {
	now := time.Now()

	// Отменяем предыдущую активную подписку
	if err := ms.DB.Model(&models.Membership{}).
		Where("user_id = ? AND status = ?", userID, models.MembershipActive).
		Update("status", models.MembershipCancelled).Error; err != nil {
		return nil, err
	}

	membership := models.Membership{
		UserID:    userID,
		PlanID:    planID,
		Status:    models.MembershipActive,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, durationDays),
	}
	if err := ms.DB.Create(&membership).Error; err != nil {
		return nil, err
	}

	if err := ms.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("plan", planID).Error; err != nil {
		ms.Logger.Printf("[ERROR] update profile plan for user %d: %v", userID, err)
	}

	return &membership, nil
}

// GetMembershipStatus returns the current membership row after the lazy
// expiry check, or nil for a free user. A membership inside the grace
// window is still returned, carrying the expired status.
func (ms *MembershipService) GetMembershipStatus(userID uint) (*models.Membership, error) {
	now := time.Now()

	var membership models.Membership
	err := ms.DB.Where("user_id = ? AND status IN ?", userID,
		[]string{models.MembershipActive, models.MembershipExpired}).
		Order("end_date DESC").First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if membership.Status == models.MembershipActive &&
		ResolveMembershipState(&membership, now) == models.MembershipExpired {
		ms.expireMembership(&membership)
	}

	if planID, _ := EffectivePlan(&membership, now); planID == models.PlanFree {
		return nil, nil
	}

	return &membership, nil
}

func failClosed() PlanLimits {
	return PlanLimits{
		PlanType:       models.PlanFree,
		MaxTests:       0,
		UsedTests:      0,
		RemainingTests: 0,
		CanTakeTest:    false,
	}
}
