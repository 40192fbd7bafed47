package services

import (
	"testing"
	"time"

	"examprep/backend/models"

	"github.com/stretchr/testify/assert"
)

func activeMembership(plan string, start, end time.Time) *models.Membership {
	return &models.Membership{
		UserID:    1,
		PlanID:    plan,
		Status:    models.MembershipActive,
		StartDate: start,
		EndDate:   end,
	}
}

func TestResolveMembershipState(t *testing.T) {
	now := time.Now()

	m := activeMembership(models.PlanPro, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	assert.Equal(t, models.MembershipExpired, ResolveMembershipState(nil, now))
	assert.Equal(t, models.MembershipActive, ResolveMembershipState(m, now))

	// End date in the past
	m.EndDate = now.Add(-time.Hour)
	assert.Equal(t, models.MembershipExpired, ResolveMembershipState(m, now))

	// End date exactly now counts as expired
	m.EndDate = now
	assert.Equal(t, models.MembershipExpired, ResolveMembershipState(m, now))

	// Cancelled rows are never active regardless of dates
	m.EndDate = now.AddDate(0, 1, 0)
	m.Status = models.MembershipCancelled
	assert.Equal(t, models.MembershipExpired, ResolveMembershipState(m, now))
}

func TestInGracePeriod(t *testing.T) {
	now := time.Now()

	// Still running, no grace yet
	m := activeMembership(models.PlanPro, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	assert.False(t, InGracePeriod(m, now))

	// Three days past the end date: inside the 7-day window
	m.EndDate = now.Add(-3 * 24 * time.Hour)
	assert.True(t, InGracePeriod(m, now))

	// A lazy expiry write does not end the window early
	m.Status = models.MembershipExpired
	assert.True(t, InGracePeriod(m, now))

	// Eight days past: window over
	m.EndDate = now.Add(-8 * 24 * time.Hour)
	assert.False(t, InGracePeriod(m, now))

	// Superseded rows never get grace
	m.Status = models.MembershipCancelled
	m.EndDate = now.Add(-time.Hour)
	assert.False(t, InGracePeriod(m, now))

	assert.False(t, InGracePeriod(nil, now))
}

func TestEffectivePlanGraceWindow(t *testing.T) {
	now := time.Now()

	// Active membership: paid plan, no warning
	m := activeMembership(models.PlanPro, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0))
	plan, grace := EffectivePlan(m, now)
	assert.Equal(t, models.PlanPro, plan)
	assert.False(t, grace)

	// Three days past expiry keeps the paid tier with the grace flag
	m.EndDate = now.Add(-3 * 24 * time.Hour)
	plan, grace = EffectivePlan(m, now)
	assert.Equal(t, models.PlanPro, plan)
	assert.True(t, grace)

	// Past the grace window access drops to free
	m.EndDate = now.Add(-8 * 24 * time.Hour)
	plan, grace = EffectivePlan(m, now)
	assert.Equal(t, models.PlanFree, plan)
	assert.False(t, grace)

	plan, _ = EffectivePlan(nil, now)
	assert.Equal(t, models.PlanFree, plan)
}

func TestComputePlanLimitsFree(t *testing.T) {
	limits := ComputePlanLimits(models.PlanFree, 0)

	assert.Equal(t, models.PlanFree, limits.PlanType)
	assert.Equal(t, 0, limits.MaxTests)
	assert.Equal(t, 0, limits.RemainingTests)
	assert.False(t, limits.CanTakeTest)
}

func TestComputePlanLimitsPro(t *testing.T) {
	limits := ComputePlanLimits(models.PlanPro, 5)
	assert.Equal(t, ProMaxTests, limits.MaxTests)
	assert.Equal(t, 5, limits.UsedTests)
	assert.Equal(t, 6, limits.RemainingTests)
	assert.True(t, limits.CanTakeTest)

	// Quota exhausted
	limits = ComputePlanLimits(models.PlanPro, 11)
	assert.Equal(t, 0, limits.RemainingTests)
	assert.False(t, limits.CanTakeTest)

	// Over-count never goes negative
	limits = ComputePlanLimits(models.PlanPro, 15)
	assert.Equal(t, 0, limits.RemainingTests)
	assert.False(t, limits.CanTakeTest)
}

func TestComputePlanLimitsProPlus(t *testing.T) {
	limits := ComputePlanLimits(models.PlanProPlus, 500)

	assert.Equal(t, UnlimitedTests, limits.MaxTests)
	assert.True(t, limits.CanTakeTest)
}

func TestComputePlanLimitsUnknownPlanFallsBackToFree(t *testing.T) {
	limits := ComputePlanLimits("enterprise", 3)

	assert.Equal(t, models.PlanFree, limits.PlanType)
	assert.False(t, limits.CanTakeTest)
}

func TestBillingPeriodStart(t *testing.T) {
	now := time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC)

	start := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
	m := activeMembership(models.PlanPro, start, now.AddDate(0, 1, 0))
	assert.Equal(t, start, BillingPeriodStart(m, now))

	// Without a membership the window is anchored to the first of the month
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), BillingPeriodStart(nil, now))
}
