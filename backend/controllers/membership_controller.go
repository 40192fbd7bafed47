package controllers

import (
	"examprep/backend/config"
	"examprep/backend/models"
	"examprep/backend/services"
	"examprep/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MembershipController struct {
	DB          *gorm.DB
	Cfg         *config.Config
	Memberships *services.MembershipService
}

func NewMembershipController(db *gorm.DB, cfg *config.Config, memberships *services.MembershipService) *MembershipController {
	return &MembershipController{DB: db, Cfg: cfg, Memberships: memberships}
}

// GetMembership возвращает текущий статус подписки и квоту
func (mc *MembershipController) GetMembership(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, mc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	membership, err := mc.Memberships.GetMembershipStatus(userID)
	if err != nil {
		return utils.CategoryError(c, fiber.StatusInternalServerError, utils.ErrDatabase, err)
	}

	limits := mc.Memberships.GetUserPlanLimits(userID)

	response := fiber.Map{
		"limits": limits,
	}
	if membership != nil {
		response["membership"] = fiber.Map{
			"plan":       membership.PlanID,
			"status":     membership.Status,
			"start_date": membership.StartDate,
			"end_date":   membership.EndDate,
		}
	}

	return utils.Success(c, fiber.StatusOK, response)
}

// GetPlans возвращает список тарифов для страницы покупки
func (mc *MembershipController) GetPlans(c *fiber.Ctx) error {
	var plans []models.MembershipPlan
	if err := mc.DB.Where("price > 0").Order("price ASC").Find(&plans).Error; err != nil {
		return utils.CategoryError(c, fiber.StatusInternalServerError, utils.ErrDatabase, err)
	}

	var result []fiber.Map
	for _, plan := range plans {
		result = append(result, fiber.Map{
			"name":          plan.Name,
			"display_name":  plan.DisplayName,
			"price":         plan.Price,
			"currency":      plan.Currency,
			"duration_days": plan.DurationDays,
			"max_tests":     plan.MaxTests,
			"unlimited":     plan.Name == models.PlanProPlus,
		})
	}

	return utils.Success(c, fiber.StatusOK, result)
}
