package controllers

import (
	"strconv"

	"examprep/backend/config"
	"examprep/backend/services"
	"examprep/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type StatsController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Stats *services.StatsService
}

func NewStatsController(db *gorm.DB, cfg *config.Config, stats *services.StatsService) *StatsController {
	return &StatsController{DB: db, Cfg: cfg, Stats: stats}
}

// GetExamStats возвращает сводную статистику пользователя по экзамену
func (sc *StatsController) GetExamStats(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, sc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	examID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return utils.BadRequest(c, "Invalid exam ID")
	}

	stats, err := sc.Stats.GetComprehensiveStats(userID, uint(examID))
	if err != nil {
		return utils.CategoryError(c, fiber.StatusInternalServerError, utils.ErrDatabase, err)
	}

	return utils.Success(c, fiber.StatusOK, stats)
}
