package controllers

import (
	"examprep/backend/config"
	"examprep/backend/models"
	"examprep/backend/services"
	"examprep/backend/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserController struct {
	DB          *gorm.DB
	Cfg         *config.Config
	Memberships *services.MembershipService
}

func NewUserController(db *gorm.DB, cfg *config.Config, memberships *services.MembershipService) *UserController {
	return &UserController{DB: db, Cfg: cfg, Memberships: memberships}
}

type UpdateUserRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
	TargetExam  string `json:"target_exam"`
}

// GetProfile godoc
// @Summary Get user profile
// @Description Returns authenticated user's profile data
// @Tags users
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /users/profile [get]
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, uc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	// Получаем прогресс пользователя
	var progress models.UserProgress
	uc.DB.Where("user_id = ?", userID).First(&progress)

	// Квота пересчитывается на каждый запрос профиля
	limits := uc.Memberships.GetUserPlanLimits(userID)

	// Последние уведомления
	var notifications []models.Notification
	uc.DB.Where("user_id = ?", userID).Order("created_at DESC").Limit(5).Find(&notifications)

	// Формируем ответ без чувствительных данных
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"role":          user.Role,
		"plan":          user.Plan,
		"target_exam":   user.TargetExam,
		"created_at":    user.CreatedAt,
		"progress":      progress,
		"limits":        limits,
		"notifications": notifications,
	})
}

// UpdateProfile обновляет профиль пользователя
func (uc *UserController) UpdateProfile(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, uc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var input UpdateUserRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	var user models.User
	if err := uc.DB.First(&user, userID).Error; err != nil {
		return utils.NotFound(c, "User not found")
	}

	if input.Username != "" {
		user.Username = input.Username
	}
	if input.Email != "" {
		user.Email = input.Email
	}
	if input.TargetExam != "" {
		user.TargetExam = input.TargetExam
	}

	// Смена пароля требует старый пароль
	if input.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
			return utils.Unauthorized(c, "Old password is incorrect")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return utils.InternalServerError(c, "Could not hash password")
		}
		user.PasswordHash = string(hashed)
	}

	if err := uc.DB.Save(&user).Error; err != nil {
		return utils.CategoryError(c, fiber.StatusInternalServerError, utils.ErrDatabase, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":          user.ID,
		"username":    user.Username,
		"email":       user.Email,
		"target_exam": user.TargetExam,
	})
}
