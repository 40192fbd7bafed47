package controllers

import (
	"errors"

	"examprep/backend/config"
	"examprep/backend/services"
	"examprep/backend/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PaymentController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Payments *services.PaymentService
	validate *validator.Validate
}

func NewPaymentController(db *gorm.DB, cfg *config.Config, payments *services.PaymentService) *PaymentController {
	return &PaymentController{DB: db, Cfg: cfg, Payments: payments, validate: validator.New()}
}

type CreateOrderRequest struct {
	Plan string `json:"plan" validate:"required,oneof=pro pro_plus"`
}

// CreateOrder создает заказ в платежном шлюзе и возвращает конфигурацию
// для виджета оплаты
func (pc *PaymentController) CreateOrder(c *fiber.Ctx) error {
	userID, err := utils.ExtractUserIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	if err := pc.validate.Struct(&req); err != nil {
		return utils.ValidationError(c, map[string]string{
			"plan": "must be one of: pro, pro_plus",
		})
	}

	checkout, err := pc.Payments.CreateOrder(userID, req.Plan)
	if err != nil {
		if errors.Is(err, services.ErrUnknownPlan) {
			return utils.BadRequest(c, "Unknown plan")
		}
		return utils.CategoryError(c, fiber.StatusBadGateway, utils.ErrPayment, err)
	}

	return utils.Success(c, fiber.StatusOK, checkout)
}

// Webhook принимает подписанные уведомления шлюза. Подпись проверяется
// по сырому телу запроса до любого обращения к базе.
func (pc *PaymentController) Webhook(c *fiber.Ctx) error {
	signature := c.Get("X-Razorpay-Signature")
	if signature == "" {
		return utils.BadRequest(c, "Missing signature")
	}

	eventID := c.Get("X-Razorpay-Event-Id")

	if err := pc.Payments.HandleWebhook(c.Body(), signature, eventID); err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			return utils.BadRequest(c, "Invalid signature")
		}
		// Шлюз повторит доставку при не-2xx ответе
		return utils.CategoryError(c, fiber.StatusInternalServerError, utils.ErrPayment, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
