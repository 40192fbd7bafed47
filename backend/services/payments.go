package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"examprep/backend/config"
	"examprep/backend/models"

	razorpay "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownPlan      = errors.New("unknown or non-purchasable plan")
)

// CheckoutConfig is what the client widget needs to open the checkout.
type CheckoutConfig struct {
	KeyID    string `json:"key_id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	PlanID   string `json:"plan_id"`
	Receipt  string `json:"receipt"`
}

// webhookEvent is the subset of the gateway payload we act on.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// orderRef возвращает order_id события независимо от его типа
func (e *webhookEvent) orderRef() string {
	if e.Payload.Payment.Entity.OrderID != "" {
		return e.Payload.Payment.Entity.OrderID
	}
	return e.Payload.Order.Entity.ID
}

type PaymentService struct {
	DB          *gorm.DB
	Cfg         *config.Config
	Client      *razorpay.Client
	Memberships *MembershipService
	Logger      *log.Logger
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, memberships *MembershipService, logger *log.Logger) *PaymentService {
	return &PaymentService{
		DB:          db,
		Cfg:         cfg,
		Client:      razorpay.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		Memberships: memberships,
		Logger:      logger,
	}
}

// CreateOrder creates a gateway order for a paid plan and records the
// pending payment. Verification of the actual charge happens only via
// the signed webhook, never from the client callback.
func (ps *PaymentService) CreateOrder(userID uint, planName string) (*CheckoutConfig, error) {
	var plan models.MembershipPlan
	if err := ps.DB.Where("name = ?", planName).First(&plan).Error; err != nil {
		return nil, ErrUnknownPlan
	}
	if plan.Price <= 0 {
		return nil, ErrUnknownPlan
	}

	receipt := "rcpt_" + uuid.NewString()
	order, err := ps.Client.Order.Create(map[string]interface{}{
		"amount":   plan.Price,
		"currency": plan.Currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return nil, err
	}

	orderID, ok := order["id"].(string)
	if !ok || orderID == "" {
		return nil, fmt.Errorf("gateway returned no order id")
	}

	payment := models.Payment{
		UserID:          userID,
		PlanID:          plan.Name,
		Amount:          plan.Price,
		Currency:        plan.Currency,
		Status:          models.PaymentCreated,
		Receipt:         receipt,
		RazorpayOrderID: orderID,
	}
	if err := ps.DB.Create(&payment).Error; err != nil {
		return nil, err
	}

	return &CheckoutConfig{
		KeyID:    ps.Cfg.RazorpayKeyID,
		OrderID:  orderID,
		Amount:   plan.Price,
		Currency: plan.Currency,
		PlanID:   plan.Name,
		Receipt:  receipt,
	}, nil
}

// HandleWebhook verifies the gateway signature over the raw body, stores
// the event once and dispatches by type. Redelivered events are skipped
// by the unique event id.
func (ps *PaymentService) HandleWebhook(body []byte, signature, eventID string) error {
	if !rzputils.VerifyWebhookSignature(string(body), signature, ps.Cfg.RazorpayWebhookSecret) {
		return ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("malformed webhook payload: %w", err)
	}

	if eventID == "" {
		eventID = uuid.NewString()
	}

	var record models.WebhookEvent
	err := ps.DB.Where("event_id = ?", eventID).First(&record).Error
	switch {
	case err == nil:
		if eventProcessed(&record) {
			ps.Logger.Printf("[INFO] webhook %s already processed, skipping", eventID)
			return nil
		}
		// Повторная доставка после сбоя — диспатчим заново
		ps.Logger.Printf("[INFO] webhook %s redelivered after failure, retrying", eventID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = models.WebhookEvent{
			EventID:   eventID,
			EventType: event.Event,
			Payload:   datatypes.JSON(body),
		}
		if err := ps.DB.Create(&record).Error; err != nil {
			return err
		}
	default:
		return err
	}

	dispatchErr := ps.dispatch(&event)

	now := time.Now()
	record.ProcessedAt = &now
	record.Error = ""
	if dispatchErr != nil {
		record.Error = dispatchErr.Error()
	}
	if err := ps.DB.Save(&record).Error; err != nil {
		ps.Logger.Printf("[ERROR] webhook %s: save processing state: %v", eventID, err)
	}

	return dispatchErr
}

// eventProcessed reports whether a stored event finished dispatching
// cleanly. Events that failed mid-dispatch must be retried on the
// gateway's redelivery, otherwise a paid order never activates.
func eventProcessed(record *models.WebhookEvent) bool {
	return record.ProcessedAt != nil && record.Error == ""
}

func (ps *PaymentService) dispatch(event *webhookEvent) error {
	switch event.Event {
	case "payment.captured", "order.paid":
		return ps.handleCaptured(event.orderRef(), event.Payload.Payment.Entity.ID)
	case "payment.failed":
		return ps.handleFailed(event.orderRef(), event.Payload.Payment.Entity.ErrorDescription)
	case "payment.authorized":
		// Захват придет отдельным событием
		ps.Logger.Printf("[INFO] payment authorized for order %s", event.orderRef())
		return nil
	default:
		ps.Logger.Printf("[INFO] unhandled webhook event type %s", event.Event)
		return nil
	}
}

// handleCaptured помечает платеж оплаченным и активирует подписку.
// Повторный вызов для уже оплаченного заказа ничего не меняет.
func (ps *PaymentService) handleCaptured(orderID, paymentID string) error {
	var payment models.Payment
	if err := ps.DB.Where("razorpay_order_id = ?", orderID).First(&payment).Error; err != nil {
		return fmt.Errorf("payment for order %s not found: %w", orderID, err)
	}

	if payment.Status == models.PaymentCaptured {
		return nil
	}

	payment.Status = models.PaymentCaptured
	if paymentID != "" {
		payment.RazorpayPaymentID = paymentID
	}
	if err := ps.DB.Save(&payment).Error; err != nil {
		return err
	}

	var plan models.MembershipPlan
	if err := ps.DB.Where("name = ?", payment.PlanID).First(&plan).Error; err != nil {
		return fmt.Errorf("plan %s not found: %w", payment.PlanID, err)
	}

	if _, err := ps.Memberships.ActivateMembership(payment.UserID, plan.Name, plan.DurationDays); err != nil {
		return err
	}

	notification := models.Notification{
		UserID:  payment.UserID,
		Kind:    "payment_captured",
		Title:   "Payment successful",
		Message: "Your " + plan.DisplayName + " membership is now active.",
	}
	if err := ps.DB.Create(&notification).Error; err != nil {
		ps.Logger.Printf("[ERROR] capture notification for user %d: %v", payment.UserID, err)
	}

	return nil
}

func (ps *PaymentService) handleFailed(orderID, reason string) error {
	var payment models.Payment
	if err := ps.DB.Where("razorpay_order_id = ?", orderID).First(&payment).Error; err != nil {
		return fmt.Errorf("payment for order %s not found: %w", orderID, err)
	}

	if payment.Status == models.PaymentCaptured {
		// Capture already won, ignore the stale failure
		return nil
	}

	payment.Status = models.PaymentFailed
	payment.FailureReason = reason
	if err := ps.DB.Save(&payment).Error; err != nil {
		return err
	}

	notification := models.Notification{
		UserID:  payment.UserID,
		Kind:    "payment_failed",
		Title:   "Payment failed",
		Message: "Your payment could not be processed. No money was deducted, please try again.",
	}
	if err := ps.DB.Create(&notification).Error; err != nil {
		ps.Logger.Printf("[ERROR] failure notification for user %d: %v", payment.UserID, err)
	}

	return nil
}
