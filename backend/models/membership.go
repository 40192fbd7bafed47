package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PlanFree    = "free"
	PlanPro     = "pro"
	PlanProPlus = "pro_plus"
)

const (
	MembershipActive    = "active"
	MembershipExpired   = "expired"
	MembershipCancelled = "cancelled"
)

const (
	PaymentCreated  = "created"
	PaymentCaptured = "captured"
	PaymentFailed   = "failed"
)

type MembershipPlan struct {
	gorm.Model
	Name         string `gorm:"unique;not null"` // free, pro, pro_plus
	DisplayName  string
	Price        int64 // minor units (paise)
	Currency     string `gorm:"default:INR"`
	DurationDays int
	MaxTests     int // premium tests per billing period, 0 for free
}

// Membership tracks the paid tier for a user. At most one row per user
// is in the active state; expiry is detected lazily on read.
type Membership struct {
	gorm.Model
	UserID    uint   `gorm:"index;not null"`
	PlanID    string `gorm:"not null"` // free, pro, pro_plus
	Status    string `gorm:"default:active"`
	StartDate time.Time
	EndDate   time.Time
}

type Payment struct {
	gorm.Model
	UserID            uint   `gorm:"index;not null"`
	PlanID            string `gorm:"not null"`
	Amount            int64
	Currency          string `gorm:"default:INR"`
	Status            string `gorm:"default:created"` // created, captured, failed
	Receipt           string
	RazorpayOrderID   string `gorm:"uniqueIndex"`
	RazorpayPaymentID string
	FailureReason     string
}

// WebhookEvent stores every gateway notification we receive, keyed by the
// gateway's event id so redeliveries are processed once.
type WebhookEvent struct {
	gorm.Model
	EventID     string `gorm:"uniqueIndex;not null"`
	EventType   string
	Payload     datatypes.JSON
	ProcessedAt *time.Time
	Error       string
}
