package services

import (
	"encoding/json"
	"testing"
	"time"

	"examprep/backend/config"
	"examprep/backend/models"

	"github.com/stretchr/testify/assert"
)

const capturedPayload = `{
	"event": "payment.captured",
	"payload": {
		"payment": {
			"entity": {
				"id": "pay_29QQoUBi66xm2f",
				"order_id": "order_9A33XWu170gUtm",
				"status": "captured"
			}
		}
	}
}`

const orderPaidPayload = `{
	"event": "order.paid",
	"payload": {
		"order": {
			"entity": {
				"id": "order_9A33XWu170gUtm",
				"status": "paid"
			}
		}
	}
}`

const failedPayload = `{
	"event": "payment.failed",
	"payload": {
		"payment": {
			"entity": {
				"id": "pay_FImFz6XD9NTvzM",
				"order_id": "order_FImFyfFBzvXWCM",
				"error_description": "Payment was unsuccessful due to a temporary issue"
			}
		}
	}
}`

func TestWebhookEventParsing(t *testing.T) {
	var event webhookEvent
	assert.NoError(t, json.Unmarshal([]byte(capturedPayload), &event))
	assert.Equal(t, "payment.captured", event.Event)
	assert.Equal(t, "order_9A33XWu170gUtm", event.orderRef())
	assert.Equal(t, "pay_29QQoUBi66xm2f", event.Payload.Payment.Entity.ID)

	// order.paid carries the order id in the order entity instead
	event = webhookEvent{}
	assert.NoError(t, json.Unmarshal([]byte(orderPaidPayload), &event))
	assert.Equal(t, "order_9A33XWu170gUtm", event.orderRef())

	event = webhookEvent{}
	assert.NoError(t, json.Unmarshal([]byte(failedPayload), &event))
	assert.Equal(t, "order_FImFyfFBzvXWCM", event.orderRef())
	assert.Contains(t, event.Payload.Payment.Entity.ErrorDescription, "unsuccessful")
}

func TestEventProcessedGatesRedelivery(t *testing.T) {
	now := time.Now()

	// Clean processing: redelivery is skipped
	assert.True(t, eventProcessed(&models.WebhookEvent{ProcessedAt: &now}))

	// Dispatch failed: the stored row must not block the retry
	assert.False(t, eventProcessed(&models.WebhookEvent{
		ProcessedAt: &now,
		Error:       "payment for order order_9A33XWu170gUtm not found: record not found",
	}))

	// Never dispatched at all
	assert.False(t, eventProcessed(&models.WebhookEvent{}))
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	// Signature check happens before any database access
	ps := &PaymentService{
		Cfg:    &config.Config{RazorpayWebhookSecret: "whsec_test"},
		Logger: testLogger(),
	}

	err := ps.HandleWebhook([]byte(capturedPayload), "deadbeef", "evt_1")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
