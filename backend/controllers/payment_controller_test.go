package controllers

import (
	"bytes"
	"io"
	"log"
	"net/http/httptest"
	"testing"

	"examprep/backend/config"
	"examprep/backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func webhookTestApp() *fiber.App {
	cfg := &config.Config{RazorpayWebhookSecret: "whsec_test"}
	logger := log.New(io.Discard, "", 0)

	payments := services.NewPaymentService(nil, cfg, services.NewMembershipService(nil, logger), logger)
	controller := NewPaymentController(nil, cfg, payments)

	app := fiber.New()
	app.Post("/api/payments/webhook", controller.Webhook)
	return app
}

func TestWebhookMissingSignature(t *testing.T) {
	app := webhookTestApp()

	req := httptest.NewRequest("POST", "/api/payments/webhook", bytes.NewBufferString(`{"event":"payment.captured"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWebhookInvalidSignature(t *testing.T) {
	app := webhookTestApp()

	req := httptest.NewRequest("POST", "/api/payments/webhook", bytes.NewBufferString(`{"event":"payment.captured"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Razorpay-Signature", "deadbeef")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
