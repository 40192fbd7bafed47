package routes

import (
	"log"

	"examprep/backend/config"
	"examprep/backend/controllers"
	"examprep/backend/middleware"
	"examprep/backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger) {
	// Services are constructed once here and injected into controllers
	membershipService := services.NewMembershipService(db, logger)
	statsService := services.NewStatsService(db, logger)
	gatekeeperService := services.NewGatekeeperService(db, membershipService, logger)
	attemptService := services.NewAttemptService(db, statsService, logger)
	paymentService := services.NewPaymentService(db, cfg, membershipService, logger)

	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(db, cfg)

	// User routes
	userController := controllers.NewUserController(db, cfg, membershipService)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)

	// Membership routes
	membershipController := controllers.NewMembershipController(db, cfg, membershipService)
	app.Get("/api/membership", authMiddleware, membershipController.GetMembership)
	app.Get("/api/membership/plans", authMiddleware, membershipController.GetPlans)

	// Payment routes; the webhook is public, verified by signature
	paymentController := controllers.NewPaymentController(db, cfg, paymentService)
	app.Post("/api/payments/order", authMiddleware, paymentController.CreateOrder)
	app.Post("/api/payments/webhook", paymentController.Webhook)

	// Tests routes
	testsController := controllers.NewTestsController(db, cfg, gatekeeperService, attemptService)
	tests := app.Group("/api/tests", authMiddleware)
	tests.Get("/", testsController.GetAvailableTests)
	tests.Get("/:id", testsController.GetTestDetails)
	tests.Post("/:id/start", testsController.StartTest)
	tests.Post("/:id/submit", testsController.SubmitTest)
	tests.Get("/:id/result", testsController.GetTestResult)

	// Stats routes
	statsController := controllers.NewStatsController(db, cfg, statsService)
	app.Get("/api/exams/:id/stats", authMiddleware, statsController.GetExamStats)

	// Admin routes for tests
	adminTests := app.Group("/api/admin/tests", authMiddleware, adminMiddleware)
	adminTests.Post("/", testsController.CreateTest)
	adminTests.Post("/:id/questions", testsController.AddQuestion)
	adminTests.Put("/:id/questions/:questionId", testsController.UpdateQuestion)
}
