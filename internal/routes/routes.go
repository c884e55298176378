package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/sellerspro/internal/config"
	"github.com/example/sellerspro/internal/handlers"
	"github.com/example/sellerspro/internal/metrics"
	"github.com/example/sellerspro/internal/middleware"
	"github.com/example/sellerspro/internal/services"
)

// NewApp builds the Fiber application with the shared middleware stack.
func NewApp(cfg *config.Config, log *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Sellers Pro API",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))

	return app
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, log *logrus.Logger, registry *prometheus.Registry) {
	m := metrics.New(registry)
	validate := handlers.NewValidator()

	identity := services.NewIdentityService(db, nil)
	otp := services.NewOTPService(db, cfg.OTPTTL, cfg.OTPLength, nil)
	sessions := services.NewSessionService(db, cfg.SessionTTL, nil)
	authz := services.NewAuthorizer(db, nil)
	progress := services.NewProgressService(db, nil)
	lessons := services.NewLessonService(db)
	stats := services.NewStatsService(db, nil)
	leads := services.NewLeadService(db, nil)
	telegram := services.NewTelegramService(cfg.TelegramToken, cfg.TelegramAPI, cfg.AdminChatID)

	signIn := services.NewSignInService(otp, sessions)

	authHandler := handlers.NewAuthHandler(otp, signIn, authz, identity, progress, validate, m, log)
	lessonHandler := handlers.NewLessonHandler(lessons, progress, m)
	leadHandler := handlers.NewLeadHandler(leads, telegram, validate, log, cfg.AmoCRMWebhookToken)
	adminHandler := handlers.NewAdminHandler(identity, stats, lessons, leads, validate, cfg)

	app.Get("/health", handlers.Health(db))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/verify-otp", authHandler.VerifyOTP)
	auth.Post("/verify-token", authHandler.VerifyToken)

	// Lessons
	requireSession := middleware.AuthMiddleware(authz, m)
	lessonRoutes := api.Group("/lessons")
	lessonRoutes.Get("/", lessonHandler.ListLessons)
	lessonRoutes.Get("/progress", requireSession, lessonHandler.GetProgress)
	lessonRoutes.Post("/complete/:lessonId", requireSession, lessonHandler.CompleteLesson)
	lessonRoutes.Get("/:id", lessonHandler.GetLesson)

	// Leads
	api.Post("/leads", leadHandler.SubmitLead)
	api.Post("/amocrm/webhook", leadHandler.AmoCRMWebhook)

	// Admin
	admin := api.Group("/admin")
	admin.Post("/login", adminHandler.Login)

	protected := admin.Group("", middleware.AdminMiddleware(cfg.AdminJWTSecret))
	protected.Get("/stats", adminHandler.DashboardStats)
	protected.Get("/users", adminHandler.ListAllUsers)
	protected.Post("/subscription/:userId", adminHandler.UpdateSubscription)
	protected.Post("/lesson", adminHandler.SaveLesson)
	protected.Post("/add-user", adminHandler.AddUser)
	protected.Delete("/user/:userId", adminHandler.DeleteUser)
	protected.Get("/leads", adminHandler.ListLeads)
}
