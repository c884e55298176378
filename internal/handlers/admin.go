package handlers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/example/sellerspro/internal/config"
	"github.com/example/sellerspro/internal/models"
	"github.com/example/sellerspro/internal/services"
	"github.com/example/sellerspro/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	identity *services.IdentityService
	stats    *services.StatsService
	lessons  *services.LessonService
	leads    *services.LeadService
	validate *validator.Validate
	cfg      *config.Config
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(
	identity *services.IdentityService,
	stats *services.StatsService,
	lessons *services.LessonService,
	leads *services.LeadService,
	validate *validator.Validate,
	cfg *config.Config,
) *AdminHandler {
	return &AdminHandler{identity: identity, stats: stats, lessons: lessons, leads: leads, validate: validate, cfg: cfg}
}

type adminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// Login exchanges the admin password for a short-lived admin token.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req adminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	if h.cfg.AdminPasswordHash == "" || h.cfg.AdminJWTSecret == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "admin access is not configured")
	}
	if !utils.CheckPassword(h.cfg.AdminPasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := utils.GenerateAdminToken(h.cfg.AdminJWTSecret, h.cfg.AdminTokenTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"token":      token,
		"expires_at": time.Now().Add(h.cfg.AdminTokenTTL),
	})
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.stats.Collect(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}

// ListAllUsers returns registered users with pagination.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	users, total, err := h.identity.ListUsers(c.UserContext(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
		"pagination": pg.Meta(total),
	})
}

type subscriptionRequest struct {
	SubscriptionType string `json:"subscription_type" validate:"omitempty,oneof=basic premium"`
	Days             int    `json:"days" validate:"omitempty,min=1,max=3650"`
	Active           *bool  `json:"active"`
}

// UpdateSubscription sets a user's plan. Defaults: basic, 30 days, active.
func (h *AdminHandler) UpdateSubscription(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	var req subscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	plan := req.SubscriptionType
	if plan == "" {
		plan = models.SubscriptionBasic
	}
	days := req.Days
	if days == 0 {
		days = 30
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	if err := h.identity.UpdateSubscription(c.UserContext(), uint(userID), plan, days, active); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "subscription updated"})
}

type lessonRequest struct {
	ID        uint                `json:"id" validate:"required"`
	Title     string              `json:"title" validate:"required"`
	Intro     string              `json:"intro"`
	VideoID   string              `json:"video_id"`
	Summary   string              `json:"summary"`
	Resources []models.LessonLink `json:"resources"`
	Downloads []models.LessonLink `json:"downloads"`
}

// SaveLesson creates or replaces lesson content.
func (h *AdminHandler) SaveLesson(c *fiber.Ctx) error {
	var req lessonRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	lesson := models.Lesson{
		ID:        req.ID,
		Title:     req.Title,
		Intro:     req.Intro,
		VideoID:   req.VideoID,
		Summary:   req.Summary,
		Resources: req.Resources,
		Downloads: req.Downloads,
	}
	if err := h.lessons.Save(c.UserContext(), &lesson); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "lesson saved"})
}

type addUserRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=7,max=32"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name"`
	TelegramID  string `json:"telegram_id" validate:"omitempty,numeric"`
	Duration    int    `json:"duration" validate:"omitempty,min=1,max=3650"`
}

// AddUser whitelists a user by phone number with a premium subscription
// before they have contacted the bot.
func (h *AdminHandler) AddUser(c *fiber.Ctx) error {
	var req addUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	days := req.Duration
	if days == 0 {
		days = 30
	}

	user, err := h.identity.AddWhitelisted(c.UserContext(), services.WhitelistEntry{
		PhoneNumber: req.PhoneNumber,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		TelegramID:  req.TelegramID,
		Days:        days,
	})
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			return fiber.NewError(fiber.StatusConflict, "user already exists")
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "user added",
		"data":    user,
	})
}

// DeleteUser removes a user and everything recorded for them.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.identity.DeleteUser(c.UserContext(), uint(userID)); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "user deleted"})
}

// ListLeads returns captured leads with pagination.
func (h *AdminHandler) ListLeads(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	leads, total, err := h.leads.List(c.UserContext(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       leads,
		"pagination": pg.Meta(total),
	})
}
