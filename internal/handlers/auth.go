package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/sellerspro/internal/metrics"
	"github.com/example/sellerspro/internal/middleware"
	"github.com/example/sellerspro/internal/models"
	"github.com/example/sellerspro/internal/services"
)

const messageInvalidCode = "invalid or expired code"

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	otp      *services.OTPService
	signIn   *services.SignInService
	authz    *services.Authorizer
	identity *services.IdentityService
	progress *services.ProgressService
	validate *validator.Validate
	metrics  *metrics.Metrics
	log      *logrus.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(
	otp *services.OTPService,
	signIn *services.SignInService,
	authz *services.Authorizer,
	identity *services.IdentityService,
	progress *services.ProgressService,
	validate *validator.Validate,
	m *metrics.Metrics,
	log *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		otp:      otp,
		signIn:   signIn,
		authz:    authz,
		identity: identity,
		progress: progress,
		validate: validate,
		metrics:  m,
		log:      log,
	}
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
}

// VerifyOTP exchanges a passcode delivered by the bot for a session token.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	rule := fmt.Sprintf("required,numeric,len=%d", h.otp.Length())
	if err := h.validate.Var(req.OTP, rule); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("otp must be %d digits", h.otp.Length()))
	}

	ctx := c.UserContext()
	signIn, err := h.signIn.SignIn(ctx, req.OTP, c.IP())
	if err != nil {
		if errors.Is(err, services.ErrInvalidOrExpiredCode) {
			h.metrics.ObserveVerification(metrics.ResultRejected)
			return fiber.NewError(fiber.StatusUnauthorized, messageInvalidCode)
		}
		h.metrics.ObserveVerification(metrics.ResultError)
		return err
	}
	h.metrics.ObserveVerification(metrics.ResultSuccess)
	h.metrics.IncSessionsCreated()

	summary := signIn.User
	progress, err := h.progress.Progress(ctx, summary.ID)
	if err != nil {
		return err
	}

	h.log.WithFields(logrus.Fields{"user_id": summary.ID, "expires_at": signIn.ExpiresAt}).Info("user signed in")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "signed in",
		"token":   signIn.Token,
		"user":    userPayload(summary.ID, summary.FirstName, summary.LastName, summary.Subscription, progress),
	})
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyToken reports whether a session token is still valid along with the
// user's access state. The token may come from the Authorization header or
// the request body.
func (h *AuthHandler) VerifyToken(c *fiber.Ctx) error {
	token, err := services.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		var req verifyTokenRequest
		if c.BodyParser(&req) == nil {
			token = req.Token
		}
	}

	ctx := c.UserContext()
	userID, err := h.authz.Authorize(ctx, token)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			h.metrics.ObserveAuthorization(metrics.ResultRejected)
			return fiber.NewError(fiber.StatusUnauthorized, middleware.MessageUnauthorized)
		}
		h.metrics.ObserveAuthorization(metrics.ResultError)
		return err
	}
	h.metrics.ObserveAuthorization(metrics.ResultSuccess)

	user, err := h.identity.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	hasAccess, err := h.identity.CheckAccess(ctx, user)
	if err != nil {
		return err
	}

	progress, err := h.progress.Progress(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"hasAccess": hasAccess,
		"user":      userPayload(user.ID, user.FirstName, user.LastName, user.Subscription, progress),
	})
}

func userPayload(id uint, firstName, lastName string, sub models.Subscription, progress []models.LessonProgress) fiber.Map {
	return fiber.Map{
		"id":        id,
		"firstName": firstName,
		"lastName":  lastName,
		"subscription": fiber.Map{
			"type":      sub.Type,
			"active":    sub.Active,
			"startDate": sub.StartDate,
			"endDate":   sub.EndDate,
		},
		"progress": progress,
	}
}
