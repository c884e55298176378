package handlers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/sellerspro/internal/services"
)

// AdminNotifier delivers messages to the admin chat.
type AdminNotifier interface {
	SendToAdmin(ctx context.Context, text string) error
}

// LeadHandler captures leads from the landing page and amoCRM.
type LeadHandler struct {
	leads        *services.LeadService
	notifier     AdminNotifier
	validate     *validator.Validate
	log          *logrus.Logger
	webhookToken string
}

// NewLeadHandler constructs a LeadHandler. A non-empty webhookToken must be
// presented as ?token= on amoCRM webhook calls.
func NewLeadHandler(
	leads *services.LeadService,
	notifier AdminNotifier,
	validate *validator.Validate,
	log *logrus.Logger,
	webhookToken string,
) *LeadHandler {
	return &LeadHandler{leads: leads, notifier: notifier, validate: validate, log: log, webhookToken: webhookToken}
}

type leadRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Phone string `json:"phone" validate:"required,min=7,max=32"`
}

// SubmitLead stores a landing page lead and notifies the admin chat. A failed
// notification is logged; the lead is already saved.
func (h *LeadHandler) SubmitLead(c *fiber.Ctx) error {
	var req leadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}

	ctx := c.UserContext()
	lead, err := h.leads.Submit(ctx, req.Name, req.Phone)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("🔔 <b>New lead</b>\n\n👤 <b>Name:</b> %s\n📱 <b>Phone:</b> %s\n🕐 <b>Time:</b> %s\n\n💼 <i>From the website</i>",
		html.EscapeString(lead.Name), html.EscapeString(lead.Phone), lead.CreatedAt.Format(time.RFC1123))
	if err := h.notifier.SendToAdmin(ctx, text); err != nil {
		h.log.WithError(err).WithField("lead_id", lead.ID).Warn("lead notification failed")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Thank you! We will contact you shortly.",
	})
}

// AmoCRMWebhook stores leads announced by amoCRM. It answers 200 even when
// processing fails so amoCRM does not keep retrying.
func (h *LeadHandler) AmoCRMWebhook(c *fiber.Ctx) error {
	if h.webhookToken != "" &&
		subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(h.webhookToken)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid webhook token")
	}

	form := url.Values{}
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		form.Add(string(key), string(value))
	})

	leads := services.ParseAmoCRMWebhook(form)
	created, err := h.leads.ImportAmoCRM(c.UserContext(), leads)
	if err != nil {
		h.log.WithError(err).WithField("received", len(leads)).Error("amocrm webhook processing failed")
		return c.JSON(fiber.Map{"success": false, "message": "webhook received"})
	}

	h.log.WithFields(logrus.Fields{"received": len(leads), "created": created}).Info("amocrm webhook processed")
	return c.JSON(fiber.Map{"success": true, "message": "webhook received", "created": created})
}
