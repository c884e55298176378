package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/sellerspro/internal/services"
)

const pollTimeout = 50 * time.Second

// Messenger is the part of the Telegram API the bot needs.
type Messenger interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]services.TelegramUpdate, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *services.ReplyKeyboard) error
}

// Identities resolves Telegram users to internal users.
type Identities interface {
	ResolveOrCreate(ctx context.Context, externalID string, profile services.Profile) (uint, error)
	Exists(ctx context.Context, externalID string) (bool, error)
	ClaimWhitelisted(ctx context.Context, phone, externalID string) (bool, error)
}

// Issuer hands out one-time passcodes.
type Issuer interface {
	Issue(ctx context.Context, externalID string) (string, time.Time, error)
}

// Bot delivers sign-in codes over Telegram.
type Bot struct {
	tg       Messenger
	identity Identities
	otp      Issuer
	log      *logrus.Logger
	backoff  time.Duration
}

// New constructs a Bot.
func New(tg Messenger, identity Identities, otp Issuer, log *logrus.Logger) *Bot {
	return &Bot{tg: tg, identity: identity, otp: otp, log: log, backoff: 3 * time.Second}
}

var contactKeyboard = &services.ReplyKeyboard{
	Keyboard:        [][]services.KeyboardButton{{{Text: "📱 Share phone number", RequestContact: true}}},
	ResizeKeyboard:  true,
	OneTimeKeyboard: true,
}

// Run long-polls Telegram until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	b.log.Info("telegram bot started")

	for {
		updates, err := b.tg.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.WithError(err).Warn("getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.backoff):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if err := b.Handle(ctx, update); err != nil {
				b.log.WithError(err).WithField("update_id", update.UpdateID).Error("update handling failed")
			}
		}
	}
}

// Handle reacts to a single update.
func (b *Bot) Handle(ctx context.Context, update services.TelegramUpdate) error {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	if msg.Contact != nil {
		return b.handleContact(ctx, msg)
	}

	command, _, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	command, _, _ = strings.Cut(command, "@")

	switch command {
	case "/start":
		return b.tg.SendMessage(ctx, msg.Chat.ID,
			"🎓 <b>Sellers Pro</b>\n\nWelcome! Share your phone number to get a sign-in code 👇", contactKeyboard)
	case "/otp":
		return b.handleOTP(ctx, msg)
	case "/help":
		return b.tg.SendMessage(ctx, msg.Chat.ID,
			"📚 <b>Help</b>\n\n/start - start the bot\n/otp - get a new sign-in code\n/help - show this message", nil)
	}
	return nil
}

func (b *Bot) handleContact(ctx context.Context, msg *services.TelegramMessage) error {
	if msg.Contact.UserID != msg.From.ID {
		return b.tg.SendMessage(ctx, msg.Chat.ID, "❌ Please share your own phone number.", nil)
	}

	externalID := strconv.FormatInt(msg.From.ID, 10)
	phone := services.NormalizePhone(msg.Contact.PhoneNumber)

	claimed, err := b.identity.ClaimWhitelisted(ctx, phone, externalID)
	if err != nil {
		return b.replyFailure(ctx, msg.Chat.ID, fmt.Errorf("claim whitelisted user: %w", err))
	}
	if claimed {
		b.log.WithField("telegram_id", externalID).Info("whitelisted user linked")
	}

	_, err = b.identity.ResolveOrCreate(ctx, externalID, services.Profile{
		FirstName:   msg.From.FirstName,
		LastName:    msg.From.LastName,
		Username:    msg.From.Username,
		PhoneNumber: phone,
	})
	if err != nil {
		return b.replyFailure(ctx, msg.Chat.ID, fmt.Errorf("register user: %w", err))
	}

	return b.sendCode(ctx, msg.Chat.ID, externalID, "✅ <b>Sign-in code</b>")
}

func (b *Bot) handleOTP(ctx context.Context, msg *services.TelegramMessage) error {
	externalID := strconv.FormatInt(msg.From.ID, 10)

	exists, err := b.identity.Exists(ctx, externalID)
	if err != nil {
		return b.replyFailure(ctx, msg.Chat.ID, err)
	}
	if !exists {
		return b.tg.SendMessage(ctx, msg.Chat.ID, "❌ Send /start and share your phone number first.", nil)
	}

	return b.sendCode(ctx, msg.Chat.ID, externalID, "✅ <b>New sign-in code</b>")
}

func (b *Bot) sendCode(ctx context.Context, chatID int64, externalID, title string) error {
	code, expiresAt, err := b.otp.Issue(ctx, externalID)
	if err != nil {
		return b.replyFailure(ctx, chatID, fmt.Errorf("issue code: %w", err))
	}

	text := fmt.Sprintf("%s\n\nYour code: <code>%s</code>\n\n⚠️ Valid for %s.\n🔒 Never share it with anyone.",
		title, code, humanDuration(time.Until(expiresAt)))

	if err := b.tg.SendMessage(ctx, chatID, text, nil); err != nil {
		return err
	}

	b.log.WithField("telegram_id", externalID).Info("sign-in code sent")
	return nil
}

func (b *Bot) replyFailure(ctx context.Context, chatID int64, cause error) error {
	sendErr := b.tg.SendMessage(ctx, chatID, "⚠️ Something went wrong, please try again later.", nil)
	return errors.Join(cause, sendErr)
}

func humanDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	minutes := int(d.Round(time.Minute).Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
