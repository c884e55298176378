package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TelegramService talks to the Telegram Bot API.
type TelegramService struct {
	botToken    string
	baseURL     string
	adminChatID string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService. baseURL is normally
// https://api.telegram.org; adminChatID receives SendToAdmin notifications
// and may be empty.
func NewTelegramService(botToken, baseURL, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		baseURL:     baseURL,
		adminChatID: adminChatID,
		client:      &http.Client{Timeout: 70 * time.Second},
	}
}

// TelegramUser is the sender of a message.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// TelegramChat identifies the conversation a message belongs to.
type TelegramChat struct {
	ID int64 `json:"id"`
}

// TelegramContact is a phone number shared through the contact button.
type TelegramContact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	UserID      int64  `json:"user_id"`
}

// TelegramMessage is the subset of a Bot API message the bot reacts to.
type TelegramMessage struct {
	MessageID int64            `json:"message_id"`
	From      *TelegramUser    `json:"from"`
	Chat      TelegramChat     `json:"chat"`
	Text      string           `json:"text"`
	Contact   *TelegramContact `json:"contact"`
}

// TelegramUpdate is one item returned by getUpdates.
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message"`
}

// ReplyKeyboard is a custom keyboard shown under the input field.
type ReplyKeyboard struct {
	Keyboard        [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard"`
}

// KeyboardButton is a single reply keyboard button.
type KeyboardButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

type telegramMessage struct {
	ChatID      string         `json:"chat_id"`
	Text        string         `json:"text"`
	ParseMode   string         `json:"parse_mode"`
	ReplyMarkup *ReplyKeyboard `json:"reply_markup,omitempty"`
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (s *TelegramService) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.botToken, method)
}

// SendMessage sends an HTML-formatted message to the chat, optionally with a
// reply keyboard.
func (s *TelegramService) SendMessage(ctx context.Context, chatID int64, text string, markup *ReplyKeyboard) error {
	return s.send(ctx, strconv.FormatInt(chatID, 10), text, markup)
}

// SendToAdmin sends a message to the admin chat. It does nothing when no
// admin chat is configured.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		return nil
	}
	return s.send(ctx, s.adminChatID, text, nil)
}

func (s *TelegramService) send(ctx context.Context, chatID, text string, markup *ReplyKeyboard) error {
	msg := telegramMessage{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = s.do(req)
	return err
}

// GetUpdates long-polls for updates after offset, waiting up to timeout.
func (s *TelegramService) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]TelegramUpdate, error) {
	query := url.Values{}
	query.Set("offset", strconv.FormatInt(offset, 10))
	query.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	query.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint("getUpdates")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	result, err := s.do(req)
	if err != nil {
		return nil, err
	}

	var updates []TelegramUpdate
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

func (s *TelegramService) do(req *http.Request) (json.RawMessage, error) {
	if s.botToken == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK || !payload.OK {
		return nil, fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, payload.Description)
	}

	return payload.Result, nil
}
