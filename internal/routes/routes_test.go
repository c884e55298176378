package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/sellerspro/internal/config"
	"github.com/example/sellerspro/internal/database"
	"github.com/example/sellerspro/internal/logger"
	"github.com/example/sellerspro/internal/models"
	"github.com/example/sellerspro/internal/services"
	"github.com/example/sellerspro/internal/utils"
)

const adminPassword = "correct horse"

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	dbPath   string
	cfg      *config.Config
	identity *services.IdentityService
	otp      *services.OTPService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLog(t, logger.Discard())
}

func newTestEnvWithLog(t *testing.T, log *logrus.Logger, options ...func(*config.Config)) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "api.db")
	db, err := database.OpenSQLite(dbPath, log)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	hash, err := utils.HashPassword(adminPassword)
	require.NoError(t, err)

	cfg := &config.Config{
		CORSOrigins:       "*",
		OTPTTL:            time.Minute,
		OTPLength:         6,
		SessionTTL:        30 * 24 * time.Hour,
		AdminPasswordHash: hash,
		AdminJWTSecret:    "admin-secret",
		AdminTokenTTL:     time.Hour,
	}
	for _, option := range options {
		option(cfg)
	}

	app := NewApp(cfg, log)
	Register(app, db, cfg, log, prometheus.NewRegistry())

	return &testEnv{
		app:      app,
		db:       db,
		dbPath:   dbPath,
		cfg:      cfg,
		identity: services.NewIdentityService(db, nil),
		otp:      services.NewOTPService(db, cfg.OTPTTL, cfg.OTPLength, nil),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	return resp.StatusCode, payload
}

// signIn registers externalID, issues a code and exchanges it for a token.
func (e *testEnv) signIn(t *testing.T, externalID string) (uint, string) {
	t.Helper()
	ctx := context.Background()

	userID, err := e.identity.ResolveOrCreate(ctx, externalID, services.Profile{FirstName: "Dilnoza", LastName: "Rashidova"})
	require.NoError(t, err)
	code, _, err := e.otp.Issue(ctx, externalID)
	require.NoError(t, err)

	status, body := e.do(t, fiber.MethodPost, "/api/auth/verify-otp", fiber.Map{"otp": code}, "")
	require.Equal(t, fiber.StatusOK, status, body)

	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return userID, token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	status, body := e.do(t, fiber.MethodPost, "/api/admin/login", fiber.Map{"password": adminPassword}, "")
	require.Equal(t, fiber.StatusOK, status, body)
	return body["token"].(string)
}

func TestVerifyOTP_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID, err := env.identity.ResolveOrCreate(ctx, "777", services.Profile{FirstName: "Dilnoza", LastName: "Rashidova"})
	require.NoError(t, err)
	code, _, err := env.otp.Issue(ctx, "777")
	require.NoError(t, err)

	status, body := env.do(t, fiber.MethodPost, "/api/auth/verify-otp", fiber.Map{"otp": code}, "")
	require.Equal(t, fiber.StatusOK, status)

	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, body["token"])

	user := body["user"].(map[string]interface{})
	assert.EqualValues(t, userID, user["id"])
	assert.Equal(t, "Dilnoza", user["firstName"])
	assert.Equal(t, "Rashidova", user["lastName"])
	sub := user["subscription"].(map[string]interface{})
	assert.Equal(t, models.SubscriptionBasic, sub["type"])
	assert.Equal(t, false, sub["active"])
	assert.Equal(t, []interface{}{}, user["progress"])

	status, body = env.do(t, fiber.MethodPost, "/api/auth/verify-otp", fiber.Map{"otp": code}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestVerifyOTP_Rejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{name: "unknown code", body: fiber.Map{"otp": "123456"}, status: fiber.StatusUnauthorized},
		{name: "too short", body: fiber.Map{"otp": "12345"}, status: fiber.StatusBadRequest},
		{name: "not numeric", body: fiber.Map{"otp": "12a456"}, status: fiber.StatusBadRequest},
		{name: "missing", body: fiber.Map{}, status: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, fiber.MethodPost, "/api/auth/verify-otp", tt.body, "")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestVerifyOTP_ExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.identity.ResolveOrCreate(ctx, "555", services.Profile{FirstName: "E"})
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&models.OTP{
		TelegramID: "555",
		Code:       "482913",
		ExpiresAt:  time.Now().UTC().Add(-time.Second),
	}).Error)

	status, body := env.do(t, fiber.MethodPost, "/api/auth/verify-otp", fiber.Map{"otp": "482913"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid or expired code", body["message"])
}

func TestCompleteLesson(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.signIn(t, "100")

	status, body := env.do(t, fiber.MethodPost, "/api/lessons/complete/3", nil, token)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])

	status, _ = env.do(t, fiber.MethodPost, "/api/lessons/complete/3", nil, token)
	require.Equal(t, fiber.StatusOK, status)

	var count int64
	require.NoError(t, env.db.Model(&models.LessonProgress{}).
		Where("user_id = ? AND lesson_id = ?", userID, 3).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	status, body = env.do(t, fiber.MethodGet, "/api/lessons/progress", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	progress := body["progress"].([]interface{})
	require.Len(t, progress, 1)
	record := progress[0].(map[string]interface{})
	assert.EqualValues(t, 3, record["lessonId"])
	assert.Equal(t, true, record["completed"])
}

func TestCompleteLesson_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := env.signIn(t, "200")

	require.NoError(t, env.db.Create(&models.Session{
		Token:     "expired-token",
		UserID:    userID,
		CreatedAt: time.Now().UTC().Add(-31 * 24 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}).Error)

	for _, token := range []string{"", "bogus", "expired-token"} {
		status, body := env.do(t, fiber.MethodPost, "/api/lessons/complete/1", nil, token)
		assert.Equal(t, fiber.StatusUnauthorized, status, token)
		assert.Equal(t, false, body["success"])
	}

	req := httptest.NewRequest(fiber.MethodPost, "/api/lessons/complete/1", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Token abc")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var count int64
	require.NoError(t, env.db.Model(&models.LessonProgress{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCompleteLesson_InvalidLessonID(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signIn(t, "300")

	status, _ := env.do(t, fiber.MethodPost, "/api/lessons/complete/abc", nil, token)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestVerifyToken(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.signIn(t, "400")

	status, body := env.do(t, fiber.MethodPost, "/api/auth/verify-token", nil, token)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["hasAccess"])
	assert.Equal(t, "Dilnoza", body["user"].(map[string]interface{})["firstName"])

	status, _ = env.do(t, fiber.MethodPost, "/api/auth/verify-token", fiber.Map{"token": token}, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = env.do(t, fiber.MethodPost, "/api/auth/verify-token", fiber.Map{"token": "nope"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAdminFlow(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := env.signIn(t, "500")

	status, _ := env.do(t, fiber.MethodPost, "/api/admin/login", fiber.Map{"password": "wrong"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = env.do(t, fiber.MethodGet, "/api/admin/stats", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	admin := env.adminToken(t)

	status, body := env.do(t, fiber.MethodPost, "/api/admin/subscription/"+uintString(userID),
		fiber.Map{"subscription_type": "premium", "days": 30, "active": true}, admin)
	require.Equal(t, fiber.StatusOK, status, body)

	status, _ = env.do(t, fiber.MethodPost, "/api/admin/subscription/9999", fiber.Map{}, admin)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = env.do(t, fiber.MethodPost, "/api/admin/subscription/"+uintString(userID),
		fiber.Map{"subscription_type": "gold"}, admin)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = env.do(t, fiber.MethodGet, "/api/admin/stats", nil, admin)
	require.Equal(t, fiber.StatusOK, status)
	stats := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["total_users"])
	assert.EqualValues(t, 1, stats["active_subscriptions"])
	assert.EqualValues(t, 1, stats["logins_today"])
	assert.EqualValues(t, 0, stats["completed_lessons"])

	status, body = env.do(t, fiber.MethodGet, "/api/admin/users?limit=10", nil, admin)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestLessonCatalog(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)

	status, _ := env.do(t, fiber.MethodPost, "/api/admin/lesson", fiber.Map{"title": "No id"}, admin)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := env.do(t, fiber.MethodPost, "/api/admin/lesson", fiber.Map{
		"id":        1,
		"title":     "Uzum Market basics",
		"video_id":  "vid-1",
		"resources": []fiber.Map{{"name": "Checklist", "url": "https://example.com/c.pdf"}},
	}, admin)
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = env.do(t, fiber.MethodGet, "/api/lessons", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = env.do(t, fiber.MethodGet, "/api/lessons/1", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	lesson := body["data"].(map[string]interface{})
	assert.Equal(t, "Uzum Market basics", lesson["title"])
	assert.Len(t, lesson["resources"], 1)

	status, _ = env.do(t, fiber.MethodGet, "/api/lessons/2", nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "600")

	status, body := env.do(t, fiber.MethodGet, "/health", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `sellerspro_otp_verifications_total{result="success"} 1`)
	assert.Contains(t, string(raw), "sellerspro_sessions_created_total 1")
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func TestStorageFailure_IsGeneric500(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.signIn(t, "700")

	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	status, body := env.do(t, fiber.MethodPost, "/api/auth/verify-otp", fiber.Map{"otp": "123456"}, "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, fiber.Map{"success": false, "message": "internal server error"}, fiber.Map(body))

	status, body = env.do(t, fiber.MethodPost, "/api/lessons/complete/1", nil, token)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, fiber.Map{"success": false, "message": "internal server error"}, fiber.Map(body))

	reopened, err := database.OpenSQLite(env.dbPath, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := reopened.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var progress, sessions int64
	require.NoError(t, reopened.Model(&models.LessonProgress{}).Where("user_id = ?", userID).Count(&progress).Error)
	require.NoError(t, reopened.Model(&models.Session{}).Count(&sessions).Error)
	assert.Zero(t, progress)
	assert.EqualValues(t, 1, sessions)
}

func TestLogsNeverContainCodesOrTokens(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	env := newTestEnvWithLog(t, log)

	status, _ := env.do(t, fiber.MethodPost, "/api/auth/verify-otp", fiber.Map{"otp": "987654"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = env.do(t, fiber.MethodPost, "/api/lessons/complete/1", nil, "SECRET-BEARER-XYZ")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	_, err := env.identity.ResolveOrCreate(context.Background(), "800", services.Profile{FirstName: "L"})
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&models.OTP{
		TelegramID: "800",
		Code:       "314159",
		ExpiresAt:  time.Now().UTC().Add(time.Minute),
	}).Error)
	status, body := env.do(t, fiber.MethodPost, "/api/auth/verify-otp", fiber.Map{"otp": "314159"}, "")
	require.Equal(t, fiber.StatusOK, status)
	token := body["token"].(string)

	out := buf.String()
	assert.Contains(t, out, "user signed in")
	assert.NotContains(t, out, "987654")
	assert.NotContains(t, out, "SECRET-BEARER-XYZ")
	assert.NotContains(t, out, `"314159"`)
	assert.NotContains(t, out, token)
}

type telegramRecorder struct {
	mu       sync.Mutex
	messages []map[string]interface{}
	status   int
}

func newTelegramRecorder(t *testing.T, status int) (*telegramRecorder, *httptest.Server) {
	t.Helper()
	rec := &telegramRecorder{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		rec.mu.Lock()
		rec.messages = append(rec.messages, msg)
		rec.mu.Unlock()

		w.WriteHeader(rec.status)
		if rec.status == http.StatusOK {
			_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":false,"description":"unavailable"}`))
	}))
	t.Cleanup(srv.Close)
	return rec, srv
}

func withTelegram(srv *httptest.Server) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.TelegramToken = "TOKEN"
		cfg.TelegramAPI = srv.URL
		cfg.AdminChatID = "-100777"
	}
}

func TestSubmitLead(t *testing.T) {
	rec, srv := newTelegramRecorder(t, http.StatusOK)
	env := newTestEnvWithLog(t, logger.Discard(), withTelegram(srv))

	status, body := env.do(t, fiber.MethodPost, "/api/leads", fiber.Map{"name": "B", "phone": "+998901234567"}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	status, _ = env.do(t, fiber.MethodPost, "/api/leads", fiber.Map{"name": "Bobur"}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = env.do(t, fiber.MethodPost, "/api/leads", fiber.Map{"name": "Bobur <b>", "phone": "+998 90 123 45 67"}, "")
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["success"])

	rec.mu.Lock()
	require.Len(t, rec.messages, 1)
	msg := rec.messages[0]
	rec.mu.Unlock()
	assert.Equal(t, "-100777", msg["chat_id"])
	assert.Contains(t, msg["text"], "Bobur &lt;b&gt;")
	assert.Contains(t, msg["text"], "+998901234567")

	status, body = env.do(t, fiber.MethodGet, "/api/admin/leads", nil, env.adminToken(t))
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, body["data"], 1)
	lead := body["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, models.LeadSourceWebsite, lead["source"])
}

func TestSubmitLead_NotificationFailureKeepsLead(t *testing.T) {
	_, srv := newTelegramRecorder(t, http.StatusInternalServerError)
	env := newTestEnvWithLog(t, logger.Discard(), withTelegram(srv))

	status, body := env.do(t, fiber.MethodPost, "/api/leads", fiber.Map{"name": "Nodira", "phone": "+998901112233"}, "")
	require.Equal(t, fiber.StatusOK, status, body)

	var count int64
	require.NoError(t, env.db.Model(&models.Lead{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAmoCRMWebhook(t *testing.T) {
	env := newTestEnvWithLog(t, logger.Discard(), func(cfg *config.Config) {
		cfg.AmoCRMWebhookToken = "hook"
	})

	form := url.Values{
		"leads[add][0][id]":                                 {"9001"},
		"leads[add][0][name]":                               {"CRM lead"},
		"leads[add][0][custom_fields][0][code]":             {"PHONE"},
		"leads[add][0][custom_fields][0][values][0][value]": {"+998935550000"},
	}
	post := func(path string) (int, map[string]interface{}) {
		req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		return resp.StatusCode, payload
	}

	status, _ := post("/api/amocrm/webhook")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := post("/api/amocrm/webhook?token=hook")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["created"])

	status, body = post("/api/amocrm/webhook?token=hook")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["created"])

	var lead models.Lead
	require.NoError(t, env.db.Where("external_id = ?", "9001").First(&lead).Error)
	assert.Equal(t, models.LeadSourceAmoCRM, lead.Source)
	assert.Equal(t, "+998935550000", lead.Phone)
}

func TestAdminWhitelistAndDelete(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)

	status, _ := env.do(t, fiber.MethodPost, "/api/admin/add-user", fiber.Map{"phone_number": "+998901234567"}, admin)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = env.do(t, fiber.MethodPost, "/api/admin/add-user",
		fiber.Map{"phone_number": "+998901234567", "first_name": "Zarina"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := env.do(t, fiber.MethodPost, "/api/admin/add-user",
		fiber.Map{"phone_number": "+998901234567", "first_name": "Zarina", "duration": 60}, admin)
	require.Equal(t, fiber.StatusCreated, status, body)
	user := body["data"].(map[string]interface{})
	assert.Equal(t, "+998901234567", user["phone_number"])

	status, _ = env.do(t, fiber.MethodPost, "/api/admin/add-user",
		fiber.Map{"phone_number": "998901234567", "first_name": "Twice"}, admin)
	assert.Equal(t, fiber.StatusConflict, status)

	userID, token := env.signIn(t, "4242")
	status, body = env.do(t, fiber.MethodDelete, "/api/admin/user/"+uintString(userID), nil, admin)
	require.Equal(t, fiber.StatusOK, status, body)

	status, _ = env.do(t, fiber.MethodGet, "/api/lessons/progress", nil, token)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = env.do(t, fiber.MethodDelete, "/api/admin/user/"+uintString(userID), nil, admin)
	assert.Equal(t, fiber.StatusNotFound, status)
}
