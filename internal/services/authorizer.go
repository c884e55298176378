package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/example/sellerspro/internal/models"
)

// Authorizer resolves bearer tokens on protected calls.
type Authorizer struct {
	db    *gorm.DB
	clock Clock
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(db *gorm.DB, clock Clock) *Authorizer {
	return &Authorizer{db: db, clock: clock}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrUnauthorized
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

// Authorize returns the user owning token. Unknown and expired tokens are
// both ErrUnauthorized.
func (a *Authorizer) Authorize(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrUnauthorized
	}

	var session models.Session
	err := a.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, a.clock.now()).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUnauthorized
	}
	if err != nil {
		return 0, storageErr("find session", err)
	}

	return session.UserID, nil
}

// AuthorizeHeader parses an Authorization header value and authorizes the
// token it carries. Malformed headers fail before any lookup.
func (a *Authorizer) AuthorizeHeader(ctx context.Context, header string) (uint, error) {
	token, err := BearerToken(header)
	if err != nil {
		return 0, err
	}
	return a.Authorize(ctx, token)
}
