package services

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// SignIn is the outcome of exchanging a passcode for a session.
type SignIn struct {
	User      UserSummary
	Token     string
	ExpiresAt time.Time
}

// SignInService exchanges passcodes for sessions. The code is consumed and
// the session minted in one transaction: either both happen or neither does.
type SignInService struct {
	otp      *OTPService
	sessions *SessionService
}

// NewSignInService constructs a SignInService.
func NewSignInService(otp *OTPService, sessions *SessionService) *SignInService {
	return &SignInService{otp: otp, sessions: sessions}
}

// SignIn verifies code and opens a session for its owner, recording ip in
// the login history.
func (s *SignInService) SignIn(ctx context.Context, code, ip string) (*SignIn, error) {
	var result SignIn

	_, err := s.otp.VerifyThen(ctx, code, func(tx *gorm.DB, user *UserSummary) error {
		token, expiresAt, err := s.sessions.CreateTx(tx, user.ID, ip)
		if err != nil {
			return err
		}
		result = SignIn{User: *user, Token: token, ExpiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}
