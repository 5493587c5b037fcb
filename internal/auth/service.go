package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Admin     config.AdminConfig
	JWTConfig config.JWTConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	email        string
	passwordHash string
	jwtCfg       config.JWTConfig
	logg         *logger.Logger
	now          func() time.Time
}

// NewService constructs the admin login service. Without a configured admin
// account every login attempt is rejected.
func NewService(params ServiceParams) (Service, error) {
	if strings.TrimSpace(params.JWTConfig.Secret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "jwt secret is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		email:        normalizeEmail(params.Admin.Email),
		passwordHash: strings.TrimSpace(params.Admin.PasswordHash),
		jwtCfg:       params.JWTConfig,
		logg:         params.Logger,
		now:          now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}
	if s.email == "" || s.passwordHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	emailMatches := subtle.ConstantTimeCompare([]byte(email), []byte(s.email)) == 1
	passwordMatches, err := security.VerifyPassword(req.Password, s.passwordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify admin password")
	}
	if !emailMatches || !passwordMatches {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "reason", "credential_mismatch"), "admin login rejected")
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	token, expiresAt, err := pkgAuth.MintAdminToken(s.jwtCfg, s.now(), pkgAuth.AdminTokenPayload{Email: email})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithAdmin(ctx, email), "admin login succeeded")
	}
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Email:       email,
	}, nil
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
