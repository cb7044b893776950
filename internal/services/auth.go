package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/ctxutil"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

// AuthService verifies bearer tokens minted by the external identity provider.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	SignToken(userID string, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
	}
}

// SetContextFromToken validates an HS256 token and attaches its subject as the
// caller's user id.
func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, apierr.Unauthorized("missing bearer token")
	}
	if len(s.jwtSecretKey) == 0 {
		return ctx, apierr.Unauthorized("token verification is not configured")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ctx, apierr.Unauthorized("token expired")
		}
		s.log.Debug("Rejected bearer token", "error", err)
		return ctx, apierr.Unauthorized("invalid token")
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return ctx, apierr.Unauthorized("token has no subject")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{TokenString: tokenString, UserID: sub}), nil
}

// SignToken mints a token the middleware accepts. Used by local tooling and tests.
func (s *authService) SignToken(userID string, ttl time.Duration) (string, error) {
	if len(s.jwtSecretKey) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecretKey)
}
