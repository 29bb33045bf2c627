package jwt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const Issuer = "survey-wizard"

// Service signs and verifies browser session tokens. The token subject is the
// session id that namespaces every locally stored value.
type Service struct {
	logger     *zap.Logger
	secret     string
	expiration time.Duration
	tracer     trace.Tracer
}

func NewService(logger *zap.Logger, secret string, expiration time.Duration) *Service {
	return &Service{
		logger:     logger,
		secret:     secret,
		expiration: expiration,
		tracer:     otel.Tracer("jwt/service"),
	}
}

type claims struct {
	jwt.RegisteredClaims
}

func (s *Service) Expiration() time.Duration {
	return s.expiration
}

func (s *Service) New(ctx context.Context, sessionID uuid.UUID) (string, error) {
	traceCtx, span := s.tracer.Start(ctx, "New")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	jwtID := uuid.New()
	now := time.Now()

	tokenClaims := &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   sessionID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jwtID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims)
	tokenString, err := token.SignedString([]byte(s.secret))
	if err != nil {
		logger.Error("failed to sign session token", zap.Error(err), zap.String("session_id", sessionID.String()))
		span.RecordError(err)
		return "", err
	}

	logger.Debug("Generated session token", zap.String("session_id", sessionID.String()))
	return tokenString, nil
}

// Parse verifies a token and returns its session id. Every failure wraps
// internal.ErrInvalidSessionToken.
func (s *Service) Parse(ctx context.Context, tokenString string) (uuid.UUID, error) {
	traceCtx, span := s.tracer.Start(ctx, "Parse")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))

	secret := func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secret), nil
	}

	tokenClaims := &claims{}
	_, err := jwt.ParseWithClaims(tokenString, tokenClaims, secret,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			logger.Warn("Failed to parse session token due to malformed structure", zap.String("error", err.Error()))
		case errors.Is(err, jwt.ErrSignatureInvalid):
			logger.Warn("Failed to parse session token due to invalid signature", zap.String("error", err.Error()))
		case errors.Is(err, jwt.ErrTokenExpired):
			logger.Info("Session token expired", zap.String("error", err.Error()))
		default:
			logger.Warn("Failed to parse session token", zap.Error(err))
		}
		return uuid.UUID{}, fmt.Errorf("%w: %v", internal.ErrInvalidSessionToken, err)
	}

	sessionID, err := uuid.Parse(tokenClaims.Subject)
	if err != nil {
		logger.Warn("Failed to parse session id from token subject", zap.Error(err))
		return uuid.UUID{}, fmt.Errorf("%w: %v", internal.ErrInvalidSessionToken, err)
	}

	return sessionID, nil
}
