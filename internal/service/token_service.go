package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/gradestore/internal/models"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
)

// TokenConfig defines how TA access tokens are signed.
type TokenConfig struct {
	Secret   string
	Expiry   time.Duration
	Issuer   string
	Audience []string
}

// TokenService issues and validates TA access tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(config TokenConfig) *TokenService {
	if config.Expiry <= 0 {
		config.Expiry = 12 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "gradestore"
	}
	return &TokenService{config: config, now: time.Now}
}

// Issue signs a token for the TA.
func (s *TokenService) Issue(ta *models.TA) (*models.TokenResponse, error) {
	if ta == nil || ta.ID == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ta must be persisted before issuing a token")
	}
	if s.config.Secret == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "token secret not configured")
	}
	issuedAt := s.now().UTC()
	claims := &models.TAClaims{
		TAID:  ta.ID,
		Login: ta.Login,
		Admin: ta.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   strconv.FormatInt(ta.ID, 10),
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return &models.TokenResponse{AccessToken: signed, ExpiresIn: int64(s.config.Expiry.Seconds())}, nil
}

// Validate parses a token and returns its claims.
func (s *TokenService) Validate(tokenString string) (*models.TAClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TAClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.TAClaims)
	if !ok || !token.Valid || claims.TAID == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
