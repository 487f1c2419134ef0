package services

import (
	"time"

	"pitstop/config"
	"pitstop/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenLifetime = 24 * time.Hour

// TokenService issues and validates the HS256 session tokens carried on the
// Authorization header and the websocket auth handshake.
type TokenService struct {
	secret []byte
	log    logger.Logger
}

type SessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func NewTokenService(config config.Config) *TokenService {
	return &TokenService{
		secret: []byte(config.JWTSecret),
		log:    logger.New("TokenService"),
	}
}

func (s *TokenService) Generate(userID uuid.UUID) (string, error) {
	log := s.log.Function("Generate")

	now := time.Now()
	claims := SessionClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", log.Err("failed to sign session token", err)
	}

	return signed, nil
}

// Validate parses the token and returns the user id it was issued for.
func (s *TokenService) Validate(tokenString string) (uuid.UUID, error) {
	log := s.log.Function("Validate")

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.secret, nil
		},
	)
	if err != nil {
		return uuid.Nil, err
	}

	if !token.Valid {
		return uuid.Nil, log.ErrMsg("invalid session token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, log.Err("invalid user id in session token", err)
	}

	return userID, nil
}
