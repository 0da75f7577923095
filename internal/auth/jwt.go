// Package auth mints and validates the bearer tokens participants use to
// authenticate agent calls. The wire contract only requires token to be an
// opaque string the client echoes back unchanged — this signs it as a JWT
// (HS256) rather than the random hex string a simpler implementation might
// use, so the Store can still look a participant up by the full token
// string regardless of encoding.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type Service struct {
	secret []byte
}

// ParticipantClaims identifies which participant a bearer token was issued
// to. Participants are never destroyed, so these tokens carry no
// expiration — a fresh queue entry or a check_turn call years later must
// still authenticate.
type ParticipantClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// IssueToken mints a bearer token for a freshly registered participant.
func (s *Service) IssueToken(name string) (string, error) {
	claims := ParticipantClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken validates a bearer token and returns the claims it carries.
// Callers still cross-check the resulting name and the Store's record for
// that token before trusting a request.
func (s *Service) ParseToken(tokenString string) (*ParticipantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ParticipantClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ParticipantClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
