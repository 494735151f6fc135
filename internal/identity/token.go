package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"anything-world/internal/model"
)

const sessionTokenType = "session"

var ErrInvalidToken = errors.New("invalid session token")

// TokenCodec signs and verifies session tokens with HS256.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

func (c *TokenCodec) Issue(id model.Identity) (string, model.SessionClaims, error) {
	now := c.now().UTC().Truncate(time.Second)
	claims := model.SessionClaims{
		UserID:    id.ID,
		Email:     id.Email,
		Name:      id.Name,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   claims.UserID,
		"email": claims.Email,
		"name":  claims.Name,
		"typ":   sessionTokenType,
		"jti":   claims.TokenID,
		"iat":   claims.IssuedAt.Unix(),
		"exp":   claims.ExpiresAt.Unix(),
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", model.SessionClaims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

func (c *TokenCodec) Parse(tokenString string) (model.SessionClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return model.SessionClaims{}, ErrInvalidToken
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return model.SessionClaims{}, ErrInvalidToken
	}

	if typ, _ := claimsMap["typ"].(string); typ != sessionTokenType {
		return model.SessionClaims{}, ErrInvalidToken
	}

	claims := model.SessionClaims{}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.Name, _ = claimsMap["name"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" {
		return model.SessionClaims{}, ErrInvalidToken
	}

	if iat, err := claimsMap.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := claimsMap.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}
