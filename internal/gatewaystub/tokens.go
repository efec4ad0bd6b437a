package gatewaystub

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sangathan/sangathan/internal/identity"
)

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (t tokenIssuer) issue(user identity.User) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"phone": user.Phone,
		"iat":   now.Unix(),
		"exp":   now.Add(t.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (t tokenIssuer) parse(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
