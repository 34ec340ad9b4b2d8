package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/neosign/identity/internal/domain"
)

// defaultExpiryMinutes is used when the configured expiry is missing or not
// numeric. Token issuance never fails on a bad expiry setting.
const defaultExpiryMinutes = 200

// Claims is the claim set carried by an access token.
type Claims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 access tokens.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	expiry   time.Duration
}

// NewTokenIssuer builds an issuer from configuration. expiryMinutes is kept a
// string because the deployment config treats it as free-form; anything that
// does not parse as a positive integer falls back to 200 minutes.
func NewTokenIssuer(secret, issuer, audience, expiryMinutes string) *TokenIssuer {
	minutes, err := strconv.Atoi(expiryMinutes)
	if err != nil || minutes <= 0 {
		minutes = defaultExpiryMinutes
	}
	return &TokenIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		expiry:   time.Duration(minutes) * time.Minute,
	}
}

// ClaimsFor maps a user to the claim set for a token issued now. Pure: no
// clock access beyond the passed instant, no stored state.
func (i *TokenIssuer) ClaimsFor(u *domain.User, now time.Time) *Claims {
	return &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Roles:  u.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.New().String(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}
}

// Issue creates a signed access token for the user. A missing signing secret
// returns an error rather than panicking; the login path reports it as a
// failed operation and the process stays up.
func (i *TokenIssuer) Issue(u *domain.User) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("issue token: signing secret not configured")
	}

	claims := i.ClaimsFor(u, time.Now().UTC())
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Validate parses a token string and returns its claims if the signature and
// expiry check out.
func (i *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	return claims, nil
}
