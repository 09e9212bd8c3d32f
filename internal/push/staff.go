package push

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrStaffAuthDisabled = errors.New("push: staff auth disabled")

// StaffClaims identify a hotel staff member joining a session room.
type StaffClaims struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	HotelID string `json:"hotel_id"`
	jwt.RegisteredClaims
}

// ParseStaffToken validates an HMAC-signed staff token.
func ParseStaffToken(secret, token string) (*StaffClaims, error) {
	if secret == "" {
		return nil, ErrStaffAuthDisabled
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	claims := &StaffClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("push: staff token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("push: staff token invalid")
	}
	return claims, nil
}

// IssueStaffToken signs a staff token valid for ttl.
func IssueStaffToken(secret string, claims StaffClaims, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrStaffAuthDisabled
	}
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	if claims.Subject == "" {
		claims.Subject = claims.Email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
