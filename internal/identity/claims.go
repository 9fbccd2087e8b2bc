package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はアクセストークンから読み取るクレーム。
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ClaimsParser はアクセストークンのクレームを読み取る。
// secretが設定されている場合はHS256署名を検証し、未設定の場合は署名を検証せずに読み取る。
// 署名検証なしの読み取りは、トークンを取得した経路（認証プロバイダーとの直接通信）を信頼できる場合に限る。
type ClaimsParser struct {
	secret []byte
}

// NewClaimsParser はClaimsParserを生成する。
func NewClaimsParser(secret string) *ClaimsParser {
	p := &ClaimsParser{}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Parse はトークン文字列からクレームを取り出す。
func (p *ClaimsParser) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("empty access token")
	}

	claims := &Claims{}
	if p.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("failed to parse access token: %w", err)
		}
		return claims, nil
	}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	return claims, nil
}

// Expiry はexpクレームを返す。未設定の場合はゼロ値。
func (c *Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}
