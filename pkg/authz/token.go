package authz

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenOptions は発行するトークンの内容。
type TokenOptions struct {
	// Subject はトークンの主体。
	Subject string
	// Issuer は発行者。
	Issuer string
	// Audience は対象者。
	Audience []string
	// Scopes は付与するスコープ。permissionsクレームとして書き出す。
	Scopes []string
	// TTL は有効期間。
	TTL time.Duration
	// Now は発行時刻。ゼロ値なら現在時刻。
	Now time.Time
}

// Sign はHS256でトークンに署名する。開発用トークンの発行とテストで使用する。
func Sign(secret []byte, tok TokenOptions) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("署名鍵が設定されていません")
	}
	return SignWith(jwt.SigningMethodHS256, secret, "", tok)
}

// SignWith は任意の署名方式と鍵でトークンに署名する。kidが空でなければヘッダーに設定する。
func SignWith(method jwt.SigningMethod, key any, kid string, tok TokenOptions) (string, error) {
	if tok.TTL <= 0 {
		return "", errors.New("有効期間は0より大きい必要があります")
	}
	now := tok.Now
	if now.IsZero() {
		now = time.Now()
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tok.Issuer,
			Subject:   tok.Subject,
			Audience:  jwt.ClaimStrings(tok.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tok.TTL)),
			ID:        uuid.NewString(),
		},
		Permissions: tok.Scopes,
	}

	token := jwt.NewWithClaims(method, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}
