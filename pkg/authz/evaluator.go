package authz

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Evaluator は資格情報を検証し、要求スコープの有無を判定する。
// 状態を持たず、結果は資格情報・現在時刻・信頼設定のみで決まる。
type Evaluator struct {
	keys     StaticKeys
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// Option はEvaluatorの信頼設定を変更する。
type Option func(*Evaluator)

// WithIssuer は期待するissを設定する。空なら検証しない。
func WithIssuer(iss string) Option {
	return func(e *Evaluator) { e.issuer = iss }
}

// WithAudience は期待するaudを設定する。空なら検証しない。
func WithAudience(aud string) Option {
	return func(e *Evaluator) { e.audience = aud }
}

// WithLeeway は時刻検証の許容誤差を設定する。
func WithLeeway(d time.Duration) Option {
	return func(e *Evaluator) { e.leeway = d }
}

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// New はEvaluatorを生成する。
func New(keys StaticKeys, opts ...Option) *Evaluator {
	e := &Evaluator{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize は資格情報を検証し、requiredScopeが付与されていればGrantを返す。
// 失敗時は*Errorを返す。
func (e *Evaluator) Authorize(credential, requiredScope string) (Grant, error) {
	grant, err := e.Verify(credential)
	if err != nil {
		return Grant{}, err
	}
	if !grant.Has(requiredScope) {
		return grant, wrap(ErrInsufficientScope, errors.New("要求スコープ: "+requiredScope))
	}
	return grant, nil
}

// Verify は資格情報の署名とクレームを検証し、付与スコープを返す。スコープの判定は行わない。
func (e *Evaluator) Verify(credential string) (Grant, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Grant{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(e.now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(e.leeway),
	}
	if e.issuer != "" {
		opts = append(opts, jwt.WithIssuer(e.issuer))
	}
	if e.audience != "" {
		opts = append(opts, jwt.WithAudience(e.audience))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(credential, claims, e.keys.keyFunc, opts...); err != nil {
		return Grant{}, classify(err, claims)
	}

	return Grant{
		Subject:   claims.Subject,
		Scopes:    claims.Scopes(),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// classify はjwtパッケージのエラーを認可エラーに対応付ける。
// 有効期限切れは他のクレーム不一致より優先する。
func classify(err error, claims *Claims) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, errUnknownKey),
		errors.Is(err, errUnsupportedAlg):
		return wrap(ErrInvalidHeader, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return wrap(ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return wrap(ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing) && claims.ExpiresAt == nil:
		return wrap(ErrTokenExpired, err)
	default:
		return wrap(ErrInvalidClaims, err)
	}
}

// ParseBearer はAuthorizationヘッダーの値から "Bearer <token>" のトークン部分を取り出す。
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.Fields(header)
	switch {
	case !strings.EqualFold(parts[0], "bearer"):
		return "", wrap(ErrInvalidHeader, errors.New("Authorizationヘッダーは Bearer で始まる必要があります"))
	case len(parts) == 1:
		return "", wrap(ErrInvalidHeader, errors.New("トークンがありません"))
	case len(parts) > 2:
		return "", wrap(ErrInvalidHeader, errors.New("Authorizationヘッダーは Bearer トークン形式である必要があります"))
	}
	return parts[1], nil
}
