package config

import (
	"context"
	"net/url"

	"github.com/nao1215/fsnd/pkg/authz"
	"github.com/nao1215/fsnd/pkg/httpclient"
)

// Evaluator は認可設定からauthz.Evaluatorを生成する。
// AUTH_JWKS_URLが指定されている場合は起動時に一度だけ公開鍵セットを取得する。
func (c *Config) Evaluator(ctx context.Context) (*authz.Evaluator, error) {
	if err := c.RequireAuth(); err != nil {
		return nil, err
	}

	keys := authz.StaticKeys{}
	if c.AuthSecret != "" {
		keys.Secret = []byte(c.AuthSecret)
	}
	if c.AuthJWKSURL != "" {
		u, err := url.Parse(c.AuthJWKSURL)
		if err != nil {
			return nil, err
		}
		base := u.Scheme + "://" + u.Host
		rsaKeys, err := authz.FetchJWKS(ctx, httpclient.New(base), u.RequestURI())
		if err != nil {
			return nil, err
		}
		keys.RSA = rsaKeys
	}

	return authz.New(keys,
		authz.WithIssuer(c.AuthIssuer),
		authz.WithAudience(c.AuthAudience),
		authz.WithLeeway(c.AuthLeeway),
	), nil
}
