package authz

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/fsnd/pkg/httpclient"
)

var (
	// errUnknownKey はトークンヘッダーのkidに対応する鍵がないことを表す。
	errUnknownKey = errors.New("kidに対応する鍵がありません")
	// errUnsupportedAlg は許可されていない署名アルゴリズムを表す。
	errUnsupportedAlg = errors.New("許可されていない署名アルゴリズムです")
)

// StaticKeys は検証に使う鍵の集合。HS256の共有鍵とRS256の公開鍵（kid別）を保持できる。
type StaticKeys struct {
	// Secret はHS256の共有鍵。空ならHS256を受け付けない。
	Secret []byte
	// RSA はkidからRS256公開鍵への対応。
	RSA map[string]*rsa.PublicKey
}

// keyFunc はjwt.Keyfuncとしてトークンヘッダーから検証鍵を選ぶ。
func (k StaticKeys) keyFunc(t *jwt.Token) (any, error) {
	switch t.Method {
	case jwt.SigningMethodHS256:
		if len(k.Secret) == 0 {
			return nil, fmt.Errorf("%w: %s", errUnsupportedAlg, t.Method.Alg())
		}
		return k.Secret, nil
	case jwt.SigningMethodRS256:
		if len(k.RSA) == 0 {
			return nil, fmt.Errorf("%w: %s", errUnsupportedAlg, t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		if key, ok := k.RSA[kid]; ok {
			return key, nil
		}
		return nil, fmt.Errorf("%w: kid=%q", errUnknownKey, kid)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedAlg, t.Method.Alg())
	}
}

// jwk はJWKSに含まれる1つの鍵。RSA鍵のみを扱う。
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// jwks はJWKSドキュメント。
type jwks struct {
	Keys []jwk `json:"keys"`
}

// FetchJWKS はIdPのJWKSを取得し、署名用RSA公開鍵をkid別に返す。
// 起動時に1度だけ呼び出し、結果をStaticKeys.RSAに設定する。
func FetchJWKS(ctx context.Context, client *httpclient.Client, path string) (map[string]*rsa.PublicKey, error) {
	var doc jwks
	if err := client.GetJSON(ctx, path, &doc); err != nil {
		return nil, fmt.Errorf("JWKSの取得に失敗: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			return nil, fmt.Errorf("kid=%q の鍵が不正です: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("JWKSに署名用のRSA鍵がありません")
	}
	return keys, nil
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("nのデコードに失敗: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("eのデコードに失敗: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if len(n) == 0 || !exp.IsInt64() || exp.Int64() < 3 {
		return nil, errors.New("鍵パラメータが不正です")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
