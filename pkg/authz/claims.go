package authz

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeList はスペース区切り文字列または文字列配列で表現されるスコープ集合。
// JSONへはスペース区切り文字列として書き出す。
type ScopeList []string

// UnmarshalJSON は "get:movies post:movies" と ["get:movies","post:movies"] の両形式を受け付ける。
func (s *ScopeList) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = strings.Fields(str)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*s = arr
	return nil
}

// MarshalJSON はスペース区切り文字列として書き出す。
func (s ScopeList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(s, " "))
}

// Claims は資格情報のクレーム。スコープはscopeとpermissionsのどちらにも載りうる。
type Claims struct {
	jwt.RegisteredClaims
	// Scope はOAuth2形式のスコープ。
	Scope ScopeList `json:"scope,omitempty"`
	// Permissions はRBAC有効時にIdPが付与する権限の配列。
	Permissions []string `json:"permissions,omitempty"`
}

// Scopes はscopeとpermissionsの和集合を重複なく昇順で返す。
func (c *Claims) Scopes() []string {
	out := make([]string, 0, len(c.Scope)+len(c.Permissions))
	for _, s := range slices.Concat([]string(c.Scope), c.Permissions) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Grant は検証済みの資格情報から得られた主体と付与スコープ。
type Grant struct {
	// Subject はトークンの主体（sub）。
	Subject string
	// Scopes は付与されたスコープ（昇順、重複なし）。
	Scopes []string
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
}

// Has はscopeが付与されているかを返す。
func (g Grant) Has(scope string) bool {
	_, found := slices.BinarySearch(g.Scopes, scope)
	return found
}
