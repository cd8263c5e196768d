package config

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kelseyhightower/envconfig"

	"github.com/nao1215/fsnd/pkg/store"
)

// Config は各サービス共通の実行時設定。環境変数 <PREFIX>_<KEY> から読み込む。
type Config struct {
	// Env は実行環境（development / production）。
	Env string `envconfig:"ENV" default:"development"`
	// Port は待ち受けポート。未指定の場合はサービスごとの既定値を使う。
	Port string `envconfig:"PORT"`

	// DBDriver はデータベースドライバ（sqlite / pgx）。
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	// DBDSN はデータベース接続文字列。未指定の場合は <service>.db を使う。
	DBDSN string `envconfig:"DB_DSN"`
	// PageSize は一覧の1ページあたりの件数。
	PageSize int `envconfig:"PAGE_SIZE" default:"10"`

	// AuthIssuer は期待するトークン発行者。
	AuthIssuer string `envconfig:"AUTH_ISSUER"`
	// AuthAudience は期待するトークン対象者。
	AuthAudience string `envconfig:"AUTH_AUDIENCE"`
	// AuthSecret はHS256の共有鍵。
	AuthSecret string `envconfig:"AUTH_SECRET"`
	// AuthJWKSURL はRS256公開鍵セットのURL。
	AuthJWKSURL string `envconfig:"AUTH_JWKS_URL"`
	// AuthLeeway は時刻検証の許容誤差。
	AuthLeeway time.Duration `envconfig:"AUTH_LEEWAY" default:"0s"`

	// AllowedOrigins はCORSで許可するオリジン。"*" はすべてを許可する。
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	// RateLimit はクライアントごとの毎秒リクエスト数。0以下で無制限。
	RateLimit float64 `envconfig:"RATE_LIMIT" default:"20"`
	// RateBurst はレート制限のバースト数。
	RateBurst int `envconfig:"RATE_BURST" default:"40"`
	// TrustedProxies はX-Forwarded-Forを信頼するプロキシのIPまたはCIDR。未指定なら接続元IPで判定する。
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// LogLevel はログレベル（debug / info / warn / error）。
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// LogFormat はログ形式（text / json / logfmt）。
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// ReadTimeout はHTTPリクエストの読み取りタイムアウト。
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	// WriteTimeout はHTTPレスポンスの書き込みタイムアウト。
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	// ShutdownTimeout はグレースフルシャットダウンの待機時間。
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load は環境変数から設定を読み込む。prefixはサービス名（例: "casting"）。
func Load(prefix, defaultPort string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.DBDSN == "" {
		cfg.DBDSN = DefaultDSN(prefix)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultDSN はサービス名から既定のSQLiteファイルDSNを返す。
func DefaultDSN(service string) string {
	return fmt.Sprintf("file:%s.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_txlock=immediate",
		strings.ToLower(service), store.SQLiteBusyTimeout)
}

func (c *Config) validate() error {
	if _, err := store.ParseDialect(c.DBDriver); err != nil {
		return err
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PAGE_SIZE は1以上を指定してください: %d", c.PageSize)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL が不正です: %w", err)
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			return fmt.Errorf("TRUSTED_PROXIES が不正です: %q", p)
		}
	}
	return nil
}

// validProxy はpがIPアドレスまたはCIDRかを返す。
func validProxy(p string) bool {
	if _, err := netip.ParsePrefix(p); err == nil {
		return true
	}
	_, err := netip.ParseAddr(p)
	return err == nil
}

// RequireAuth は認可に必要な鍵設定があるかを検証する。保護ルートを持つサービスで呼び出す。
func (c *Config) RequireAuth() error {
	if c.AuthSecret == "" && c.AuthJWKSURL == "" {
		return errors.New("AUTH_SECRET または AUTH_JWKS_URL を指定してください")
	}
	return nil
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// Addr は待ち受けアドレスを返す。
func (c *Config) Addr() string {
	return ":" + c.Port
}

// NewLogger は設定に従ってロガーを生成する。wがnilの場合は標準エラー出力に書き込む。
func (c *Config) NewLogger(w io.Writer, service string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}

	opts := log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          service,
	}
	switch strings.ToLower(c.LogFormat) {
	case "json":
		opts.Formatter = log.JSONFormatter
	case "logfmt":
		opts.Formatter = log.LogfmtFormatter
	default:
		opts.Formatter = log.TextFormatter
	}
	return log.NewWithOptions(w, opts)
}
