package httpserver

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/envelope"
	"github.com/nao1215/fsnd/pkg/middleware"
	"github.com/nao1215/fsnd/pkg/store"
)

// Route は1つのエンドポイントと、その呼び出しに必要なスコープの組。
type Route struct {
	// Method はHTTPメソッド。
	Method string
	// Path はginのルートパターン。
	Path string
	// Scope は要求スコープ。空の場合は公開エンドポイント。
	Scope string
	// Handler はリクエストを処理するハンドラ。
	Handler gin.HandlerFunc
}

// NewEngine は共通ミドルウェアを適用したginエンジンと、サービス専用のメトリクスレジストリを生成する。
// クライアントIPはcfg.TrustedProxiesに含まれるプロキシ経由の場合のみX-Forwarded-Forから求める。
// 未登録のパスは404、未対応のメソッドは405のエラーエンベロープを返す。
func NewEngine(service string, cfg *config.Config, logger *log.Logger) (*gin.Engine, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	// 信頼するプロキシ以外から届いたX-Forwarded-Forは無視し、接続元IPをClientIPとする
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Warn("信頼するプロキシの設定を無視します", "err", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	router.Use(middleware.Metrics(service, reg))

	router.NoRoute(func(c *gin.Context) {
		envelope.Status(c, http.StatusNotFound)
	})
	router.NoMethod(func(c *gin.Context) {
		envelope.Status(c, http.StatusMethodNotAllowed)
	})
	router.GET("/metrics", middleware.MetricsHandler(reg))

	return router, reg
}

// Mount はroutesを登録する。スコープを持つルートにはRequireScopeを前置する。
// スコープを要求するルートがあるのにaがnilの場合はエラーを返す。
func Mount(r gin.IRoutes, a middleware.Authorizer, routes []Route) error {
	for _, rt := range routes {
		if rt.Scope == "" {
			r.Handle(rt.Method, rt.Path, rt.Handler)
			continue
		}
		if a == nil {
			return fmt.Errorf("%s %s はスコープ %q を要求しますが認可設定がありません", rt.Method, rt.Path, rt.Scope)
		}
		r.Handle(rt.Method, rt.Path, middleware.RequireScope(a, rt.Scope), rt.Handler)
	}
	return nil
}

// NewHTTPServer は設定のタイムアウトを適用したhttp.Serverを生成する。
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// Health はデータベースへの疎通を確認するヘルスチェックハンドラを返す。
func Health(service string, db *store.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": service})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	}
}
