package coffee

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/envelope"
	"github.com/nao1215/fsnd/pkg/httpserver"
	"github.com/nao1215/fsnd/pkg/middleware"
	"github.com/nao1215/fsnd/pkg/store"
)

// ServiceName はメトリクスとログに付与するサービス名。
const ServiceName = "coffee"

// Server はコーヒーショップサービスのHTTPサーバー。
// ドリンク一覧（shortビュー）のみ公開し、それ以外はスコープを要求する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は実行時設定。
	cfg *config.Config
	// logger はサービスのロガー。
	logger *log.Logger
	// drinks はドリンクコレクションのGateway。
	drinks *crud.Gateway[Drink]
}

// NewServer は新しいコーヒーショップサーバーを生成する。
func NewServer(cfg *config.Config, db *store.DB, a middleware.Authorizer, logger *log.Logger) (*Server, error) {
	router, _ := httpserver.NewEngine(ServiceName, cfg, logger)

	s := &Server{
		router: router,
		cfg:    cfg,
		logger: logger,
		drinks: crud.NewGateway(db, drinkTable),
	}
	if err := httpserver.Mount(router, a, s.routes()); err != nil {
		return nil, err
	}
	router.GET("/health", httpserver.Health(ServiceName, db))

	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Run(ctx, httpserver.NewHTTPServer(s.cfg, s.router), s.cfg.ShutdownTimeout, s.logger)
}

// routes はエンドポイントと要求スコープの一覧を返す。
func (s *Server) routes() []httpserver.Route {
	return []httpserver.Route{
		{Method: http.MethodGet, Path: "/drinks", Handler: s.handleList(false)},
		{Method: http.MethodGet, Path: "/drinks-detail", Scope: "get:drinks-detail", Handler: s.handleList(true)},
		{Method: http.MethodPost, Path: "/drinks", Scope: "post:drinks", Handler: s.handleCreate()},
		{Method: http.MethodPatch, Path: "/drinks/:id", Scope: "patch:drinks", Handler: s.handleUpdate()},
		{Method: http.MethodDelete, Path: "/drinks/:id", Scope: "delete:drinks", Handler: s.handleDelete()},
	}
}

// handleList はドリンク一覧をページ単位で返す。detailがtrueならlongビュー、falseならshortビュー。
func (s *Server) handleList(detail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := envelope.ParsePage(c, s.cfg.PageSize)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		drinks, total, err := s.drinks.List(c.Request.Context(), page, crud.Query{})
		if err != nil {
			envelope.Fail(c, err)
			return
		}

		views := crud.Summaries(drinks)
		if detail {
			views = crud.Details(drinks)
		}
		envelope.OK(c, gin.H{
			"drinks":       views,
			"total_drinks": total,
			"page":         page.Number,
		})
	}
}

// handleCreate はドリンクを登録する。同じタイトルのドリンクがある場合は422を返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createDrinkRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		created, err := s.drinks.Create(c.Request.Context(), Drink{Title: *req.Title, Recipe: *req.Recipe})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"drinks": []any{created.Detail()}})
	}
}

// handleUpdate はドリンクのタイトルまたはレシピを更新する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		var req updateDrinkRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		if req.empty() {
			envelope.Fail(c, crud.BadRequest("title または recipe を指定してください"))
			return
		}

		updated, err := s.drinks.Update(c.Request.Context(), id, req.apply)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"drinks": []any{updated.Detail()}})
	}
}

// handleDelete はドリンクを削除する。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		deleted, err := s.drinks.Delete(c.Request.Context(), id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"delete": deleted})
	}
}
