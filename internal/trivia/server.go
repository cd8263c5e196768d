package trivia

import (
	"context"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/envelope"
	"github.com/nao1215/fsnd/pkg/httpserver"
	"github.com/nao1215/fsnd/pkg/store"
)

// ServiceName はメトリクスとログに付与するサービス名。
const ServiceName = "trivia"

// Server はクイズサービスのHTTPサーバー。すべてのエンドポイントが公開。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は実行時設定。
	cfg *config.Config
	// logger はサービスのロガー。
	logger *log.Logger
	// db はストアハンドル。
	db *store.DB
	// categories はカテゴリコレクションのGateway。
	categories *crud.Gateway[Category]
	// questions は問題コレクションのGateway。
	questions *crud.Gateway[Question]
}

// NewServer は新しいクイズサーバーを生成する。optsはクイズの抽選関数の差し替えに使う。
func NewServer(cfg *config.Config, db *store.DB, logger *log.Logger, opts ...crud.Option) (*Server, error) {
	router, _ := httpserver.NewEngine(ServiceName, cfg, logger)

	s := &Server{
		router:     router,
		cfg:        cfg,
		logger:     logger,
		db:         db,
		categories: crud.NewGateway(db, categoryTable),
		questions:  crud.NewGateway(db, questionTable, opts...),
	}
	if err := httpserver.Mount(router, nil, s.routes()); err != nil {
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

// routes はエンドポイントの一覧を返す。
func (s *Server) routes() []httpserver.Route {
	return []httpserver.Route{
		{Method: http.MethodGet, Path: "/categories", Handler: s.handleListCategories()},
		{Method: http.MethodGet, Path: "/categories/:id/questions", Handler: s.handleQuestionsByCategory()},
		{Method: http.MethodGet, Path: "/questions", Handler: s.handleListQuestions()},
		{Method: http.MethodPost, Path: "/questions", Handler: s.handleCreateQuestion()},
		{Method: http.MethodDelete, Path: "/questions/:id", Handler: s.handleDeleteQuestion()},
		{Method: http.MethodPost, Path: "/questions/search", Handler: s.handleSearchQuestions()},
		{Method: http.MethodPost, Path: "/quizzes", Handler: s.handleQuiz()},
	}
}

// categoryMap はカテゴリIDから名前への対応を返す。
func (s *Server) categoryMap(ctx context.Context) (map[string]string, error) {
	categories, err := s.categories.FindWhere(ctx, crud.Query{})
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(categories))
	for _, c := range categories {
		m[strconv.FormatInt(c.ID, 10)] = c.Type
	}
	return m, nil
}

// handleListCategories はカテゴリの一覧を返す。
func (s *Server) handleListCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := s.categoryMap(c.Request.Context())
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"categories":           categories,
			"number_of_categories": len(categories),
		})
	}
}

// handleListQuestions は問題一覧をページ単位で返す。カテゴリの対応表も含む。
func (s *Server) handleListQuestions() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := envelope.ParsePage(c, s.cfg.PageSize)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()
		questions, total, err := s.questions.List(ctx, page, crud.Query{})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		categories, err := s.categoryMap(ctx)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"questions":        crud.Summaries(questions),
			"total_questions":  total,
			"categories":       categories,
			"current_category": nil,
		})
	}
}

// handleCreateQuestion は問題を登録する。存在しないカテゴリは422を返す。
func (s *Server) handleCreateQuestion() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createQuestionRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}

		ctx := c.Request.Context()
		ok, err := s.categories.Exists(ctx, s.db, *req.Category)
		if err != nil {
			envelope.Fail(c, &crud.StoreError{Op: "カテゴリの確認", Err: err})
			return
		}
		if !ok {
			envelope.Fail(c, crud.Unprocessable("カテゴリが存在しません", map[string]string{"category": "exists"}))
			return
		}

		created, err := s.questions.Create(ctx, Question{
			Question:   *req.Question,
			Answer:     *req.Answer,
			Category:   *req.Category,
			Difficulty: *req.Difficulty,
		})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"created": created.ID, "question": created.Detail()})
	}
}

// handleDeleteQuestion は問題を削除する。
func (s *Server) handleDeleteQuestion() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		deleted, err := s.questions.Delete(c.Request.Context(), id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"delete": deleted})
	}
}

// handleSearchQuestions は問題文の部分一致で検索する。一致しない場合は404を返す。
func (s *Server) handleSearchQuestions() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		questions, total, err := s.questions.Search(c.Request.Context(), *req.SearchTerm)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"questions":        crud.Summaries(questions),
			"total_questions":  total,
			"current_category": nil,
		})
	}
}

// handleQuestionsByCategory はカテゴリに属する問題を返す。
func (s *Server) handleQuestionsByCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()
		category, err := s.categories.Get(ctx, id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		questions, err := s.questions.FindWhere(ctx, crud.Query{Equal: map[string]any{"category": id}})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"questions":        crud.Summaries(questions),
			"total_questions":  len(questions),
			"current_category": category.Type,
		})
	}
}

// handleQuiz は出題済みの問題を除いて次の問題を1つ選ぶ。候補がなければquestionはnull。
func (s *Server) handleQuiz() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req quizRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}

		var q crud.Query
		if id := *req.QuizCategory.ID; id > 0 {
			q.Equal = map[string]any{"category": id}
		}
		next, ok, err := s.questions.PickNext(c.Request.Context(), q, req.PreviousQuestions)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		if !ok {
			envelope.OK(c, gin.H{"question": nil})
			return
		}
		envelope.OK(c, gin.H{"question": next.Detail()})
	}
}
