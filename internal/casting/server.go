package casting

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/envelope"
	"github.com/nao1215/fsnd/pkg/event"
	"github.com/nao1215/fsnd/pkg/httpserver"
	"github.com/nao1215/fsnd/pkg/middleware"
	"github.com/nao1215/fsnd/pkg/store"
)

// ServiceName はメトリクスとログに付与するサービス名。
const ServiceName = "casting"

// Server はキャスティングサービスのHTTPサーバー。
// すべてのエンドポイントでスコープを要求する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は実行時設定。
	cfg *config.Config
	// logger はサービスのロガー。
	logger *log.Logger
	// db はストアハンドル。
	db *store.DB
	// actors は俳優コレクションのGateway。
	actors *crud.Gateway[Actor]
	// movies は映画コレクションのGateway。
	movies *crud.Gateway[Movie]
}

// NewServer は新しいキャスティングサーバーを生成する。
// スキーマの適用は呼び出し元がMigrateで行う。
func NewServer(cfg *config.Config, db *store.DB, a middleware.Authorizer, logger *log.Logger, opts ...crud.Option) (*Server, error) {
	router, _ := httpserver.NewEngine(ServiceName, cfg, logger)

	s := &Server{
		router: router,
		cfg:    cfg,
		logger: logger,
		db:     db,
		actors: crud.NewGateway(db, actorTable, opts...),
		movies: crud.NewGateway(db, movieTable, opts...),
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
		// 俳優
		{Method: http.MethodGet, Path: "/actors", Scope: "get:actors", Handler: s.handleListActors()},
		{Method: http.MethodGet, Path: "/actors/:id", Scope: "get:actors", Handler: s.handleGetActor()},
		{Method: http.MethodPost, Path: "/actors", Scope: "post:actors", Handler: s.handleCreateActor()},
		{Method: http.MethodPatch, Path: "/actors/:id", Scope: "patch:actors", Handler: s.handleUpdateActor()},
		{Method: http.MethodDelete, Path: "/actors/:id", Scope: "delete:actors", Handler: s.handleDeleteActor()},
		// 映画
		{Method: http.MethodGet, Path: "/movies", Scope: "get:movies", Handler: s.handleListMovies()},
		{Method: http.MethodGet, Path: "/movies/:id", Scope: "get:movies", Handler: s.handleGetMovie()},
		{Method: http.MethodPost, Path: "/movies", Scope: "post:movies", Handler: s.handleCreateMovie()},
		{Method: http.MethodPatch, Path: "/movies/:id", Scope: "patch:movies", Handler: s.handleUpdateMovie()},
		{Method: http.MethodDelete, Path: "/movies/:id", Scope: "delete:movies", Handler: s.handleDeleteMovie()},
		// 出演者の追加
		{Method: http.MethodPost, Path: "/movies/:id/actors", Scope: "patch:movies", Handler: s.handleCastActor()},
	}
}

// handleListActors は俳優一覧をページ単位で返す。
func (s *Server) handleListActors() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := envelope.ParsePage(c, s.cfg.PageSize)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		actors, total, err := s.actors.List(c.Request.Context(), page, crud.Query{})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"actors":       crud.Summaries(actors),
			"total_actors": total,
			"page":         page.Number,
		})
	}
}

// handleGetActor は俳優の詳細を返す。
func (s *Server) handleGetActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		actor, err := s.actors.Get(c.Request.Context(), id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"actor": actor.Detail()})
	}
}

// handleCreateActor は俳優を登録する。
func (s *Server) handleCreateActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createActorRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}

		actor := Actor{Name: *req.Name, Age: *req.Age}
		if req.Gender != nil {
			actor.Gender = *req.Gender
		}
		created, err := s.actors.Create(c.Request.Context(), actor)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"actor": created.Detail(), "created": created.ID})
	}
}

// handleUpdateActor は俳優の指定フィールドのみを更新する。
func (s *Server) handleUpdateActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		var req updateActorRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		if req.empty() {
			envelope.Fail(c, crud.BadRequest("更新するフィールドを指定してください"))
			return
		}

		updated, err := s.actors.Update(c.Request.Context(), id, req.apply)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"actor": updated.Detail()})
	}
}

// handleDeleteActor は俳優を削除する。出演情報もあわせて削除される。
func (s *Server) handleDeleteActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		deleted, err := s.actors.Delete(c.Request.Context(), id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"delete": deleted})
	}
}

// handleListMovies は映画一覧をページ単位で返す。
func (s *Server) handleListMovies() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := envelope.ParsePage(c, s.cfg.PageSize)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		movies, total, err := s.movies.List(c.Request.Context(), page, crud.Query{})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"movies":       crud.Summaries(movies),
			"total_movies": total,
			"page":         page.Number,
		})
	}
}

// handleGetMovie は出演者を含む映画の詳細を返す。
func (s *Server) handleGetMovie() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()
		movie, err := s.movies.Get(ctx, id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		cast, err := s.castOf(ctx, id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"movie": movieDetail{Movie: movie, Cast: crud.Summaries(cast)}})
	}
}

// handleCreateMovie は映画を登録する。
func (s *Server) handleCreateMovie() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createMovieRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		created, err := s.movies.Create(c.Request.Context(), Movie{Title: *req.Title, ReleaseDate: *req.ReleaseDate})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"movie": created.Detail(), "created": created.ID})
	}
}

// handleUpdateMovie は映画の指定フィールドのみを更新する。
func (s *Server) handleUpdateMovie() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		var req updateMovieRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		if req.empty() {
			envelope.Fail(c, crud.BadRequest("更新するフィールドを指定してください"))
			return
		}

		updated, err := s.movies.Update(c.Request.Context(), id, req.apply)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"movie": updated.Detail()})
	}
}

// handleDeleteMovie は映画を削除する。
func (s *Server) handleDeleteMovie() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		deleted, err := s.movies.Delete(c.Request.Context(), id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"delete": deleted})
	}
}

// handleCastActor は映画に出演者を追加する。
// 映画・俳優のいずれかが存在しなければ404、登録済みの組み合わせは422を返す。
func (s *Server) handleCastActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		movieID, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		var req castRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		actorID := *req.ActorID

		ctx := c.Request.Context()
		err = s.movies.Tx(ctx, func(q store.Querier) error {
			if ok, err := s.movies.Exists(ctx, q, movieID); err != nil {
				return err
			} else if !ok {
				return &crud.NotFoundError{Entity: "movies", ID: movieID}
			}
			if ok, err := s.actors.Exists(ctx, q, actorID); err != nil {
				return err
			} else if !ok {
				return &crud.NotFoundError{Entity: "actors", ID: actorID}
			}

			if _, err := q.Exec(ctx, "INSERT INTO performances (movie_id, actor_id) VALUES (?, ?)", movieID, actorID); err != nil {
				return err
			}
			return s.movies.Record(ctx, q, movieID, event.TypeLinked, event.LinkedData{
				TargetType: event.AggregateTypeActor,
				TargetID:   actorID,
			})
		})
		if err != nil {
			envelope.Fail(c, err)
			return
		}

		cast, err := s.castOf(ctx, movieID)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"movie": movieID, "cast": crud.Summaries(cast)})
	}
}

// castOf は映画の出演者を俳優ID順に返す。
func (s *Server) castOf(ctx context.Context, movieID int64) ([]Actor, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.name, a.age, a.gender
		FROM actors a
		INNER JOIN performances p ON p.actor_id = a.id
		WHERE p.movie_id = ?
		ORDER BY a.id`, movieID)
	if err != nil {
		return nil, &crud.StoreError{Op: "出演者の取得", Err: err}
	}
	defer func() { _ = rows.Close() }()

	cast := make([]Actor, 0)
	for rows.Next() {
		a, err := actorTable.Scan(rows)
		if err != nil {
			return nil, &crud.StoreError{Op: "出演者の読み取り", Err: err}
		}
		cast = append(cast, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &crud.StoreError{Op: "出演者の取得", Err: err}
	}
	return cast, nil
}
