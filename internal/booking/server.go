package booking

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/envelope"
	"github.com/nao1215/fsnd/pkg/httpserver"
	"github.com/nao1215/fsnd/pkg/store"
)

// ServiceName はメトリクスとログに付与するサービス名。
const ServiceName = "booking"

// Server は会場・アーティスト・公演を管理する公演予約サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は実行時設定。
	cfg *config.Config
	// logger はサービスのロガー。
	logger *log.Logger
	// db はストアハンドル。
	db *store.DB
	// venues は会場コレクションのGateway。
	venues *crud.Gateway[Venue]
	// artists はアーティストコレクションのGateway。
	artists *crud.Gateway[Artist]
	// shows は公演コレクションのGateway。
	shows *crud.Gateway[Show]
	// now は過去・今後の公演を分ける基準時刻を返す。
	now func() time.Time
}

// Option はServerの設定を変更する。
type Option func(*Server)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer は新しい公演予約サーバーを生成する。
func NewServer(cfg *config.Config, db *store.DB, logger *log.Logger, opts ...Option) (*Server, error) {
	router, _ := httpserver.NewEngine(ServiceName, cfg, logger)

	s := &Server{
		router:  router,
		cfg:     cfg,
		logger:  logger,
		db:      db,
		venues:  crud.NewGateway(db, venueTable),
		artists: crud.NewGateway(db, artistTable),
		shows:   crud.NewGateway(db, showTable),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
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
		// 会場
		{Method: http.MethodGet, Path: "/venues", Handler: s.handleListVenues()},
		{Method: http.MethodPost, Path: "/venues/search", Handler: s.handleSearchVenues()},
		{Method: http.MethodGet, Path: "/venues/:id", Handler: s.handleGetVenue()},
		{Method: http.MethodPost, Path: "/venues", Handler: s.handleCreateVenue()},
		{Method: http.MethodPatch, Path: "/venues/:id", Handler: s.handleUpdateVenue()},
		{Method: http.MethodDelete, Path: "/venues/:id", Handler: handleDelete(s.venues)},
		// アーティスト
		{Method: http.MethodGet, Path: "/artists", Handler: s.handleListArtists()},
		{Method: http.MethodPost, Path: "/artists/search", Handler: s.handleSearchArtists()},
		{Method: http.MethodGet, Path: "/artists/:id", Handler: s.handleGetArtist()},
		{Method: http.MethodPost, Path: "/artists", Handler: s.handleCreateArtist()},
		{Method: http.MethodPatch, Path: "/artists/:id", Handler: s.handleUpdateArtist()},
		{Method: http.MethodDelete, Path: "/artists/:id", Handler: handleDelete(s.artists)},
		// 公演
		{Method: http.MethodGet, Path: "/shows", Handler: s.handleListShows()},
		{Method: http.MethodPost, Path: "/shows", Handler: s.handleCreateShow()},
	}
}

// searchRequest は名前の部分一致検索リクエスト。
type searchRequest struct {
	SearchTerm *string `json:"search_term" validate:"required"`
}

// listing は一覧・検索結果の1件。今後の公演数を含む。
type listing struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	NumUpcomingShows int    `json:"num_upcoming_shows"`
}

// area は同じ市・州に属する会場のまとまり。
type area struct {
	City   string    `json:"city"`
	State  string    `json:"state"`
	Venues []listing `json:"venues"`
}

// handleDelete は主キーでレコードを削除するハンドラを返す。関連する公演もあわせて削除される。
func handleDelete[T crud.Record](g *crud.Gateway[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		deleted, err := g.Delete(c.Request.Context(), id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"delete": deleted})
	}
}

// upcomingCounts はcolumn（venue_id または artist_id）ごとの今後の公演数を返す。
func (s *Server) upcomingCounts(ctx context.Context, column string) (map[int64]int, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+column+", COUNT(*) FROM shows WHERE start_time > ? GROUP BY "+column,
		s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, &crud.StoreError{Op: "公演数の集計", Err: err}
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			id int64
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, &crud.StoreError{Op: "公演数の集計", Err: err}
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &crud.StoreError{Op: "公演数の集計", Err: err}
	}
	return counts, nil
}

// toListings はレコードを今後の公演数つきの一覧に変換する。
func toListings[T crud.Record](items []T, name func(T) string, counts map[int64]int) []listing {
	out := make([]listing, 0, len(items))
	for _, it := range items {
		out = append(out, listing{ID: it.RecordID(), Name: name(it), NumUpcomingShows: counts[it.RecordID()]})
	}
	return out
}

// handleListVenues は会場を市・州ごとにまとめて返す。
func (s *Server) handleListVenues() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		venues, err := s.venues.FindWhere(ctx, crud.Query{})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		counts, err := s.upcomingCounts(ctx, "venue_id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}

		// venuesは state, city の順に並んでいるため、隣接する同じ地域をまとめる
		areas := make([]area, 0)
		for _, v := range venues {
			if n := len(areas); n == 0 || areas[n-1].City != v.City || areas[n-1].State != v.State {
				areas = append(areas, area{City: v.City, State: v.State, Venues: []listing{}})
			}
			last := &areas[len(areas)-1]
			last.Venues = append(last.Venues, listing{ID: v.ID, Name: v.Name, NumUpcomingShows: counts[v.ID]})
		}
		envelope.OK(c, gin.H{"areas": areas, "total_venues": len(venues)})
	}
}

// handleSearchVenues は会場名の部分一致で検索する。一致しない場合は404を返す。
func (s *Server) handleSearchVenues() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()
		venues, total, err := s.venues.Search(ctx, *req.SearchTerm)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		counts, err := s.upcomingCounts(ctx, "venue_id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"count": total,
			"data":  toListings(venues, func(v Venue) string { return v.Name }, counts),
		})
	}
}

// handleGetVenue は会場の詳細と、過去・今後の公演を返す。
func (s *Server) handleGetVenue() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()
		venue, err := s.venues.Get(ctx, id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		shows, err := s.showsAt(ctx, id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}

		past, upcoming := splitByTime(shows, s.now())
		envelope.OK(c, gin.H{
			"venue":                venue.Detail(),
			"past_shows":           past,
			"upcoming_shows":       upcoming,
			"past_shows_count":     len(past),
			"upcoming_shows_count": len(upcoming),
		})
	}
}

// handleCreateVenue は会場を登録する。
func (s *Server) handleCreateVenue() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req venueRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		if err := req.missing(); err != nil {
			envelope.Fail(c, err)
			return
		}

		var v Venue
		req.apply(&v)
		created, err := s.venues.Create(c.Request.Context(), v)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"venue": created.Detail(), "created": created.ID})
	}
}

// handleUpdateVenue は会場の指定フィールドのみを更新する。
func (s *Server) handleUpdateVenue() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		var req venueRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		if req.empty() {
			envelope.Fail(c, crud.BadRequest("更新するフィールドを指定してください"))
			return
		}

		updated, err := s.venues.Update(c.Request.Context(), id, req.apply)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"venue": updated.Detail()})
	}
}

// handleListArtists はアーティスト一覧をページ単位で返す。
func (s *Server) handleListArtists() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := envelope.ParsePage(c, s.cfg.PageSize)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()
		artists, total, err := s.artists.List(ctx, page, crud.Query{})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		counts, err := s.upcomingCounts(ctx, "artist_id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"artists":       toListings(artists, func(a Artist) string { return a.Name }, counts),
			"total_artists": total,
			"page":          page.Number,
		})
	}
}

// handleSearchArtists はアーティスト名の部分一致で検索する。
func (s *Server) handleSearchArtists() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()
		artists, total, err := s.artists.Search(ctx, *req.SearchTerm)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		counts, err := s.upcomingCounts(ctx, "artist_id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{
			"count": total,
			"data":  toListings(artists, func(a Artist) string { return a.Name }, counts),
		})
	}
}

// handleGetArtist はアーティストの詳細と、過去・今後の公演を返す。
func (s *Server) handleGetArtist() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()
		artist, err := s.artists.Get(ctx, id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		shows, err := s.showsBy(ctx, id)
		if err != nil {
			envelope.Fail(c, err)
			return
		}

		past, upcoming := splitByTime(shows, s.now())
		envelope.OK(c, gin.H{
			"artist":               artist.Detail(),
			"past_shows":           past,
			"upcoming_shows":       upcoming,
			"past_shows_count":     len(past),
			"upcoming_shows_count": len(upcoming),
		})
	}
}

// handleCreateArtist はアーティストを登録する。
func (s *Server) handleCreateArtist() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req artistRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		if err := req.missing(); err != nil {
			envelope.Fail(c, err)
			return
		}

		var a Artist
		req.apply(&a)
		created, err := s.artists.Create(c.Request.Context(), a)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"artist": created.Detail(), "created": created.ID})
	}
}

// handleUpdateArtist はアーティストの指定フィールドのみを更新する。
func (s *Server) handleUpdateArtist() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := envelope.ParseID(c, "id")
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		var req artistRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		if req.empty() {
			envelope.Fail(c, crud.BadRequest("更新するフィールドを指定してください"))
			return
		}

		updated, err := s.artists.Update(c.Request.Context(), id, req.apply)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"artist": updated.Detail()})
	}
}
