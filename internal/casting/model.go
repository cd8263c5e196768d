package casting

import (
	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/event"
)

// Actor は俳優レコード。
type Actor struct {
	// ID は主キー。
	ID int64 `json:"id"`
	// Name は俳優名。
	Name string `json:"name" validate:"required,max=120"`
	// Age は年齢。
	Age int `json:"age" validate:"gte=0,lte=150"`
	// Gender は性別。任意入力。
	Gender string `json:"gender" validate:"max=32"`
}

func (a Actor) RecordID() int64 { return a.ID }

// Summary は一覧向けに id・name・age を返す。
func (a Actor) Summary() any {
	return actorSummary{ID: a.ID, Name: a.Name, Age: a.Age}
}

func (a Actor) Detail() any { return a }

type actorSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// Movie は映画レコード。公開日はYYYY-MM-DD形式の文字列で保持する。
type Movie struct {
	// ID は主キー。
	ID int64 `json:"id"`
	// Title は映画タイトル。
	Title string `json:"title" validate:"required,max=200"`
	// ReleaseDate は公開日。
	ReleaseDate string `json:"release_date" validate:"required,datetime=2006-01-02"`
}

func (m Movie) RecordID() int64 { return m.ID }
func (m Movie) Summary() any    { return m }
func (m Movie) Detail() any     { return m }

var actorTable = crud.Table[Actor]{
	Name:         "actors",
	Aggregate:    event.AggregateTypeActor,
	Columns:      []string{"name", "age", "gender"},
	SearchColumn: "name",
	Scan: func(s crud.Scanner) (Actor, error) {
		var a Actor
		err := s.Scan(&a.ID, &a.Name, &a.Age, &a.Gender)
		return a, err
	},
	Values: func(a Actor) []any { return []any{a.Name, a.Age, a.Gender} },
	WithID: func(a Actor, id int64) Actor {
		a.ID = id
		return a
	},
}

var movieTable = crud.Table[Movie]{
	Name:         "movies",
	Aggregate:    event.AggregateTypeMovie,
	Columns:      []string{"title", "release_date"},
	SearchColumn: "title",
	Scan: func(s crud.Scanner) (Movie, error) {
		var m Movie
		err := s.Scan(&m.ID, &m.Title, &m.ReleaseDate)
		return m, err
	},
	Values: func(m Movie) []any { return []any{m.Title, m.ReleaseDate} },
	WithID: func(m Movie, id int64) Movie {
		m.ID = id
		return m
	},
}

// createActorRequest は俳優作成リクエストのJSON構造。
type createActorRequest struct {
	Name   *string `json:"name" validate:"required"`
	Age    *int    `json:"age" validate:"required"`
	Gender *string `json:"gender"`
}

// updateActorRequest は俳優の部分更新リクエスト。指定したフィールドのみ書き換える。
type updateActorRequest struct {
	Name   *string `json:"name"`
	Age    *int    `json:"age"`
	Gender *string `json:"gender"`
}

func (r updateActorRequest) empty() bool {
	return r.Name == nil && r.Age == nil && r.Gender == nil
}

func (r updateActorRequest) apply(a *Actor) {
	if r.Name != nil {
		a.Name = *r.Name
	}
	if r.Age != nil {
		a.Age = *r.Age
	}
	if r.Gender != nil {
		a.Gender = *r.Gender
	}
}

// createMovieRequest は映画作成リクエストのJSON構造。
type createMovieRequest struct {
	Title       *string `json:"title" validate:"required"`
	ReleaseDate *string `json:"release_date" validate:"required"`
}

// updateMovieRequest は映画の部分更新リクエスト。
type updateMovieRequest struct {
	Title       *string `json:"title"`
	ReleaseDate *string `json:"release_date"`
}

func (r updateMovieRequest) empty() bool {
	return r.Title == nil && r.ReleaseDate == nil
}

func (r updateMovieRequest) apply(m *Movie) {
	if r.Title != nil {
		m.Title = *r.Title
	}
	if r.ReleaseDate != nil {
		m.ReleaseDate = *r.ReleaseDate
	}
}

// castRequest は映画への出演者追加リクエスト。
type castRequest struct {
	ActorID *int64 `json:"actor_id" validate:"required"`
}

// movieDetail は出演者を含む映画の詳細ビュー。
type movieDetail struct {
	Movie
	Cast []any `json:"cast"`
}
