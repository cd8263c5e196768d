package booking

import (
	"database/sql/driver"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/event"
)

// timeLayout は公演開始日時の保存形式。UTCで保存し、文字列比較で前後を判定できるようにする。
const timeLayout = "2006-01-02T15:04:05Z"

// Genres はジャンルの一覧。データベースにはカンマ区切りで保存する。
type Genres []string

// Value はdriver.Valuerの実装。
func (g Genres) Value() (driver.Value, error) {
	return strings.Join(g, ","), nil
}

// Scan はsql.Scannerの実装。空要素と前後の空白は取り除く。
func (g *Genres) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
	default:
		return fmt.Errorf("genres: 未対応の型 %T", src)
	}

	out := Genres{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*g = out
	return nil
}

// Venue は会場レコード。
type Venue struct {
	ID           int64  `json:"id"`
	Name         string `json:"name" validate:"required,max=120"`
	City         string `json:"city" validate:"required,max=120"`
	State        string `json:"state" validate:"required,len=2,alpha"`
	Address      string `json:"address" validate:"max=120"`
	Phone        string `json:"phone" validate:"max=20"`
	Genres       Genres `json:"genres" validate:"max=10,dive,required,excludesall=0x2C"`
	ImageLink    string `json:"image_link" validate:"omitempty,url"`
	FacebookLink string `json:"facebook_link" validate:"omitempty,url"`
}

func (v Venue) RecordID() int64 { return v.ID }

// Summary は一覧・検索向けに id と name を返す。
func (v Venue) Summary() any { return namedRef{ID: v.ID, Name: v.Name} }
func (v Venue) Detail() any  { return v }

// Artist はアーティストレコード。
type Artist struct {
	ID           int64  `json:"id"`
	Name         string `json:"name" validate:"required,max=120"`
	City         string `json:"city" validate:"required,max=120"`
	State        string `json:"state" validate:"required,len=2,alpha"`
	Phone        string `json:"phone" validate:"max=20"`
	Genres       Genres `json:"genres" validate:"max=10,dive,required,excludesall=0x2C"`
	ImageLink    string `json:"image_link" validate:"omitempty,url"`
	FacebookLink string `json:"facebook_link" validate:"omitempty,url"`
}

func (a Artist) RecordID() int64 { return a.ID }
func (a Artist) Summary() any    { return namedRef{ID: a.ID, Name: a.Name} }
func (a Artist) Detail() any     { return a }

// Show はアーティストの会場での公演。
type Show struct {
	ID        int64     `json:"id"`
	ArtistID  int64     `json:"artist_id" validate:"gte=1"`
	VenueID   int64     `json:"venue_id" validate:"gte=1"`
	StartTime time.Time `json:"start_time" validate:"required"`
}

func (s Show) RecordID() int64 { return s.ID }
func (s Show) Summary() any    { return s }
func (s Show) Detail() any     { return s }

// namedRef は一覧で使うIDと名前の組。
type namedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

var venueTable = crud.Table[Venue]{
	Name:         "venues",
	Aggregate:    event.AggregateTypeVenue,
	Columns:      []string{"name", "city", "state", "address", "phone", "genres", "image_link", "facebook_link"},
	SearchColumn: "name",
	OrderBy:      "state, city, id",
	Scan: func(s crud.Scanner) (Venue, error) {
		var v Venue
		err := s.Scan(&v.ID, &v.Name, &v.City, &v.State, &v.Address, &v.Phone, &v.Genres, &v.ImageLink, &v.FacebookLink)
		return v, err
	},
	Values: func(v Venue) []any {
		return []any{v.Name, v.City, v.State, v.Address, v.Phone, v.Genres, v.ImageLink, v.FacebookLink}
	},
	WithID: func(v Venue, id int64) Venue {
		v.ID = id
		return v
	},
}

var artistTable = crud.Table[Artist]{
	Name:         "artists",
	Aggregate:    event.AggregateTypeArtist,
	Columns:      []string{"name", "city", "state", "phone", "genres", "image_link", "facebook_link"},
	SearchColumn: "name",
	Scan: func(s crud.Scanner) (Artist, error) {
		var a Artist
		err := s.Scan(&a.ID, &a.Name, &a.City, &a.State, &a.Phone, &a.Genres, &a.ImageLink, &a.FacebookLink)
		return a, err
	},
	Values: func(a Artist) []any {
		return []any{a.Name, a.City, a.State, a.Phone, a.Genres, a.ImageLink, a.FacebookLink}
	},
	WithID: func(a Artist, id int64) Artist {
		a.ID = id
		return a
	},
}

var showTable = crud.Table[Show]{
	Name:      "shows",
	Aggregate: event.AggregateTypeShow,
	Columns:   []string{"artist_id", "venue_id", "start_time"},
	Scan: func(s crud.Scanner) (Show, error) {
		var (
			sh    Show
			start string
		)
		if err := s.Scan(&sh.ID, &sh.ArtistID, &sh.VenueID, &start); err != nil {
			return sh, err
		}
		t, err := time.Parse(timeLayout, start)
		if err != nil {
			return sh, fmt.Errorf("start_time の形式が不正です: %w", err)
		}
		sh.StartTime = t
		return sh, nil
	},
	Values: func(s Show) []any {
		return []any{s.ArtistID, s.VenueID, s.StartTime.UTC().Format(timeLayout)}
	},
	WithID: func(s Show, id int64) Show {
		s.ID = id
		return s
	},
}

// venueRequest は会場の作成・部分更新リクエスト。作成時はname・city・stateが必須。
type venueRequest struct {
	Name         *string `json:"name"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	Address      *string `json:"address"`
	Phone        *string `json:"phone"`
	Genres       *Genres `json:"genres"`
	ImageLink    *string `json:"image_link"`
	FacebookLink *string `json:"facebook_link"`
}

func (r venueRequest) empty() bool {
	return r.Name == nil && r.City == nil && r.State == nil && r.Address == nil &&
		r.Phone == nil && r.Genres == nil && r.ImageLink == nil && r.FacebookLink == nil
}

func (r venueRequest) missing() error {
	return requireFields(map[string]bool{"name": r.Name != nil, "city": r.City != nil, "state": r.State != nil})
}

func (r venueRequest) apply(v *Venue) {
	setIf(&v.Name, r.Name)
	setIf(&v.City, r.City)
	setIf(&v.State, r.State)
	setIf(&v.Address, r.Address)
	setIf(&v.Phone, r.Phone)
	setIf(&v.Genres, r.Genres)
	setIf(&v.ImageLink, r.ImageLink)
	setIf(&v.FacebookLink, r.FacebookLink)
}

// artistRequest はアーティストの作成・部分更新リクエスト。
type artistRequest struct {
	Name         *string `json:"name"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	Phone        *string `json:"phone"`
	Genres       *Genres `json:"genres"`
	ImageLink    *string `json:"image_link"`
	FacebookLink *string `json:"facebook_link"`
}

func (r artistRequest) empty() bool {
	return r.Name == nil && r.City == nil && r.State == nil && r.Phone == nil &&
		r.Genres == nil && r.ImageLink == nil && r.FacebookLink == nil
}

func (r artistRequest) missing() error {
	return requireFields(map[string]bool{"name": r.Name != nil, "city": r.City != nil, "state": r.State != nil})
}

func (r artistRequest) apply(a *Artist) {
	setIf(&a.Name, r.Name)
	setIf(&a.City, r.City)
	setIf(&a.State, r.State)
	setIf(&a.Phone, r.Phone)
	setIf(&a.Genres, r.Genres)
	setIf(&a.ImageLink, r.ImageLink)
	setIf(&a.FacebookLink, r.FacebookLink)
}

// showRequest は公演作成リクエスト。start_timeはRFC3339形式。
type showRequest struct {
	ArtistID  *int64     `json:"artist_id" validate:"required"`
	VenueID   *int64     `json:"venue_id" validate:"required"`
	StartTime *time.Time `json:"start_time" validate:"required"`
}

// requireFields は作成時の必須項目の欠落を400として報告する。
func requireFields(present map[string]bool) error {
	fields := map[string]string{}
	for name, ok := range present {
		if !ok {
			fields[name] = "required"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &crud.ValidationError{Status: http.StatusBadRequest, Message: "必須の入力が不足しています", Fields: fields}
}

// setIf はsrcが指定されている場合のみdstを書き換える。
func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
