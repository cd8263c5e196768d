package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/envelope"
	"github.com/nao1215/fsnd/pkg/store"
)

// showEntry は公演とその出演者・会場をまとめたビュー。
type showEntry struct {
	ID              int64     `json:"id"`
	StartTime       time.Time `json:"start_time"`
	ArtistID        int64     `json:"artist_id"`
	ArtistName      string    `json:"artist_name"`
	ArtistImageLink string    `json:"artist_image_link"`
	VenueID         int64     `json:"venue_id"`
	VenueName       string    `json:"venue_name"`
}

const showEntryQuery = `SELECT s.id, s.start_time, a.id, a.name, a.image_link, v.id, v.name
FROM shows s
JOIN artists a ON a.id = s.artist_id
JOIN venues v ON v.id = s.venue_id`

// queryShows はshowEntryQueryに条件を付けて実行する。
func queryShows(ctx context.Context, q store.Querier, suffix string, args ...any) ([]showEntry, error) {
	rows, err := q.Query(ctx, showEntryQuery+suffix, args...)
	if err != nil {
		return nil, &crud.StoreError{Op: "公演の取得", Err: err}
	}
	defer func() { _ = rows.Close() }()

	out := make([]showEntry, 0)
	for rows.Next() {
		var (
			e     showEntry
			start string
		)
		if err := rows.Scan(&e.ID, &start, &e.ArtistID, &e.ArtistName, &e.ArtistImageLink, &e.VenueID, &e.VenueName); err != nil {
			return nil, &crud.StoreError{Op: "公演の取得", Err: err}
		}
		t, err := time.Parse(timeLayout, start)
		if err != nil {
			return nil, &crud.StoreError{Op: "公演の取得", Err: fmt.Errorf("start_time の形式が不正です: %w", err)}
		}
		e.StartTime = t
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &crud.StoreError{Op: "公演の取得", Err: err}
	}
	return out, nil
}

// showsAt は会場で行われる公演を開始時刻順に返す。
func (s *Server) showsAt(ctx context.Context, venueID int64) ([]showEntry, error) {
	return queryShows(ctx, s.db, " WHERE s.venue_id = ? ORDER BY s.start_time, s.id", venueID)
}

// showsBy はアーティストが出演する公演を開始時刻順に返す。
func (s *Server) showsBy(ctx context.Context, artistID int64) ([]showEntry, error) {
	return queryShows(ctx, s.db, " WHERE s.artist_id = ? ORDER BY s.start_time, s.id", artistID)
}

// splitByTime はnow以前に始まった公演と、それより後の公演に分ける。
func splitByTime(shows []showEntry, now time.Time) (past, upcoming []showEntry) {
	past, upcoming = []showEntry{}, []showEntry{}
	for _, sh := range shows {
		if sh.StartTime.After(now) {
			upcoming = append(upcoming, sh)
			continue
		}
		past = append(past, sh)
	}
	return past, upcoming
}

// handleListShows は公演一覧を開始時刻順にページ単位で返す。
func (s *Server) handleListShows() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := envelope.ParsePage(c, s.cfg.PageSize)
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()

		var total int
		if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM shows").Scan(&total); err != nil {
			envelope.Fail(c, &crud.StoreError{Op: "shows の件数取得", Err: err})
			return
		}
		if page.Exceeds(total) {
			envelope.Fail(c, &crud.NotFoundError{Entity: "shows"})
			return
		}

		shows, err := queryShows(ctx, s.db, " ORDER BY s.start_time, s.id LIMIT ? OFFSET ?", page.Limit, page.Offset())
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"shows": shows, "total_shows": total, "page": page.Number})
	}
}

// handleCreateShow は公演を登録する。出演者または会場が存在しない場合は422を返す。
func (s *Server) handleCreateShow() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req showRequest
		if err := envelope.Bind(c, &req); err != nil {
			envelope.Fail(c, err)
			return
		}
		ctx := c.Request.Context()

		fields := map[string]string{}
		if ok, err := s.artists.Exists(ctx, s.db, *req.ArtistID); err != nil {
			envelope.Fail(c, &crud.StoreError{Op: "artists の存在確認", Err: err})
			return
		} else if !ok {
			fields["artist_id"] = "exists"
		}
		if ok, err := s.venues.Exists(ctx, s.db, *req.VenueID); err != nil {
			envelope.Fail(c, &crud.StoreError{Op: "venues の存在確認", Err: err})
			return
		} else if !ok {
			fields["venue_id"] = "exists"
		}
		if len(fields) > 0 {
			envelope.Fail(c, crud.Unprocessable("出演者または会場が存在しません", fields))
			return
		}

		created, err := s.shows.Create(ctx, Show{
			ArtistID:  *req.ArtistID,
			VenueID:   *req.VenueID,
			StartTime: req.StartTime.UTC().Truncate(time.Second),
		})
		if err != nil {
			envelope.Fail(c, err)
			return
		}
		envelope.OK(c, gin.H{"show": created, "created": created.ID})
	}
}
