package casting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nao1215/fsnd/pkg/authz"
	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/event"
	"github.com/nao1215/fsnd/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用トークンの署名鍵。
var testSecret = []byte("casting-test-secret")

// allScopes はキャスティングサービスの全スコープ。
var allScopes = []string{
	"get:actors", "post:actors", "patch:actors", "delete:actors",
	"get:movies", "post:movies", "patch:movies", "delete:movies",
}

// setupTestServer はテスト用のキャスティングサーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := store.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := log.New(io.Discard)
	if err := Migrate(t.Context(), db, logger); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	cfg := &config.Config{PageSize: 10, AllowedOrigins: []string{"*"}}
	s, err := NewServer(cfg, db, authz.New(authz.StaticKeys{Secret: testSecret}), logger)
	if err != nil {
		t.Fatalf("サーバーの生成に失敗: %v", err)
	}
	return s
}

// tokenFor は指定したスコープを持つテスト用トークンを発行する。
func tokenFor(t *testing.T, scopes ...string) string {
	t.Helper()
	token, err := authz.Sign(testSecret, authz.TokenOptions{Subject: "tester", Scopes: scopes, TTL: time.Hour})
	if err != nil {
		t.Fatalf("トークンの発行に失敗: %v", err)
	}
	return token
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reqBody io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = strings.NewReader(b)
	default:
		jsonBytes, _ := json.Marshal(b)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeBody はレスポンスボディをmapに変換する。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	return body
}

// seedActor はテスト用の俳優を登録してIDを返す。
func seedActor(t *testing.T, s *Server, name string, age int) int64 {
	t.Helper()
	a, err := s.actors.Create(t.Context(), Actor{Name: name, Age: age, Gender: "female"})
	if err != nil {
		t.Fatalf("テスト用俳優の作成に失敗: %v", err)
	}
	return a.ID
}

// seedMovie はテスト用の映画を登録してIDを返す。
func seedMovie(t *testing.T, s *Server, title string) int64 {
	t.Helper()
	m, err := s.movies.Create(t.Context(), Movie{Title: title, ReleaseDate: "2020-01-02"})
	if err != nil {
		t.Fatalf("テスト用映画の作成に失敗: %v", err)
	}
	return m.ID
}

// TestHealthEndpoint はヘルスチェックエンドポイントが認可なしで200を返すことを検証する。
func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t)
	w := doRequest(s.Handler(), http.MethodGet, "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["service"] != ServiceName {
		t.Errorf("service = %v, want %q", body["service"], ServiceName)
	}
}

// TestAuthorization は資格情報とスコープによるアクセス制御を検証する。
func TestAuthorization(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t)
	expired, err := authz.Sign(testSecret, authz.TokenOptions{
		Scopes: allScopes,
		TTL:    time.Hour,
		Now:    time.Now().Add(-2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("トークンの発行に失敗: %v", err)
	}
	forged, err := authz.Sign([]byte("other-secret"), authz.TokenOptions{Scopes: allScopes, TTL: time.Hour})
	if err != nil {
		t.Fatalf("トークンの発行に失敗: %v", err)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantCode   string
	}{
		{name: "トークンがない場合は401になること", method: http.MethodGet, path: "/actors", wantStatus: http.StatusUnauthorized, wantCode: "missing_token"},
		{name: "期限切れのトークンは401になること", method: http.MethodGet, path: "/actors", token: expired, wantStatus: http.StatusUnauthorized, wantCode: "token_expired"},
		{name: "別の鍵で署名したトークンは401になること", method: http.MethodGet, path: "/actors", token: forged, wantStatus: http.StatusUnauthorized, wantCode: "invalid_signature"},
		{name: "形式が不正なトークンは401になること", method: http.MethodGet, path: "/actors", token: "not-a-jwt", wantStatus: http.StatusUnauthorized, wantCode: "invalid_header"},
		{name: "スコープが不足している場合は403になること", method: http.MethodDelete, path: "/actors/1", token: tokenFor(t, "get:actors"), wantStatus: http.StatusForbidden, wantCode: "insufficient_scope"},
		{name: "スコープがあれば処理されること", method: http.MethodGet, path: "/actors", token: tokenFor(t, "get:actors"), wantStatus: http.StatusOK},
		{name: "出演者の追加にはpatch:moviesが必要なこと", method: http.MethodPost, path: "/movies/1/actors", token: tokenFor(t, "post:movies"), wantStatus: http.StatusForbidden, wantCode: "insufficient_scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(s.Handler(), tt.method, tt.path, tt.token, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			body := decodeBody(t, w)
			if tt.wantCode != "" && body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %q", body["code"], tt.wantCode)
			}
			if tt.wantStatus != http.StatusOK && body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
		})
	}
}

// TestActors は俳優のCRUDを検証する。
func TestActors(t *testing.T) {
	t.Parallel()

	token := tokenFor(t, allScopes...)

	t.Run("俳優を登録して取得できること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.Handler(), http.MethodPost, "/actors", token, map[string]any{
			"name": "Keanu Reeves", "age": 58, "gender": "male",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}
		id := int64(decodeBody(t, w)["created"].(float64))

		w = doRequest(s.Handler(), http.MethodGet, fmt.Sprintf("/actors/%d", id), token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		actor := decodeBody(t, w)["actor"].(map[string]any)
		if actor["name"] != "Keanu Reeves" {
			t.Errorf("name = %v, want %q", actor["name"], "Keanu Reeves")
		}
		if actor["gender"] != "male" {
			t.Errorf("gender = %v, want %q", actor["gender"], "male")
		}

		events, err := event.ListByAggregate(t.Context(), s.db, event.AggregateTypeActor, id)
		if err != nil {
			t.Fatalf("イベントの取得に失敗: %v", err)
		}
		if len(events) != 1 || events[0].EventType != event.TypeCreated {
			t.Errorf("events = %+v, want 1件のCreated", events)
		}
	})

	t.Run("入力の不備は400になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		tests := []struct {
			name string
			body any
		}{
			{name: "nameの欠落", body: map[string]any{"age": 30}},
			{name: "ageの欠落", body: map[string]any{"name": "A"}},
			{name: "不正なJSON", body: `{"name":`},
			{name: "型の不一致", body: map[string]any{"name": "A", "age": "thirty"}},
		}
		for _, tt := range tests {
			w := doRequest(s.Handler(), http.MethodPost, "/actors", token, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: ステータスコード = %d, want %d", tt.name, w.Code, http.StatusBadRequest)
			}
		}
	})

	t.Run("業務ルール違反は422になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.Handler(), http.MethodPost, "/actors", token, map[string]any{"name": "A", "age": -1})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
		body := decodeBody(t, w)
		if body["message"] != "unprocessable" {
			t.Errorf("message = %v, want %q", body["message"], "unprocessable")
		}
	})

	t.Run("部分更新は指定したフィールドのみを書き換えること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		id := seedActor(t, s, "Carrie-Anne Moss", 55)

		w := doRequest(s.Handler(), http.MethodPatch, fmt.Sprintf("/actors/%d", id), token, map[string]any{"age": 56})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}
		actor := decodeBody(t, w)["actor"].(map[string]any)
		if actor["name"] != "Carrie-Anne Moss" {
			t.Errorf("name = %v, want %q", actor["name"], "Carrie-Anne Moss")
		}
		if actor["age"] != float64(56) {
			t.Errorf("age = %v, want 56", actor["age"])
		}
	})

	t.Run("更新の検証に失敗した場合は保存済みの値が変わらないこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		id := seedActor(t, s, "Laurence Fishburne", 61)

		w := doRequest(s.Handler(), http.MethodPatch, fmt.Sprintf("/actors/%d", id), token, map[string]any{"name": "", "age": 62})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}

		got, err := s.actors.Get(t.Context(), id)
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.Name != "Laurence Fishburne" || got.Age != 61 {
			t.Errorf("保存済みレコード = %+v, want 変更なし", got)
		}
	})

	t.Run("空の更新は400になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		id := seedActor(t, s, "Hugo Weaving", 63)

		w := doRequest(s.Handler(), http.MethodPatch, fmt.Sprintf("/actors/%d", id), token, map[string]any{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("存在しない俳優の更新は404になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.Handler(), http.MethodPatch, "/actors/999", token, map[string]any{"age": 20})
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("削除は2回目以降404になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		id := seedActor(t, s, "Joe Pantoliano", 71)
		path := fmt.Sprintf("/actors/%d", id)

		w := doRequest(s.Handler(), http.MethodDelete, path, token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if got := decodeBody(t, w)["delete"]; got != float64(id) {
			t.Errorf("delete = %v, want %d", got, id)
		}

		for range 2 {
			w = doRequest(s.Handler(), http.MethodDelete, path, token, nil)
			if w.Code != http.StatusNotFound {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestListActors は俳優一覧のページングを検証する。
func TestListActors(t *testing.T) {
	t.Parallel()

	token := tokenFor(t, "get:actors")

	t.Run("ページごとに件数と総件数を返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		for i := range 12 {
			seedActor(t, s, fmt.Sprintf("Actor %02d", i+1), 20+i)
		}

		w := doRequest(s.Handler(), http.MethodGet, "/actors?page=2", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		body := decodeBody(t, w)
		actors := body["actors"].([]any)
		if len(actors) != 2 {
			t.Errorf("len(actors) = %d, want %d", len(actors), 2)
		}
		if body["total_actors"] != float64(12) {
			t.Errorf("total_actors = %v, want 12", body["total_actors"])
		}
		first := actors[0].(map[string]any)
		if _, ok := first["gender"]; ok {
			t.Error("一覧ビューにgenderが含まれている")
		}
	})

	t.Run("範囲外のページは404になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		seedActor(t, s, "Only One", 30)

		w := doRequest(s.Handler(), http.MethodGet, "/actors?page=2", token, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("空のコレクションは1ページ目で空の一覧を返すこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.Handler(), http.MethodGet, "/actors", token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		body := decodeBody(t, w)
		if actors := body["actors"].([]any); len(actors) != 0 {
			t.Errorf("len(actors) = %d, want 0", len(actors))
		}
	})

	t.Run("整数でないページは400になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.Handler(), http.MethodGet, "/actors?page=x", token, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestMovies は映画のCRUDと出演者の関連付けを検証する。
func TestMovies(t *testing.T) {
	t.Parallel()

	token := tokenFor(t, allScopes...)

	t.Run("公開日の形式が不正な場合は422になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.Handler(), http.MethodPost, "/movies", token, map[string]any{
			"title": "The Matrix", "release_date": "1999/03/31",
		})
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("出演者を追加すると映画の詳細に含まれること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		movieID := seedMovie(t, s, "The Matrix")
		actorID := seedActor(t, s, "Keanu Reeves", 58)

		w := doRequest(s.Handler(), http.MethodPost, fmt.Sprintf("/movies/%d/actors", movieID), token, map[string]any{"actor_id": actorID})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}

		w = doRequest(s.Handler(), http.MethodGet, fmt.Sprintf("/movies/%d", movieID), token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		movie := decodeBody(t, w)["movie"].(map[string]any)
		if movie["title"] != "The Matrix" {
			t.Errorf("title = %v, want %q", movie["title"], "The Matrix")
		}
		cast := movie["cast"].([]any)
		if len(cast) != 1 {
			t.Fatalf("len(cast) = %d, want %d", len(cast), 1)
		}
		if cast[0].(map[string]any)["name"] != "Keanu Reeves" {
			t.Errorf("cast[0].name = %v, want %q", cast[0].(map[string]any)["name"], "Keanu Reeves")
		}

		events, err := event.ListByAggregate(t.Context(), s.db, event.AggregateTypeMovie, movieID)
		if err != nil {
			t.Fatalf("イベントの取得に失敗: %v", err)
		}
		if len(events) != 2 || events[1].EventType != event.TypeLinked {
			t.Errorf("events = %+v, want Created, Linked", events)
		}
	})

	t.Run("登録済みの出演者の再追加は422になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		movieID := seedMovie(t, s, "John Wick")
		actorID := seedActor(t, s, "Keanu Reeves", 58)
		path := fmt.Sprintf("/movies/%d/actors", movieID)

		if w := doRequest(s.Handler(), http.MethodPost, path, token, map[string]any{"actor_id": actorID}); w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		w := doRequest(s.Handler(), http.MethodPost, path, token, map[string]any{"actor_id": actorID})
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("存在しない俳優の追加は404になること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		movieID := seedMovie(t, s, "Speed")

		w := doRequest(s.Handler(), http.MethodPost, fmt.Sprintf("/movies/%d/actors", movieID), token, map[string]any{"actor_id": 42})
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("映画を削除すると出演情報も削除されること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		movieID := seedMovie(t, s, "Constantine")
		actorID := seedActor(t, s, "Keanu Reeves", 58)
		doRequest(s.Handler(), http.MethodPost, fmt.Sprintf("/movies/%d/actors", movieID), token, map[string]any{"actor_id": actorID})

		w := doRequest(s.Handler(), http.MethodDelete, fmt.Sprintf("/movies/%d", movieID), token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var n int
		if err := s.db.QueryRow(t.Context(), "SELECT COUNT(*) FROM performances").Scan(&n); err != nil {
			t.Fatalf("件数の取得に失敗: %v", err)
		}
		if n != 0 {
			t.Errorf("performances = %d件, want 0件", n)
		}
	})

	t.Run("タイトルのみの部分更新で公開日が保たれること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		movieID := seedMovie(t, s, "Point Break")

		w := doRequest(s.Handler(), http.MethodPatch, fmt.Sprintf("/movies/%d", movieID), token, map[string]any{"title": "Point Break (1991)"})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		movie := decodeBody(t, w)["movie"].(map[string]any)
		if movie["release_date"] != "2020-01-02" {
			t.Errorf("release_date = %v, want %q", movie["release_date"], "2020-01-02")
		}
	})
}

// TestRouting は未登録ルートと未対応メソッドのエンベロープを検証する。
func TestRouting(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t)

	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		wantMessage string
	}{
		{name: "未登録のパスは404になること", method: http.MethodGet, path: "/directors", wantStatus: http.StatusNotFound, wantMessage: "Not found"},
		{name: "未対応のメソッドは405になること", method: http.MethodPut, path: "/actors/1", wantStatus: http.StatusMethodNotAllowed, wantMessage: "Method Not Allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(s.Handler(), tt.method, tt.path, "", nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decodeBody(t, w)["message"]; got != tt.wantMessage {
				t.Errorf("message = %v, want %q", got, tt.wantMessage)
			}
		})
	}

	t.Run("CORSのプリフライトは204になること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodOptions, "/actors", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://app.example.com")
		}
	})

	t.Run("メトリクスを公開すること", func(t *testing.T) {
		t.Parallel()

		doRequest(s.Handler(), http.MethodGet, "/health", "", nil)
		w := doRequest(s.Handler(), http.MethodGet, "/metrics", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), "http_requests_total") {
			t.Error("http_requests_total が出力されていない")
		}
	})
}
