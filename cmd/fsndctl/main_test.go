package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/fsnd/pkg/authz"
	"github.com/nao1215/fsnd/pkg/event"
	"github.com/nao1215/fsnd/pkg/store"
)

// execute はルートコマンドを引数つきで実行し、標準出力の内容を返す。
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

// TestTokenSign は開発用トークンの署名を検証する。
func TestTokenSign(t *testing.T) {
	t.Parallel()

	t.Run("署名したトークンがスコープつきで検証できること", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "token", "sign", "--secret", "cli-secret", "--scope", "get:actors,post:actors")
		if err != nil {
			t.Fatalf("token sign でエラーが発生: %v", err)
		}

		evaluator := authz.New(authz.StaticKeys{Secret: []byte("cli-secret")})
		grant, err := evaluator.Authorize(strings.TrimSpace(out), "post:actors")
		if err != nil {
			t.Fatalf("Authorize()でエラーが発生: %v", err)
		}
		if !grant.Has("get:actors") {
			t.Errorf("grant = %v, want get:actors", grant)
		}
	})

	t.Run("有効期間が0以下の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := execute(t, "token", "sign", "--secret", "cli-secret", "--ttl", "0s"); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

// TestTokenSign_MissingSecret は署名鍵がない場合にエラーになることを検証する。
func TestTokenSign_MissingSecret(t *testing.T) {
	t.Setenv("FSND_AUTH_SECRET", "")

	if _, err := execute(t, "token", "sign"); err == nil {
		t.Fatal("エラーが返されるべき")
	}
}

// TestTokenFetch はクライアントクレデンシャルフローによるトークン取得を検証する。
func TestTokenFetch(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("audience") != "casting" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "issued-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer ts.Close()

	t.Run("アクセストークンを出力すること", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "token", "fetch",
			"--token-url", ts.URL+"/oauth/token",
			"--client-id", "fsndctl",
			"--client-secret", "secret",
			"--audience", "casting",
		)
		if err != nil {
			t.Fatalf("token fetch でエラーが発生: %v", err)
		}
		if got := strings.TrimSpace(out); got != "issued-token" {
			t.Errorf("出力 = %q, want %q", got, "issued-token")
		}
	})

	t.Run("IdPが拒否した場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "token", "fetch",
			"--token-url", ts.URL+"/oauth/token",
			"--client-id", "fsndctl",
			"--client-secret", "secret",
			"--audience", "coffee",
		)
		if err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})

	t.Run("必須フラグがない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := execute(t, "token", "fetch", "--client-id", "fsndctl"); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

// TestMigrate はサービスのスキーマ適用を検証する。
func TestMigrate(t *testing.T) {
	t.Parallel()

	t.Run("スキーマと初期データが適用されること", func(t *testing.T) {
		t.Parallel()

		dsn := "file:" + filepath.Join(t.TempDir(), "trivia.db") + "?_pragma=foreign_keys(1)"
		out, err := execute(t, "migrate", "trivia", "--dsn", dsn)
		if err != nil {
			t.Fatalf("migrate でエラーが発生: %v", err)
		}
		if !strings.Contains(out, "trivia") {
			t.Errorf("出力 = %q, want trivia を含む", out)
		}

		// 2回目は適用済みのためエラーにならない
		if _, err := execute(t, "migrate", "trivia", "--dsn", dsn); err != nil {
			t.Fatalf("再実行でエラーが発生: %v", err)
		}

		db, err := store.Open("sqlite", dsn)
		if err != nil {
			t.Fatalf("DBのオープンに失敗: %v", err)
		}
		defer db.Close()

		var n int
		if err := db.QueryRow(t.Context(), "SELECT COUNT(*) FROM categories").Scan(&n); err != nil {
			t.Fatalf("件数の取得に失敗: %v", err)
		}
		if n != 6 {
			t.Errorf("categories = %d, want 6", n)
		}
	})

	t.Run("不明なサービスはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := execute(t, "migrate", "unknown", "--dsn", "file::memory:"); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

// TestHealth はヘルスチェックコマンドを検証する。
func TestHealth(t *testing.T) {
	t.Parallel()

	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"casting"}`))
	}))
	defer up.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	t.Run("稼働中のサービスを表示すること", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "health", up.URL)
		if err != nil {
			t.Fatalf("health でエラーが発生: %v", err)
		}
		if !strings.Contains(out, "ok\tcasting") {
			t.Errorf("出力 = %q, want ok と casting を含む", out)
		}
	})

	t.Run("応答しないサービスがある場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "health", up.URL, down.URL)
		if err == nil {
			t.Fatal("エラーが返されるべき")
		}
		if !strings.Contains(out, down.URL+"\tNG") {
			t.Errorf("出力 = %q, want %s のNGを含む", out, down.URL)
		}
	})
}

// TestEvents はレコードの変更履歴の表示を検証する。
func TestEvents(t *testing.T) {
	t.Parallel()

	dsn := "file:" + filepath.Join(t.TempDir(), "coffee.db")
	if _, err := execute(t, "migrate", "coffee", "--dsn", dsn); err != nil {
		t.Fatalf("migrate でエラーが発生: %v", err)
	}

	db, err := store.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("DBのオープンに失敗: %v", err)
	}
	created, _ := event.New(5, event.AggregateTypeDrink, event.TypeCreated, map[string]any{"title": "latte", "id": 5})
	deleted, _ := event.New(5, event.AggregateTypeDrink, event.TypeDeleted, event.DeletedData{ID: 5})
	for _, e := range []*event.Event{created, deleted} {
		if err := event.Append(t.Context(), db, e); err != nil {
			t.Fatalf("Append()でエラーが発生: %v", err)
		}
	}
	db.Close()

	t.Run("発生順に変更履歴を表示すること", func(t *testing.T) {
		t.Parallel()

		out, err := execute(t, "events", "Drink", "5", "--dsn", dsn)
		if err != nil {
			t.Fatalf("events でエラーが発生: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 2 {
			t.Fatalf("出力行数 = %d, want 2\n%s", len(lines), out)
		}
		if !strings.Contains(lines[0], "\tCreated\tid=5 title=latte") {
			t.Errorf("1行目 = %q", lines[0])
		}
		if !strings.Contains(lines[1], "\tDeleted\tid=5") {
			t.Errorf("2行目 = %q", lines[1])
		}
	})

	tests := []struct {
		name string
		args []string
	}{
		{name: "履歴がない場合はエラーになること", args: []string{"events", "drink", "6", "--dsn", dsn}},
		{name: "不明なコレクションはエラーになること", args: []string{"events", "album", "5", "--dsn", dsn}},
		{name: "IDが整数でない場合はエラーになること", args: []string{"events", "drink", "abc", "--dsn", dsn}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := execute(t, tt.args...); err == nil {
				t.Fatal("エラーが返されるべき")
			}
		})
	}
}
