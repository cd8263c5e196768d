package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// quizRequest はテスト用のリクエストボディ。
type quizRequest struct {
	PreviousQuestions []int64 `json:"previous_questions"`
}

// echoServer はリクエストの内容をそのまま返すテストサーバーを起動する。
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"method":        r.Method,
			"path":          r.URL.RequestURI(),
			"body":          string(body),
			"authorization": r.Header.Get("Authorization"),
			"accept":        r.Header.Get("Accept"),
			"content_type":  r.Header.Get("Content-Type"),
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

// TestNew はクライアントの既定値とオプションを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        []Option
		wantTimeout time.Duration
		wantToken   string
	}{
		{name: "既定のタイムアウトが設定されること", wantTimeout: DefaultTimeout},
		{name: "WithTimeoutでタイムアウトを変更できること", opts: []Option{WithTimeout(5 * time.Second)}, wantTimeout: 5 * time.Second},
		{name: "WithBearerTokenでトークンを設定できること", opts: []Option{WithBearerToken("abc")}, wantTimeout: DefaultTimeout, wantToken: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New("http://localhost:8080", tt.opts...)
			if c.httpClient.Timeout != tt.wantTimeout {
				t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, tt.wantTimeout)
			}
			if c.token != tt.wantToken {
				t.Errorf("token = %q, want %q", c.token, tt.wantToken)
			}
		})
	}
}

// TestGetJSON はGETリクエストとレスポンスの読み取りを検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("パスとヘッダーを付けて送信できること", func(t *testing.T) {
		t.Parallel()

		ts := echoServer(t)
		var got map[string]string
		err := New(ts.URL, WithBearerToken("token-1")).GetJSON(context.Background(), "/.well-known/jwks.json?v=2", &got)
		if err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got["method"] != http.MethodGet {
			t.Errorf("method = %q, want %q", got["method"], http.MethodGet)
		}
		if got["path"] != "/.well-known/jwks.json?v=2" {
			t.Errorf("path = %q, want %q", got["path"], "/.well-known/jwks.json?v=2")
		}
		if got["authorization"] != "Bearer token-1" {
			t.Errorf("authorization = %q, want %q", got["authorization"], "Bearer token-1")
		}
		if got["accept"] != "application/json" || got["content_type"] != "" {
			t.Errorf("accept = %q, content_type = %q", got["accept"], got["content_type"])
		}
	})

	t.Run("トークン未設定ならAuthorizationを付けないこと", func(t *testing.T) {
		t.Parallel()

		ts := echoServer(t)
		var got map[string]string
		if err := New(ts.URL).GetJSON(context.Background(), "/health", &got); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if got["authorization"] != "" {
			t.Errorf("authorization = %q, want empty", got["authorization"])
		}
	})

	t.Run("JSONでないレスポンスはエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("<html>"))
		}))
		defer ts.Close()

		var got map[string]any
		if err := New(ts.URL).GetJSON(context.Background(), "/health", &got); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

// TestPostJSON はJSONボディの送信を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("ボディをJSONで送信できること", func(t *testing.T) {
		t.Parallel()

		ts := echoServer(t)
		var got map[string]string
		err := New(ts.URL).PostJSON(context.Background(), "/quizzes", quizRequest{PreviousQuestions: []int64{1, 2}}, &got)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if got["body"] != `{"previous_questions":[1,2]}` {
			t.Errorf("body = %q", got["body"])
		}
		if got["content_type"] != "application/json" {
			t.Errorf("content_type = %q, want application/json", got["content_type"])
		}
	})

	t.Run("resultがnilでもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := echoServer(t)
		if err := New(ts.URL).PostJSON(context.Background(), "/questions", map[string]any{}, nil); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
	})

	t.Run("シリアライズできないボディはエラーになること", func(t *testing.T) {
		t.Parallel()

		if err := New("http://127.0.0.1:1").PostJSON(context.Background(), "/", make(chan int), nil); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

// TestStatusError は2xx以外の応答の扱いを検証する。
func TestStatusError(t *testing.T) {
	t.Parallel()

	codes := []int{http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusServiceUnavailable}
	for _, code := range codes {
		t.Run(http.StatusText(code)+"はStatusErrorになること", func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(code)
				w.Write([]byte(`{"success":false}`))
			}))
			defer ts.Close()

			err := New(ts.URL).GetJSON(context.Background(), "/health", nil)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *StatusError", err)
			}
			if se.StatusCode != code {
				t.Errorf("StatusCode = %d, want %d", se.StatusCode, code)
			}
			if !strings.Contains(se.Error(), `{"success":false}`) {
				t.Errorf("Error() = %q, want body", se.Error())
			}
		})
	}

	t.Run("大きなエラーボディは切り詰められること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(strings.Repeat("x", 10000)))
		}))
		defer ts.Close()

		err := New(ts.URL).GetJSON(context.Background(), "/", nil)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *StatusError", err)
		}
		if len(se.Body) != 4096 {
			t.Errorf("len(Body) = %d, want 4096", len(se.Body))
		}
	})
}

// TestTransportError は接続失敗とキャンセルを検証する。
func TestTransportError(t *testing.T) {
	t.Parallel()

	t.Run("キャンセル済みのコンテキストではエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := echoServer(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := New(ts.URL).GetJSON(ctx, "/health", nil); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("タイムアウトを超えるとエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer ts.Close()

		if err := New(ts.URL, WithTimeout(50*time.Millisecond)).GetJSON(context.Background(), "/", nil); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}
