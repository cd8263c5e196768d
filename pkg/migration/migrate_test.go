package migration

import (
	"context"
	"io"
	"testing"
	"testing/fstest"

	"github.com/charmbracelet/log"

	"github.com/nao1215/fsnd/pkg/store"
)

func openMemory(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("データベース接続に失敗: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/sqlite/000002_add_age.up.sql": {
			Data: []byte(`ALTER TABLE actors ADD COLUMN age INTEGER;`),
		},
		"migrations/sqlite/000001_create_actors.up.sql": {
			Data: []byte(`CREATE TABLE actors (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE INDEX idx_actors_name ON actors(name);`),
		},
		"migrations/sqlite/000003_create_actors.down.sql": {Data: []byte(`DROP TABLE actors;`)},
		"migrations/sqlite/README.md":                      {Data: []byte(`memo`)},
		"migrations/pgx/000001_create_actors.up.sql":       {Data: []byte(`CREATE TABLE actors (id BIGSERIAL PRIMARY KEY);`)},
	}
}

// TestRun はマイグレーションの適用と再実行時のスキップを検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("未適用のマイグレーションをバージョン順に適用すること", func(t *testing.T) {
		t.Parallel()

		db := openMemory(t)
		ctx := context.Background()

		n, err := Run(ctx, db, testFS(), "migrations", log.New(io.Discard))
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用数 = %d, want %d", n, 2)
		}

		if _, err := db.Exec(ctx, "INSERT INTO actors (name, age) VALUES (?, ?)", "Keanu", 58); err != nil {
			t.Errorf("マイグレーション後のINSERTに失敗: %v", err)
		}
	})

	t.Run("適用済みのマイグレーションはスキップすること", func(t *testing.T) {
		t.Parallel()

		db := openMemory(t)
		ctx := context.Background()

		if _, err := Run(ctx, db, testFS(), "migrations", nil); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		n, err := Run(ctx, db, testFS(), "migrations", nil)
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("適用数 = %d, want %d", n, 0)
		}
	})

	t.Run("SQLが不正な場合はロールバックしてエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		db := openMemory(t)
		ctx := context.Background()
		fsys := fstest.MapFS{
			"migrations/sqlite/000001_broken.up.sql": {Data: []byte(`CREATE TABLE broken (`)},
		}

		if _, err := Run(ctx, db, fsys, "migrations", nil); err == nil {
			t.Fatal("エラーが返されるべき")
		}

		var count int
		if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("件数の取得に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("記録済みバージョン数 = %d, want %d", count, 0)
		}
	})

	t.Run("方言のディレクトリがない場合はエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		db := openMemory(t)
		fsys := fstest.MapFS{
			"migrations/pgx/000001_create.up.sql": {Data: []byte(`SELECT 1;`)},
		}
		if _, err := Run(context.Background(), db, fsys, "migrations", nil); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}
