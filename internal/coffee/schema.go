package coffee

import (
	"context"
	"embed"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/nao1215/fsnd/pkg/event"
	"github.com/nao1215/fsnd/pkg/migration"
	"github.com/nao1215/fsnd/pkg/store"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate は変更イベントのテーブルとコーヒーショップサービスのスキーマを適用する。
func Migrate(ctx context.Context, db *store.DB, logger *log.Logger) error {
	if _, err := db.Exec(ctx, event.Schema); err != nil {
		return fmt.Errorf("イベントテーブルの作成に失敗: %w", err)
	}
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		return err
	}
	return nil
}
