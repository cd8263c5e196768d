// 公演予約サービスのエントリポイント。
// 会場・アーティスト・公演の管理APIを公開する。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/nao1215/fsnd/internal/booking"
	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/store"
)

func main() {
	cfg, err := config.Load(booking.ServiceName, "8083")
	if err != nil {
		log.Fatal("設定の読み込みに失敗", "err", err)
	}
	logger := cfg.NewLogger(os.Stderr, booking.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("データベース接続に失敗", "err", err)
	}
	defer db.Close()

	if err := booking.Migrate(ctx, db, logger); err != nil {
		logger.Fatal("スキーマの適用に失敗", "err", err)
	}

	server, err := booking.NewServer(cfg, db, logger)
	if err != nil {
		logger.Fatal("公演予約サーバーの初期化に失敗", "err", err)
	}

	logger.Info("公演予約サービスを起動します", "addr", cfg.Addr(), "driver", cfg.DBDriver)
	if err := server.Run(ctx); err != nil {
		logger.Fatal("公演予約サービスの起動に失敗", "err", err)
	}
}
