// クイズサービスのエントリポイント。
// 問題の一覧・検索・登録と、出題済みを除いた問題の抽選を公開する。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/nao1215/fsnd/internal/trivia"
	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/store"
)

func main() {
	cfg, err := config.Load(trivia.ServiceName, "8082")
	if err != nil {
		log.Fatal("設定の読み込みに失敗", "err", err)
	}
	logger := cfg.NewLogger(os.Stderr, trivia.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("データベース接続に失敗", "err", err)
	}
	defer db.Close()

	if err := trivia.Migrate(ctx, db, logger); err != nil {
		logger.Fatal("スキーマの適用に失敗", "err", err)
	}

	server, err := trivia.NewServer(cfg, db, logger)
	if err != nil {
		logger.Fatal("クイズサーバーの初期化に失敗", "err", err)
	}

	logger.Info("クイズサービスを起動します", "addr", cfg.Addr(), "driver", cfg.DBDriver)
	if err := server.Run(ctx); err != nil {
		logger.Fatal("クイズサービスの起動に失敗", "err", err)
	}
}
