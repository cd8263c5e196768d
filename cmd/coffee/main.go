// コーヒーショップサービスのエントリポイント。
// ドリンクのレシピを管理し、詳細表示と変更をスコープで保護する。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/nao1215/fsnd/internal/coffee"
	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/store"
)

func main() {
	cfg, err := config.Load(coffee.ServiceName, "8081")
	if err != nil {
		log.Fatal("設定の読み込みに失敗", "err", err)
	}
	logger := cfg.NewLogger(os.Stderr, coffee.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("データベース接続に失敗", "err", err)
	}
	defer db.Close()

	if err := coffee.Migrate(ctx, db, logger); err != nil {
		logger.Fatal("スキーマの適用に失敗", "err", err)
	}

	evaluator, err := cfg.Evaluator(ctx)
	if err != nil {
		logger.Fatal("認可設定の初期化に失敗", "err", err)
	}

	server, err := coffee.NewServer(cfg, db, evaluator, logger)
	if err != nil {
		logger.Fatal("コーヒーショップサーバーの初期化に失敗", "err", err)
	}

	logger.Info("コーヒーショップサービスを起動します", "addr", cfg.Addr(), "driver", cfg.DBDriver)
	if err := server.Run(ctx); err != nil {
		logger.Fatal("コーヒーショップサービスの起動に失敗", "err", err)
	}
}
