package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nao1215/fsnd/internal/booking"
	"github.com/nao1215/fsnd/internal/casting"
	"github.com/nao1215/fsnd/internal/coffee"
	"github.com/nao1215/fsnd/internal/trivia"
	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/store"
)

// migrators はサービス名からスキーマ適用関数への対応。
var migrators = map[string]func(context.Context, *store.DB, *log.Logger) error{
	casting.ServiceName: casting.Migrate,
	coffee.ServiceName:  coffee.Migrate,
	trivia.ServiceName:  trivia.Migrate,
	booking.ServiceName: booking.Migrate,
}

// newMigrateCmd はサービスのスキーマを適用するコマンドを生成する。
func newMigrateCmd() *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:       "migrate <service>",
		Short:     "サービスのスキーマを適用する",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{casting.ServiceName, coffee.ServiceName, trivia.ServiceName, booking.ServiceName},
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]
			migrate, ok := migrators[service]
			if !ok {
				return fmt.Errorf("不明なサービス: %q", service)
			}
			if dsn == "" {
				dsn = config.DefaultDSN(service)
			}

			db, err := store.Open(driver, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "fsndctl"})
			if err := migrate(cmd.Context(), db, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s のスキーマを適用しました\n", service)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "データベースドライバ（sqlite / pgx）")
	cmd.Flags().StringVar(&dsn, "dsn", "", "接続文字列（未指定時は <service>.db）")
	return cmd
}
