// fsndctl は各サービスの運用を補助するコマンドラインツール。
// 開発用トークンの発行、IdPからのトークン取得、スキーマの適用、ヘルスチェック、変更履歴の表示を行う。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd はサブコマンドを登録したルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fsndctl",
		Short:         "fsnd サービス群の運用ツール",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTokenCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newHealthCmd())
	root.AddCommand(newEventsCmd())
	return root
}
