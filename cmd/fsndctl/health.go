package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/fsnd/pkg/httpclient"
)

// healthStatus はヘルスチェックエンドポイントの応答。
type healthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// newHealthCmd はサービスのヘルスチェックを呼び出すコマンドを生成する。
func newHealthCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health <base-url>...",
		Short: "サービスの稼働状態を確認する",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, base := range args {
				var st healthStatus
				if err := httpclient.New(base, httpclient.WithTimeout(timeout)).GetJSON(cmd.Context(), "/health", &st); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tNG\t%v\n", base, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", base, st.Status, st.Service)
			}
			if failed > 0 {
				return fmt.Errorf("%d 件のサービスが応答しません", failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "リクエストのタイムアウト")
	return cmd
}
