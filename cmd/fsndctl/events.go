package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/fsnd/internal/booking"
	"github.com/nao1215/fsnd/internal/casting"
	"github.com/nao1215/fsnd/internal/coffee"
	"github.com/nao1215/fsnd/internal/trivia"
	"github.com/nao1215/fsnd/pkg/config"
	"github.com/nao1215/fsnd/pkg/event"
	"github.com/nao1215/fsnd/pkg/store"
)

// aggregateServices はコレクション名（小文字）から集約の種類と所属サービスへの対応。
var aggregateServices = map[string]struct {
	aggregate event.AggregateType
	service   string
}{
	"actor":    {event.AggregateTypeActor, casting.ServiceName},
	"movie":    {event.AggregateTypeMovie, casting.ServiceName},
	"drink":    {event.AggregateTypeDrink, coffee.ServiceName},
	"question": {event.AggregateTypeQuestion, trivia.ServiceName},
	"venue":    {event.AggregateTypeVenue, booking.ServiceName},
	"artist":   {event.AggregateTypeArtist, booking.ServiceName},
	"show":     {event.AggregateTypeShow, booking.ServiceName},
}

// newEventsCmd はレコードの変更履歴を表示するコマンドを生成する。
func newEventsCmd() *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "events <actor|movie|drink|question|venue|artist|show> <id>",
		Short: "レコードの変更履歴を表示する",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, ok := aggregateServices[strings.ToLower(args[0])]
			if !ok {
				return fmt.Errorf("不明なコレクション: %q", args[0])
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("IDは正の整数を指定してください: %q", args[1])
			}
			if dsn == "" {
				dsn = config.DefaultDSN(target.service)
			}

			db, err := store.Open(driver, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			events, err := event.ListByAggregate(cmd.Context(), db, target.aggregate, id)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return fmt.Errorf("%s %d の変更履歴はありません", target.aggregate, id)
			}

			out := cmd.OutOrStdout()
			for i := range events {
				e := &events[i]
				data, err := event.DecodeData[map[string]any](e)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", e.CreatedAt.UTC().Format(time.RFC3339), e.EventType, formatData(*data))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "データベースドライバ（sqlite / pgx）")
	cmd.Flags().StringVar(&dsn, "dsn", "", "接続文字列（未指定時は所属サービスの <service>.db）")
	return cmd
}

// formatData はイベントのデータをキー順の key=value 形式に整形する。
func formatData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return strings.Join(parts, " ")
}
