package event

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/fsnd/pkg/store"
)

// Schema はentity_eventsテーブルの定義。SQLiteとPostgreSQLの両方で有効なDDLに限定する。
const Schema = `
CREATE TABLE IF NOT EXISTS entity_events (
    id TEXT PRIMARY KEY,
    aggregate_type TEXT NOT NULL,
    aggregate_id BIGINT NOT NULL,
    event_type TEXT NOT NULL,
    data TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entity_events_aggregate
    ON entity_events(aggregate_type, aggregate_id);
`

// timeLayout は発生順に文字列比較できるよう小数部を固定長にしたRFC3339形式。
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Append はイベントをentity_eventsテーブルに追記する。
// 呼び出し元の書き込みと同じトランザクションのQuerierを渡すこと。
func Append(ctx context.Context, q store.Querier, e *Event) error {
	_, err := q.Exec(ctx,
		`INSERT INTO entity_events (id, aggregate_type, aggregate_id, event_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.AggregateType), e.AggregateID, string(e.EventType), string(e.Data), e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("イベントの追記に失敗: %w", err)
	}
	return nil
}

// ListByAggregate は指定レコードのイベントを発生順に返す。
func ListByAggregate(ctx context.Context, q store.Querier, aggregateType AggregateType, aggregateID int64) ([]Event, error) {
	rows, err := q.Query(ctx,
		`SELECT id, aggregate_type, aggregate_id, event_type, data, created_at FROM entity_events WHERE aggregate_type = ? AND aggregate_id = ? ORDER BY created_at, id`,
		string(aggregateType), aggregateID,
	)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			aggType   string
			evType    string
			data      string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &aggType, &e.AggregateID, &evType, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("イベントの読み取りに失敗: %w", err)
		}
		e.AggregateType = AggregateType(aggType)
		e.EventType = Type(evType)
		e.Data = []byte(data)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
