package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New はレコードの変更イベントを組み立てる。dataはJSONとして保存される。
func New(aggregateID int64, aggregateType AggregateType, eventType Type, data any) (*Event, error) {
	if aggregateType == "" {
		return nil, errors.New("集約の種類が指定されていません")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s %s のデータをJSONにできません: %w", aggregateType, eventType, err)
	}

	return &Event{
		ID:            uuid.NewString(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// DecodeData はイベントのデータを型Tとして読み出す。
func DecodeData[T any](e *Event) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(e.Data, out); err != nil {
		return nil, fmt.Errorf("イベント %s のデータを読み出せません: %w", e.ID, err)
	}
	return out, nil
}
