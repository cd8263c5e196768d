package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティコレクションの種類を表す。
type AggregateType string

const (
	// AggregateTypeActor は俳優エンティティを表す。
	AggregateTypeActor AggregateType = "Actor"
	// AggregateTypeMovie は映画エンティティを表す。
	AggregateTypeMovie AggregateType = "Movie"
	// AggregateTypeDrink はドリンクエンティティを表す。
	AggregateTypeDrink AggregateType = "Drink"
	// AggregateTypeQuestion はクイズ問題エンティティを表す。
	AggregateTypeQuestion AggregateType = "Question"
	// AggregateTypeVenue は会場エンティティを表す。
	AggregateTypeVenue AggregateType = "Venue"
	// AggregateTypeArtist はアーティストエンティティを表す。
	AggregateTypeArtist AggregateType = "Artist"
	// AggregateTypeShow は公演エンティティを表す。
	AggregateTypeShow AggregateType = "Show"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeCreated はレコードが作成されたことを表す。
	TypeCreated Type = "Created"
	// TypeUpdated はレコードが部分更新されたことを表す。
	TypeUpdated Type = "Updated"
	// TypeDeleted はレコードが削除されたことを表す。
	TypeDeleted Type = "Deleted"
	// TypeLinked は2つのレコードが関連付けられたことを表す（例: 映画への出演者追加）。
	TypeLinked Type = "Linked"
)

// Event はレコードの変更を記録する不変のイベント。
// 書き込みと同じトランザクションでentity_eventsテーブルに追記される。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象レコードの主キー。
	AggregateID int64 `json:"aggregate_id"`
	// AggregateType は対象レコードのコレクション。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data は変更後のレコードの詳細ビュー（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// LinkedData はTypeLinkedイベントのデータ。
type LinkedData struct {
	// TargetType は関連付け先のコレクション。
	TargetType AggregateType `json:"target_type"`
	// TargetID は関連付け先の主キー。
	TargetID int64 `json:"target_id"`
}

// DeletedData はTypeDeletedイベントのデータ。
type DeletedData struct {
	// ID は削除されたレコードの主キー。
	ID int64 `json:"id"`
}
