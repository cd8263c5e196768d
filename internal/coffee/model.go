package coffee

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/event"
)

// Ingredient はレシピの材料1つ。
type Ingredient struct {
	// Name は材料名。
	Name string `json:"name" validate:"required"`
	// Color は表示色。
	Color string `json:"color" validate:"required"`
	// Parts は配合比率。
	Parts int `json:"parts" validate:"gte=1"`
}

// Recipe は材料の並び。データベースにはJSON文字列として保存する。
type Recipe []Ingredient

// UnmarshalJSON は材料の配列と、単一の材料オブジェクトの両方を受け付ける。
func (r *Recipe) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var one Ingredient
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*r = Recipe{one}
		return nil
	}
	var many []Ingredient
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*r = many
	return nil
}

// Value はdriver.Valuerの実装。
func (r Recipe) Value() (driver.Value, error) {
	b, err := json.Marshal([]Ingredient(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan はsql.Scannerの実装。
func (r *Recipe) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case nil:
		*r = nil
		return nil
	default:
		return fmt.Errorf("recipe: 未対応の型 %T", src)
	}
	return json.Unmarshal(b, r)
}

// Drink はドリンクレコード。タイトルは一意。
type Drink struct {
	// ID は主キー。
	ID int64 `json:"id"`
	// Title はドリンク名。
	Title string `json:"title" validate:"required,max=80"`
	// Recipe はレシピ。1つ以上の材料を持つ。
	Recipe Recipe `json:"recipe" validate:"required,min=1,dive"`
}

func (d Drink) RecordID() int64 { return d.ID }

// Summary は材料名を除いたshortビュー（色と配合比率のみ）を返す。
func (d Drink) Summary() any {
	parts := make([]shortIngredient, 0, len(d.Recipe))
	for _, in := range d.Recipe {
		parts = append(parts, shortIngredient{Color: in.Color, Parts: in.Parts})
	}
	return shortDrink{ID: d.ID, Title: d.Title, Recipe: parts}
}

// Detail はレシピ全体を含むlongビューを返す。
func (d Drink) Detail() any { return d }

type shortIngredient struct {
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

type shortDrink struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []shortIngredient `json:"recipe"`
}

var drinkTable = crud.Table[Drink]{
	Name:         "drinks",
	Aggregate:    event.AggregateTypeDrink,
	Columns:      []string{"title", "recipe"},
	SearchColumn: "title",
	Scan: func(s crud.Scanner) (Drink, error) {
		var d Drink
		err := s.Scan(&d.ID, &d.Title, &d.Recipe)
		return d, err
	},
	Values: func(d Drink) []any { return []any{d.Title, d.Recipe} },
	WithID: func(d Drink, id int64) Drink {
		d.ID = id
		return d
	},
}

// createDrinkRequest はドリンク作成リクエストのJSON構造。
type createDrinkRequest struct {
	Title  *string `json:"title" validate:"required"`
	Recipe *Recipe `json:"recipe" validate:"required"`
}

// updateDrinkRequest はドリンクの部分更新リクエスト。
type updateDrinkRequest struct {
	Title  *string `json:"title"`
	Recipe *Recipe `json:"recipe"`
}

func (r updateDrinkRequest) empty() bool {
	return r.Title == nil && r.Recipe == nil
}

func (r updateDrinkRequest) apply(d *Drink) {
	if r.Title != nil {
		d.Title = *r.Title
	}
	if r.Recipe != nil {
		d.Recipe = *r.Recipe
	}
}
