package trivia

import (
	"github.com/nao1215/fsnd/pkg/crud"
	"github.com/nao1215/fsnd/pkg/event"
)

// Category は問題のカテゴリ。
type Category struct {
	// ID は主キー。
	ID int64 `json:"id"`
	// Type はカテゴリ名。
	Type string `json:"type" validate:"required"`
}

func (c Category) RecordID() int64 { return c.ID }
func (c Category) Summary() any    { return c }
func (c Category) Detail() any     { return c }

// Question はクイズの問題。
type Question struct {
	// ID は主キー。
	ID int64 `json:"id"`
	// Question は問題文。
	Question string `json:"question" validate:"required"`
	// Answer は解答。
	Answer string `json:"answer" validate:"required"`
	// Category はカテゴリの主キー。
	Category int64 `json:"category" validate:"gte=1"`
	// Difficulty は難易度（1〜5）。
	Difficulty int `json:"difficulty" validate:"gte=1,lte=5"`
}

func (q Question) RecordID() int64 { return q.ID }
func (q Question) Summary() any    { return q }
func (q Question) Detail() any     { return q }

var categoryTable = crud.Table[Category]{
	Name:         "categories",
	Columns:      []string{"type"},
	SearchColumn: "type",
	Scan: func(s crud.Scanner) (Category, error) {
		var c Category
		err := s.Scan(&c.ID, &c.Type)
		return c, err
	},
	Values: func(c Category) []any { return []any{c.Type} },
	WithID: func(c Category, id int64) Category {
		c.ID = id
		return c
	},
}

var questionTable = crud.Table[Question]{
	Name:         "questions",
	Aggregate:    event.AggregateTypeQuestion,
	Columns:      []string{"question", "answer", "category", "difficulty"},
	SearchColumn: "question",
	Scan: func(s crud.Scanner) (Question, error) {
		var q Question
		err := s.Scan(&q.ID, &q.Question, &q.Answer, &q.Category, &q.Difficulty)
		return q, err
	},
	Values: func(q Question) []any { return []any{q.Question, q.Answer, q.Category, q.Difficulty} },
	WithID: func(q Question, id int64) Question {
		q.ID = id
		return q
	},
}

// createQuestionRequest は問題作成リクエストのJSON構造。
type createQuestionRequest struct {
	Question   *string `json:"question" validate:"required"`
	Answer     *string `json:"answer" validate:"required"`
	Category   *int64  `json:"category" validate:"required"`
	Difficulty *int    `json:"difficulty" validate:"required"`
}

// searchRequest は問題検索リクエスト。
type searchRequest struct {
	SearchTerm *string `json:"searchTerm" validate:"required"`
}

// quizCategory はクイズで選択されたカテゴリ。IDが0以下の場合はすべてのカテゴリを対象にする。
type quizCategory struct {
	ID   *int64 `json:"id" validate:"required"`
	Type string `json:"type"`
}

// quizRequest は次の問題を要求するリクエスト。
type quizRequest struct {
	PreviousQuestions []int64       `json:"previous_questions"`
	QuizCategory      *quizCategory `json:"quiz_category" validate:"required"`
}
