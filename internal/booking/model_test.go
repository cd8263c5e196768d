package booking

import (
	"reflect"
	"testing"
)

// TestGenres はジャンルのカンマ区切り保存と復元を検証する。
func TestGenres(t *testing.T) {
	t.Parallel()

	t.Run("カンマ区切りで保存されること", func(t *testing.T) {
		t.Parallel()

		v, err := Genres{"Jazz", "Blues"}.Value()
		if err != nil {
			t.Fatalf("Value()でエラーが発生: %v", err)
		}
		if v != "Jazz,Blues" {
			t.Errorf("Value() = %v, want %q", v, "Jazz,Blues")
		}
	})

	tests := []struct {
		name string
		src  any
		want Genres
	}{
		{name: "文字列から復元できること", src: "Jazz,Blues", want: Genres{"Jazz", "Blues"}},
		{name: "バイト列から復元できること", src: []byte("Rock"), want: Genres{"Rock"}},
		{name: "空白と空要素を取り除くこと", src: " Jazz , ,Folk ", want: Genres{"Jazz", "Folk"}},
		{name: "空文字列は空になること", src: "", want: Genres{}},
		{name: "NULLは空になること", src: nil, want: Genres{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var g Genres
			if err := g.Scan(tt.src); err != nil {
				t.Fatalf("Scan()でエラーが発生: %v", err)
			}
			if len(g) != len(tt.want) || (len(g) > 0 && !reflect.DeepEqual(g, tt.want)) {
				t.Errorf("Scan() = %v, want %v", g, tt.want)
			}
		})
	}

	t.Run("未対応の型はエラーになること", func(t *testing.T) {
		t.Parallel()

		var g Genres
		if err := g.Scan(42); err == nil {
			t.Error("エラーが返されるべき")
		}
	})
}
